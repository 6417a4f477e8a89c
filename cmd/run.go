package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"datasync/internal/config"
	"datasync/internal/core"
	"datasync/internal/pkg/errs"
	"datasync/internal/pkg/metrics"
)

var (
	jobFile  string
	cronSpec string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "执行数据同步作业",
	Example: `  datasync run -j job.json
  datasync run -j job.yaml --cron "0 2 * * *"`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// 启动前先检查一次作业文件
		if _, err := loadJob(jobFile); err != nil {
			return err
		}
		if err := core.RegisterAllBuiltinPlugins(); err != nil {
			return err
		}
		log.Info("DataSync 版本: %s, 构建时间: %s, 提交ID: %s", Version, BuildTime, CommitID)

		if addr := viper.GetString(flagMetricsAddr); addr != "" {
			shutdown := serveMetrics(addr)
			defer shutdown()
		}

		if cronSpec == "" {
			return runOnce(ctx)
		}
		return runScheduled(ctx, cronSpec)
	},
}

func init() {
	runCmd.Flags().StringVarP(&jobFile, "job", "j", "", "任务配置文件路径 (json/yaml)")
	runCmd.Flags().StringVar(&cronSpec, "cron", "", "按 cron 表达式周期执行，如 \"*/30 * * * *\"")
	cobra.CheckErr(runCmd.MarkFlagRequired("job"))
}

// loadJob 读取并解析任务配置，不允许出现未知字段
func loadJob(path string) (*core.JobConfig, error) {
	content, err := config.ReadJobFile(path)
	if err != nil {
		return nil, err
	}
	var jobConfig core.JobConfig
	decoder := json.NewDecoder(bytes.NewReader(content))
	decoder.UseNumber()
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&jobConfig); err != nil {
		return nil, errs.Wrap(errs.Config, err, "解析任务配置失败")
	}
	return &jobConfig, nil
}

// runOnce 每次执行都重新读取作业文件
func runOnce(ctx context.Context) error {
	jobConfig, err := loadJob(jobFile)
	if err != nil {
		return err
	}
	container := core.NewJobContainer(jobConfig, core.DefaultRegistry, log)
	report, err := container.Start(ctx)
	if err != nil {
		return err
	}
	for _, t := range report.Tasks {
		log.Debug("任务[%d] 表[%s]: 读取 %d, 写入 %d, 脏数据 %d, 耗时 %v",
			t.TaskID, t.Table, t.Read, t.Written, t.Dirty, t.Elapsed)
	}
	return nil
}

// runScheduled 按 cron 表达式重复执行，直到收到退出信号；同一时刻只运行一个作业
func runScheduled(ctx context.Context, spec string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() {
		if err := runOnce(ctx); err != nil {
			log.Error("定时作业执行失败: %v", err)
		}
	}); err != nil {
		return errs.Wrap(errs.IllegalValue, err, "cron 表达式不合法: %s", spec)
	}
	c.Start()
	log.Info("已按 [%s] 启动定时作业，等待退出信号", spec)

	<-ctx.Done()
	<-c.Stop().Done()
	log.Info("定时作业已停止")
	return nil
}

// serveMetrics 在后台提供指标接口，返回关闭函数
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("指标服务监听 %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("指标服务异常退出: %v", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
