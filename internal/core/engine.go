package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	"datasync/internal/config"
	"datasync/internal/pkg/errs"
	"datasync/internal/pkg/logger"
	"datasync/internal/pkg/workerpool"
	"datasync/internal/plugin/common"
)

// PluginConfig 读写插件配置
type PluginConfig struct {
	Name      string         `json:"name" yaml:"name"`
	Parameter map[string]any `json:"parameter" yaml:"parameter"`
}

// ContentConfig 一组读写配置
type ContentConfig struct {
	Reader PluginConfig `json:"reader" yaml:"reader"`
	Writer PluginConfig `json:"writer" yaml:"writer"`
}

// SpeedConfig 并发与限速
type SpeedConfig struct {
	Channel int `json:"channel" yaml:"channel"`
	Bytes   int `json:"bytes" yaml:"bytes"`
	Record  int `json:"record" yaml:"record"`
}

// ErrorLimitConfig 脏数据阈值，Record 与 Percentage 大于0时生效
type ErrorLimitConfig struct {
	Record     int     `json:"record" yaml:"record"`
	Percentage float64 `json:"percentage" yaml:"percentage"`
}

// SettingConfig 作业设置
type SettingConfig struct {
	Speed           SpeedConfig      `json:"speed" yaml:"speed"`
	ErrorLimit      ErrorLimitConfig `json:"errorLimit" yaml:"errorLimit"`
	ChannelCapacity int              `json:"channelCapacity" yaml:"channelCapacity"`
}

// JobConfig 作业配置结构
type JobConfig struct {
	Job struct {
		Content []ContentConfig `json:"content" yaml:"content"`
		Setting SettingConfig   `json:"setting" yaml:"setting"`
	} `json:"job" yaml:"job"`
}

// JobReport 作业执行结果
type JobReport struct {
	JobID   string
	Tasks   []TaskReport
	Read    int64
	Written int64
	Dirty   int64
	Bytes   int64
	Elapsed time.Duration
}

// JobContainer 作业容器：负责插件生命周期、切分配对与任务调度
type JobContainer struct {
	jobID    string
	config   *JobConfig
	registry *PluginRegistry
	logger   *logger.Logger

	// ProgressInterval 进度日志间隔，0 表示不输出
	ProgressInterval time.Duration

	readerPlugin common.ReaderPlugin
	writerPlugin common.WriterPlugin
	readerJob    common.ReaderJob
	writerJob    common.WriterJob
}

// NewJobContainer 创建作业容器，registry 为 nil 时使用全局注册器
func NewJobContainer(conf *JobConfig, registry *PluginRegistry, l *logger.Logger) *JobContainer {
	if registry == nil {
		registry = DefaultRegistry
	}
	if l == nil {
		l = logger.Nop()
	}
	jobID := uuid.NewString()
	return &JobContainer{
		jobID:            jobID,
		config:           conf,
		registry:         registry,
		logger:           l.With("Job[" + jobID[:8] + "]"),
		ProgressInterval: 10 * time.Second,
	}
}

// JobID 作业标识
func (c *JobContainer) JobID() string {
	return c.jobID
}

// Start 执行作业
func (c *JobContainer) Start(ctx context.Context) (*JobReport, error) {
	startTime := time.Now()
	c.logger.Info("开始数据同步任务...")

	if err := NewJobConfigValidatorWithRegistry(c.config, c.registry).Validate(); err != nil {
		return nil, errs.Wrap(errs.Config, err, "配置验证失败")
	}

	if err := c.init(); err != nil {
		return nil, err
	}
	defer c.destroy()

	if err := c.readerJob.Prepare(ctx); err != nil {
		return nil, err
	}
	if err := c.writerJob.Prepare(ctx); err != nil {
		return nil, err
	}

	readerSlices, writerSlices, err := c.split(ctx)
	if err != nil {
		return nil, err
	}

	report, err := c.schedule(ctx, readerSlices, writerSlices)
	if err != nil {
		return report, err
	}

	if err := c.writerJob.Post(ctx); err != nil {
		return report, err
	}
	if err := c.readerJob.Post(ctx); err != nil {
		return report, err
	}

	report.Elapsed = time.Since(startTime)
	speed := 0.0
	if report.Elapsed > 0 {
		speed = float64(report.Written) / report.Elapsed.Seconds()
	}
	c.logger.Info("数据同步完成! 总耗时: %v, 读取记录数: %d, 写入记录数: %d, 脏数据: %d, 速度 %.2f 条/秒",
		report.Elapsed.Round(time.Millisecond), report.Read, report.Written, report.Dirty, speed)

	if err := c.checkErrorLimit(report); err != nil {
		return report, err
	}
	return report, nil
}

// init 查找插件并初始化读写作业
func (c *JobContainer) init() error {
	content := c.config.Job.Content[0]

	var err error
	if c.readerPlugin, err = c.registry.Reader(content.Reader.Name); err != nil {
		return err
	}
	if c.writerPlugin, err = c.registry.Writer(content.Writer.Name); err != nil {
		return err
	}

	readerConf := config.FromMap(content.Reader.Parameter)
	writerConf := config.FromMap(content.Writer.Parameter)
	for _, conf := range []*config.Configuration{readerConf, writerConf} {
		if err := conf.Set(common.KeyJobID, c.jobID); err != nil {
			return err
		}
	}

	c.readerJob = c.readerPlugin.NewJob()
	if err := c.readerJob.Init(readerConf); err != nil {
		return errs.Wrap(errs.Config, err, "Reader[%s]初始化失败", content.Reader.Name)
	}
	c.writerJob = c.writerPlugin.NewJob()
	if err := c.writerJob.Init(writerConf); err != nil {
		return errs.Wrap(errs.Config, err, "Writer[%s]初始化失败", content.Writer.Name)
	}
	return nil
}

// split 读端按建议并发切分，写端按读切片数切分，数量必须一致
func (c *JobContainer) split(ctx context.Context) ([]*config.Configuration, []*config.Configuration, error) {
	advice := c.config.Job.Setting.Speed.Channel
	if advice < 1 {
		advice = 1
	}

	readerSlices, err := c.readerJob.Split(ctx, advice)
	if err != nil {
		return nil, nil, err
	}
	if len(readerSlices) == 0 {
		return nil, nil, errs.New(errs.SplitMismatch, "Reader切分结果为空")
	}

	writerSlices, err := c.writerJob.Split(ctx, len(readerSlices))
	if err != nil {
		return nil, nil, err
	}
	if len(writerSlices) != len(readerSlices) {
		return nil, nil, errs.New(errs.SplitMismatch,
			"reader切分的task数目[%d]不等于writer切分的task数目[%d]", len(readerSlices), len(writerSlices))
	}

	for i := range readerSlices {
		for _, slice := range []*config.Configuration{readerSlices[i], writerSlices[i]} {
			if err := slice.Set(common.KeyTaskID, i); err != nil {
				return nil, nil, err
			}
		}
	}
	c.logger.Info("作业切分完成: 建议并发 %d, 任务数 %d", advice, len(readerSlices))
	return readerSlices, writerSlices, nil
}

// schedule 在共享工作池上运行所有任务管道
func (c *JobContainer) schedule(ctx context.Context, readerSlices, writerSlices []*config.Configuration) (*JobReport, error) {
	setting := c.config.Job.Setting
	size := max(setting.Speed.Channel, 1)
	size = min(size, len(readerSlices))
	pool := workerpool.New(ctx, size)

	pipelines := make([]*TaskPipeline, len(readerSlices))
	for i := range readerSlices {
		pipelines[i] = NewTaskPipeline(
			c.readerPlugin.NewTask(), readerSlices[i],
			c.writerPlugin.NewTask(), writerSlices[i],
			PipelineConfig{
				TaskID:           i,
				JobID:            c.jobID,
				ChannelCapacity:  setting.ChannelCapacity,
				BytesPerSecond:   perChannel(setting.Speed.Bytes, size),
				RecordsPerSecond: perChannel(setting.Speed.Record, size),
				Logger:           c.logger,
			})
	}

	stop := c.startProgress(ctx, pipelines)
	reports, poolErr := runPipelines(pool, pipelines)
	stop()

	report := &JobReport{JobID: c.jobID, Tasks: reports}
	for _, r := range reports {
		report.Read += r.Read
		report.Written += r.Written
		report.Dirty += r.Dirty
		report.Bytes += r.Bytes
	}
	return report, rootCause(poolErr, reports)
}

// perChannel 把作业级限速均分到每个通道，配置了限速时每个通道至少为1
func perChannel(limit, channels int) int {
	if limit <= 0 {
		return 0
	}
	return max(limit/channels, 1)
}

// rootCause 选出导致作业失败的错误，其他任务因此被取消产生的错误排在后面
func rootCause(poolErr error, reports []TaskReport) error {
	if poolErr != nil && !errs.IsCanceled(poolErr) {
		return poolErr
	}
	var canceled error
	for _, r := range reports {
		if r.Err == nil {
			continue
		}
		if !errs.IsCanceled(r.Err) {
			return r.Err
		}
		if canceled == nil {
			canceled = r.Err
		}
	}
	if canceled != nil {
		return canceled
	}
	return poolErr
}

// runPipelines 把管道提交到工作池并等待全部结束，池由调用方按规划结果创建
func runPipelines(pool *workerpool.Pool, pipelines []*TaskPipeline) ([]TaskReport, error) {
	reports := make([]TaskReport, len(pipelines))
	for i, p := range pipelines {
		i, p := i, p
		pool.Go(func(ctx context.Context) error {
			reports[i] = p.Run(ctx)
			return reports[i].Err
		})
	}
	err := pool.Wait()
	return reports, err
}

// startProgress 定期输出进度，返回停止函数
func (c *JobContainer) startProgress(ctx context.Context, pipelines []*TaskPipeline) func() {
	if c.ProgressInterval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	stopped := make(chan struct{})
	startTime := time.Now()
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(c.ProgressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				var records, bytes int64
				for _, p := range pipelines {
					records += p.Channel().Records()
					bytes += p.Channel().Bytes()
				}
				elapsed := time.Since(startTime)
				c.logger.Info("数据同步进度: 已传输 %d 条, %d 字节, 速度 %.2f 条/秒, 已用时间 %v",
					records, bytes, float64(records)/elapsed.Seconds(), elapsed.Round(time.Second))
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}

// checkErrorLimit 检查脏数据阈值
func (c *JobContainer) checkErrorLimit(report *JobReport) error {
	limit := c.config.Job.Setting.ErrorLimit
	if limit.Record > 0 && report.Dirty > int64(limit.Record) {
		return errs.New(errs.Runtime, "脏数据条数检查不通过，限制是[%d]条，但实际上捕获了[%d]条", limit.Record, report.Dirty)
	}
	if limit.Percentage > 0 && report.Read > 0 {
		ratio := float64(report.Dirty) / float64(report.Read)
		if ratio > limit.Percentage {
			return errs.New(errs.Runtime, "脏数据百分比检查不通过，限制是[%f]，但实际上捕获到[%f]", limit.Percentage, ratio)
		}
	}
	return nil
}

// destroy 释放读写作业资源
func (c *JobContainer) destroy() {
	if c.writerJob != nil {
		if err := c.writerJob.Destroy(); err != nil {
			c.logger.Warn("释放Writer作业资源失败: %v", err)
		}
	}
	if c.readerJob != nil {
		if err := c.readerJob.Destroy(); err != nil {
			c.logger.Warn("释放Reader作业资源失败: %v", err)
		}
	}
}
