// Package cmd 命令行入口
package cmd

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"datasync/internal/pkg/logger"
)

// 版本信息，在编译时通过 -ldflags 注入
var (
	Version   = "dev"
	BuildTime = "unknown"
	CommitID  = "unknown"
)

const (
	flagConfig      = "config"
	flagLogLevel    = "log-level"
	flagLogFile     = "log-file"
	flagMetricsAddr = "metrics-addr"
)

var log = logger.Nop()

var rootCmd = &cobra.Command{
	Use:               "datasync",
	Short:             "异构数据源之间的批量数据同步工具",
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute 执行根命令，失败时以非零状态退出
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error("程序执行失败: %v", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String(flagConfig, "", "进程配置文件 (默认读取当前目录下的 datasync.yaml)")
	flags.String(flagLogLevel, "info", "日志级别: error, warn, info, debug")
	flags.String(flagLogFile, "", "日志文件路径，为空时输出到标准输出")
	flags.String(flagMetricsAddr, "", "Prometheus 指标监听地址，如 :9090")

	for _, name := range []string{flagLogLevel, flagLogFile, flagMetricsAddr} {
		cobra.CheckErr(viper.BindPFlag(name, flags.Lookup(name)))
	}
	viper.SetEnvPrefix("DATASYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(runCmd, pluginsCmd, versionCmd)
}

// setup 读取进程配置并初始化日志
func setup(cmd *cobra.Command, _ []string) error {
	if path, _ := cmd.Flags().GetString(flagConfig); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("datasync")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}

	level, err := logger.ParseLevel(viper.GetString(flagLogLevel))
	if err != nil {
		return err
	}
	log = logger.New(&logger.Option{
		Level:     level,
		Prefix:    "DataSync",
		LogFile:   viper.GetString(flagLogFile),
		WithTime:  true,
		WithLevel: true,
	})
	logger.SetDefault(log)
	return nil
}
