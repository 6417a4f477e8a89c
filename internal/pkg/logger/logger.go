package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level 日志级别
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// Logger 统一的日志记录器
type Logger struct {
	level   Level
	prefix  string
	atom    zap.AtomicLevel
	logFile *os.File
	sugar   *zap.SugaredLogger
	base    *zap.Logger
}

// Option 日志选项
type Option struct {
	Level     Level
	Prefix    string
	LogFile   string
	WithTime  bool
	WithLevel bool
}

// New 创建新的日志记录器
func New(opt *Option) *Logger {
	if opt == nil {
		opt = &Option{
			Level:     LevelInfo,
			WithTime:  true,
			WithLevel: true,
		}
	}

	l := &Logger{
		level:  opt.Level,
		prefix: opt.Prefix,
		atom:   zap.NewAtomicLevelAt(toZapLevel(opt.Level)),
	}

	sink := zapcore.AddSync(os.Stdout)
	if opt.LogFile != "" {
		// 确保日志目录存在
		if err := os.MkdirAll(filepath.Dir(opt.LogFile), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "创建日志目录失败: %v\n", err)
		} else if f, err := os.OpenFile(opt.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "打开日志文件失败: %v\n", err)
		} else {
			l.logFile = f
			sink = zapcore.AddSync(f)
		}
	}

	encCfg := zapcore.EncoderConfig{
		MessageKey:       "msg",
		CallerKey:        "caller",
		NameKey:          "name",
		EncodeCaller:     shortCallerEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: " ",
	}
	if opt.WithTime {
		encCfg.TimeKey = "time"
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05.000000")
	}
	if opt.WithLevel {
		encCfg.LevelKey = "level"
		encCfg.EncodeLevel = bracketLevelEncoder
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), sink, l.atom)
	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))
	if opt.Prefix != "" {
		base = base.Named(opt.Prefix)
	}
	l.base = base
	l.sugar = base.Sugar()
	return l
}

// With 基于当前记录器派生一个带子前缀的记录器，共享输出与级别
func (l *Logger) With(prefix string) *Logger {
	child := *l
	child.logFile = nil
	child.base = l.base.Named(prefix)
	child.sugar = child.base.Sugar()
	if l.prefix != "" {
		child.prefix = l.prefix + "." + prefix
	} else {
		child.prefix = prefix
	}
	return &child
}

// Close 刷新缓冲并关闭日志文件
func (l *Logger) Close() error {
	_ = l.base.Sync()
	if l.logFile != nil {
		return l.logFile.Close()
	}
	return nil
}

// shortCallerEncoder 输出 [file:line]，路径截断到模块内
func shortCallerEncoder(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
	file := caller.File
	if idx := strings.Index(file, "datasync/"); idx != -1 {
		file = file[idx:]
	} else {
		file = filepath.Base(file)
	}
	enc.AppendString(fmt.Sprintf("[%s:%d]", file, caller.Line))
}

// bracketLevelEncoder 输出 [INFO] 风格的级别
func bracketLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + GetLevelName(fromZapLevel(level)) + "]")
}

func toZapLevel(level Level) zapcore.Level {
	switch level {
	case LevelError:
		return zapcore.ErrorLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelDebug:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func fromZapLevel(level zapcore.Level) Level {
	switch {
	case level >= zapcore.ErrorLevel:
		return LevelError
	case level == zapcore.WarnLevel:
		return LevelWarn
	case level == zapcore.DebugLevel:
		return LevelDebug
	default:
		return LevelInfo
	}
}

// logf 根据日志级别打印日志
func (l *Logger) logf(level Level, format string, v ...interface{}) {
	if level > l.level {
		return
	}
	switch level {
	case LevelError:
		l.sugar.Errorf(format, v...)
	case LevelWarn:
		l.sugar.Warnf(format, v...)
	case LevelDebug:
		l.sugar.Debugf(format, v...)
	default:
		l.sugar.Infof(format, v...)
	}
}

// Error 打印错误日志
func (l *Logger) Error(format string, v ...interface{}) {
	l.logf(LevelError, format, v...)
}

// Warn 打印警告日志
func (l *Logger) Warn(format string, v ...interface{}) {
	l.logf(LevelWarn, format, v...)
}

// Info 打印信息日志
func (l *Logger) Info(format string, v ...interface{}) {
	l.logf(LevelInfo, format, v...)
}

// Debug 打印调试日志
func (l *Logger) Debug(format string, v ...interface{}) {
	l.logf(LevelDebug, format, v...)
}

// GetLevel 获取当前日志级别
func (l *Logger) GetLevel() Level {
	return l.level
}

// SetLevel 设置日志级别
func (l *Logger) SetLevel(level Level) {
	l.level = level
	l.atom.SetLevel(toZapLevel(level))
}

// GetLevelName 获取日志级别名称
func GetLevelName(level Level) string {
	switch level {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel 解析日志级别
func ParseLevel(level string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "ERROR":
		return LevelError, nil
	case "WARN":
		return LevelWarn, nil
	case "INFO":
		return LevelInfo, nil
	case "DEBUG":
		return LevelDebug, nil
	default:
		return LevelInfo, fmt.Errorf("未知的日志级别: %s", level)
	}
}

// Nop 返回一个丢弃所有输出的记录器，主要用于测试
func Nop() *Logger {
	base := zap.NewNop()
	return &Logger{
		level: LevelError,
		atom:  zap.NewAtomicLevelAt(zapcore.ErrorLevel),
		base:  base,
		sugar: base.Sugar(),
	}
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = Nop()
)

// SetDefault 设置插件使用的全局记录器
func SetDefault(l *Logger) {
	if l == nil {
		l = Nop()
	}
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Default 全局记录器，未设置时丢弃输出
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}
