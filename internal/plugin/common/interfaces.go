package common

import (
	"context"

	"datasync/internal/config"
	"datasync/internal/element"
)

// RecordSender 读任务向通道发送记录
type RecordSender interface {
	// SendToWriter 发送一条记录，通道已满时阻塞
	SendToWriter(ctx context.Context, record *element.Record) error
	// Terminate 发送结束标记，多次调用只生效一次
	Terminate()
}

// RecordReceiver 写任务从通道接收记录
type RecordReceiver interface {
	// GetFromReader 接收一条记录，通道为空时阻塞；流结束后始终返回 (nil, false)
	GetFromReader(ctx context.Context) (*element.Record, bool)
}

// TaskCollector 脏数据收集器，收集过程不会失败
type TaskCollector interface {
	CollectDirtyRecord(record *element.Record, cause error)
}

// ReaderJob 读插件的作业阶段
type ReaderJob interface {
	Init(conf *config.Configuration) error
	Prepare(ctx context.Context) error
	// Split 按建议并发数切分，adviceNumber 只是建议值
	Split(ctx context.Context, adviceNumber int) ([]*config.Configuration, error)
	Post(ctx context.Context) error
	Destroy() error
}

// ReaderTask 读插件的任务阶段
type ReaderTask interface {
	Init(slice *config.Configuration) error
	Prepare(ctx context.Context) error
	// StartRead 读取数据写入通道，返回后由调用方发送结束标记
	StartRead(ctx context.Context, sender RecordSender, collector TaskCollector) error
	Post(ctx context.Context) error
	Destroy() error
}

// WriterJob 写插件的作业阶段
type WriterJob interface {
	Init(conf *config.Configuration) error
	Prepare(ctx context.Context) error
	// Split 必须恰好返回 mandatoryNumber 个切片，与读切片一一配对
	Split(ctx context.Context, mandatoryNumber int) ([]*config.Configuration, error)
	Post(ctx context.Context) error
	Destroy() error
}

// WriterTask 写插件的任务阶段
type WriterTask interface {
	Init(slice *config.Configuration) error
	Prepare(ctx context.Context) error
	StartWrite(ctx context.Context, receiver RecordReceiver, collector TaskCollector) error
	Post(ctx context.Context) error
	Destroy() error
}

// ReaderPlugin 读插件的作业与任务构造器
type ReaderPlugin struct {
	Description string
	// Required 作业参数中的必填键，由配置校验器检查
	Required    []string
	NewJob      func() ReaderJob
	NewTask     func() ReaderTask
}

// WriterPlugin 写插件的作业与任务构造器
type WriterPlugin struct {
	Description string
	Required    []string
	NewJob      func() WriterJob
	NewTask     func() WriterTask
}
