package core

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"datasync/internal/config"
	"datasync/internal/pkg/logger"
	"datasync/internal/pkg/metrics"
	"datasync/internal/plugin/common"
)

// TaskReport 单个任务的执行结果
type TaskReport struct {
	TaskID  int
	Table   string
	Read    int64
	Written int64
	Dirty   int64
	Bytes   int64
	Causes  []string
	Elapsed time.Duration
	Err     error

	// DirtySamples 读写两端各自保留的前若干条脏数据
	DirtySamples []common.DirtyRecord
}

// TaskPipeline 一对读写切片组成的任务管道
type TaskPipeline struct {
	taskID      int
	jobID       string
	readerTask  common.ReaderTask
	writerTask  common.WriterTask
	readerSlice *config.Configuration
	writerSlice *config.Configuration
	logger      *logger.Logger

	channel        *Channel
	readCollector  *TaskCollector
	writeCollector *TaskCollector
}

// PipelineConfig 管道配置
type PipelineConfig struct {
	TaskID          int
	JobID           string
	ChannelCapacity int
	// BytesPerSecond 与 RecordsPerSecond 为单通道限速，0 表示不限
	BytesPerSecond   int
	RecordsPerSecond int
	Logger           *logger.Logger
}

// NewTaskPipeline 创建任务管道
func NewTaskPipeline(reader common.ReaderTask, readerSlice *config.Configuration,
	writer common.WriterTask, writerSlice *config.Configuration, cfg PipelineConfig) *TaskPipeline {
	l := cfg.Logger
	if l == nil {
		l = logger.Nop()
	}
	l = l.With(fmt.Sprintf("Task[%d]", cfg.TaskID))
	return &TaskPipeline{
		taskID:         cfg.TaskID,
		jobID:          cfg.JobID,
		readerTask:     reader,
		writerTask:     writer,
		readerSlice:    readerSlice,
		writerSlice:    writerSlice,
		logger:         l,
		channel:        NewChannel(cfg.ChannelCapacity).WithRateLimit(cfg.BytesPerSecond, cfg.RecordsPerSecond),
		readCollector:  NewTaskCollector(cfg.JobID, l),
		writeCollector: NewTaskCollector(cfg.JobID, l),
	}
}

// Channel 返回任务通道，用于进度统计
func (p *TaskPipeline) Channel() *Channel {
	return p.channel
}

// Run 执行任务：init -> prepare -> 并发读写 -> post，destroy 总会执行
func (p *TaskPipeline) Run(ctx context.Context) TaskReport {
	startTime := time.Now()
	report := TaskReport{TaskID: p.taskID, Table: p.writerSlice.GetString(common.KeyTable)}

	err := p.run(ctx)
	p.destroy()

	report.Read = p.channel.Records()
	report.Bytes = p.channel.Bytes()
	report.Dirty = p.readCollector.Count() + p.writeCollector.Count()
	report.Written = p.writeCollector.Written()
	report.Causes = append(p.readCollector.Causes(), p.writeCollector.Causes()...)
	report.DirtySamples = append(p.readCollector.Samples(), p.writeCollector.Samples()...)
	report.Elapsed = time.Since(startTime)
	if err != nil {
		report.Err = errors.Wrapf(err, "任务[%d]执行失败, 表[%s]", p.taskID, report.Table)
		p.logger.Error("任务执行失败: %v", err)
		return report
	}

	p.logger.Info("任务完成: 读取 %d 条, 写入 %d 条, 脏数据 %d 条, 耗时 %v",
		report.Read, report.Written, report.Dirty, report.Elapsed)
	return report
}

func (p *TaskPipeline) run(ctx context.Context) error {
	if err := p.readerTask.Init(p.readerSlice); err != nil {
		return err
	}
	if err := p.writerTask.Init(p.writerSlice); err != nil {
		return err
	}
	if err := p.readerTask.Prepare(ctx); err != nil {
		return err
	}
	if err := p.writerTask.Prepare(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer p.channel.Terminate()
		if err := p.readerTask.StartRead(gctx, p.channel, p.readCollector); err != nil {
			return err
		}
		metrics.RecordsRead.WithLabelValues(p.jobID).Add(float64(p.channel.Records()))
		return nil
	})
	g.Go(func() error {
		return p.writerTask.StartWrite(gctx, p.channel, p.writeCollector)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if err := p.writerTask.Post(ctx); err != nil {
		return err
	}
	return p.readerTask.Post(ctx)
}

func (p *TaskPipeline) destroy() {
	if err := p.writerTask.Destroy(); err != nil {
		p.logger.Warn("释放写任务资源失败: %v", err)
	}
	if err := p.readerTask.Destroy(); err != nil {
		p.logger.Warn("释放读任务资源失败: %v", err)
	}
}
