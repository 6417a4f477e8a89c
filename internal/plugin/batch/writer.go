// Package batch 实现按行数与字节数攒批、批量失败后降级逐条提交的写入引擎
package batch

import (
	"context"
	"time"

	"datasync/internal/element"
	"datasync/internal/pkg/errs"
	"datasync/internal/pkg/logger"
	"datasync/internal/pkg/metrics"
	"datasync/internal/plugin/common"
)

// Sink 目标端的写入能力
type Sink interface {
	// WriteBatch 在一个事务内提交整批记录，失败时自行回滚
	WriteBatch(ctx context.Context, records []*element.Record) error
	// WriteOne 以自动提交方式写入单条记录
	WriteOne(ctx context.Context, record *element.Record) error
}

// Option 写入引擎参数
type Option struct {
	BatchSize     int
	BatchByteSize int
	// ColumnNumber 声明的列数，大于0时校验每条记录
	ColumnNumber int
	JobID        string
	Logger       *logger.Logger
}

// Stats 写入统计
type Stats struct {
	Received int64
	Written  int64
	Dirty    int64
	Flushes  int64
	Degrades int64
}

// Writer 攒批写入器，每个写任务独占一个
type Writer struct {
	sink      Sink
	collector common.TaskCollector
	opt       Option
	logger    *logger.Logger

	buffer []*element.Record
	bytes  int
	stats  Stats
}

// New 创建写入器，阈值小于等于0时使用默认值
func New(sink Sink, collector common.TaskCollector, opt Option) *Writer {
	if opt.BatchSize <= 0 {
		opt.BatchSize = common.DefaultBatchSize
	}
	if opt.BatchByteSize <= 0 {
		opt.BatchByteSize = common.DefaultBatchByteSize
	}
	if collector == nil {
		collector = common.DiscardCollector{}
	}
	l := opt.Logger
	if l == nil {
		l = logger.Nop()
	}
	return &Writer{
		sink:      sink,
		collector: collector,
		opt:       opt,
		logger:    l,
		buffer:    make([]*element.Record, 0, opt.BatchSize),
	}
}

// Stats 返回当前统计
func (w *Writer) Stats() Stats {
	return w.stats
}

// Write 追加一条记录，达到任一阈值时提交
func (w *Writer) Write(ctx context.Context, record *element.Record) error {
	if w.opt.ColumnNumber > 0 && record.ColumnNumber() != w.opt.ColumnNumber {
		w.logger.Error("数据列数不匹配: 记录有 %d 列，但配置了 %d 列", record.ColumnNumber(), w.opt.ColumnNumber)
		return errs.New(errs.ColumnMismatch,
			"列配置信息有误. 因为您配置的任务中，源头读取字段数:%d 与 目的表要写入的字段数:%d 不相等. 请检查您的配置并作出修改",
			record.ColumnNumber(), w.opt.ColumnNumber)
	}

	w.stats.Received++
	w.buffer = append(w.buffer, record)
	w.bytes += record.ByteSize()
	if len(w.buffer) >= w.opt.BatchSize || w.bytes >= w.opt.BatchByteSize {
		return w.Flush(ctx)
	}
	return nil
}

// Flush 提交缓冲区中的记录，批量失败时降级为逐条提交
func (w *Writer) Flush(ctx context.Context) error {
	if len(w.buffer) == 0 {
		return nil
	}
	records := w.buffer
	w.buffer = make([]*element.Record, 0, w.opt.BatchSize)
	w.bytes = 0

	w.stats.Flushes++
	metrics.Flushes.WithLabelValues(w.opt.JobID).Inc()

	err := w.sink.WriteBatch(ctx, records)
	if err == nil {
		w.addWritten(len(records))
		w.logger.Debug("批量提交 %d 条记录", len(records))
		return nil
	}
	if shortCircuit(ctx, err) {
		return err
	}

	w.stats.Degrades++
	metrics.Degrades.WithLabelValues(w.opt.JobID).Inc()
	w.logger.Warn("批量提交 %d 条记录失败，回滚后改为逐条提交: %v", len(records), err)

	for _, record := range records {
		if err := w.sink.WriteOne(ctx, record); err != nil {
			if shortCircuit(ctx, err) {
				return err
			}
			w.stats.Dirty++
			w.collector.CollectDirtyRecord(record, err)
			continue
		}
		w.addWritten(1)
	}
	return nil
}

// Close 提交剩余记录
func (w *Writer) Close(ctx context.Context) error {
	return w.Flush(ctx)
}

// Consume 从通道读取直到流结束并写入目标端
func (w *Writer) Consume(ctx context.Context, receiver common.RecordReceiver) error {
	startTime := time.Now()
	for {
		record, ok := receiver.GetFromReader(ctx)
		if !ok {
			break
		}
		if err := w.Write(ctx, record); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := w.Close(ctx); err != nil {
		return err
	}

	elapsed := time.Since(startTime)
	speed := 0.0
	if elapsed > 0 {
		speed = float64(w.stats.Written) / elapsed.Seconds()
	}
	w.logger.Info("数据写入完成: 写入记录 %d 条, 脏数据 %d 条, 提交 %d 次, 降级 %d 次, 耗时 %v, 速度 %.2f 条/秒",
		w.stats.Written, w.stats.Dirty, w.stats.Flushes, w.stats.Degrades, elapsed, speed)
	return nil
}

func (w *Writer) addWritten(n int) {
	w.stats.Written += int64(n)
	metrics.RecordsWritten.WithLabelValues(w.opt.JobID).Add(float64(n))
	if wc, ok := w.collector.(common.WriteCounter); ok {
		wc.CollectWritten(int64(n))
	}
}

// shortCircuit 连接失败或上下文取消时不再逐条重放
func shortCircuit(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errs.IsCanceled(err) || errs.Is(err, errs.Connect)
}
