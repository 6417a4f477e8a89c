// Package stream 把记录输出到标准输出的写插件
package stream

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"datasync/internal/config"
	"datasync/internal/element"
	"datasync/internal/pkg/logger"
	"datasync/internal/plugin/batch"
	"datasync/internal/plugin/common"
)

// Parameter 写入参数
type Parameter struct {
	Print          bool   `json:"print"`
	FieldDelimiter string `json:"fieldDelimiter"`
	BatchSize      int    `json:"batchSize"`
}

// NewPlugin 创建 streamwriter 插件，所有任务共享同一个输出
func NewPlugin(out io.Writer) common.WriterPlugin {
	shared := &lockedWriter{w: out}
	return common.WriterPlugin{
		Description: "按行输出记录，print 为 false 时只计数",
		NewJob:      func() common.WriterJob { return &Job{} },
		NewTask:     func() common.WriterTask { return &Task{out: shared} },
	}
}

// lockedWriter 多个任务并发写同一个输出
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// Job streamwriter 作业阶段
type Job struct {
	conf *config.Configuration
}

func (j *Job) Init(conf *config.Configuration) error {
	j.conf = conf
	return nil
}

func (j *Job) Prepare(context.Context) error { return nil }

// Split 复制 mandatoryNumber 份
func (j *Job) Split(_ context.Context, mandatoryNumber int) ([]*config.Configuration, error) {
	slices := make([]*config.Configuration, mandatoryNumber)
	for i := range slices {
		slices[i] = j.conf.Clone()
	}
	return slices, nil
}

func (j *Job) Post(context.Context) error { return nil }
func (j *Job) Destroy() error             { return nil }

// Task streamwriter 任务阶段
type Task struct {
	out    io.Writer
	param  Parameter
	slice  *config.Configuration
	logger *logger.Logger
}

func (t *Task) Init(slice *config.Configuration) error {
	t.slice = slice
	t.logger = logger.Default().With(fmt.Sprintf("streamwriter.Task[%d]", slice.GetInt(common.KeyTaskID, 0)))
	t.param = Parameter{FieldDelimiter: "\t"}
	return slice.Decode(&t.param)
}

func (t *Task) Prepare(context.Context) error { return nil }

// StartWrite 通过攒批引擎输出记录
func (t *Task) StartWrite(ctx context.Context, receiver common.RecordReceiver, collector common.TaskCollector) error {
	out := io.Discard
	if t.param.Print {
		out = t.out
	}
	w := batch.New(&lineSink{out: out, delimiter: t.param.FieldDelimiter}, collector, batch.Option{
		BatchSize: t.param.BatchSize,
		JobID:     t.slice.GetString(common.KeyJobID),
		Logger:    t.logger,
	})
	return w.Consume(ctx, receiver)
}

func (t *Task) Post(context.Context) error { return nil }
func (t *Task) Destroy() error             { return nil }

// lineSink 一条记录输出为一行，列之间用分隔符连接
type lineSink struct {
	out       io.Writer
	delimiter string
}

func (s *lineSink) WriteBatch(_ context.Context, records []*element.Record) error {
	var b strings.Builder
	for _, r := range records {
		s.format(&b, r)
	}
	_, err := io.WriteString(s.out, b.String())
	return err
}

func (s *lineSink) WriteOne(_ context.Context, record *element.Record) error {
	var b strings.Builder
	s.format(&b, record)
	_, err := io.WriteString(s.out, b.String())
	return err
}

func (s *lineSink) format(b *strings.Builder, r *element.Record) {
	for i, c := range r.Columns() {
		if i > 0 {
			b.WriteString(s.delimiter)
		}
		b.WriteString(c.String())
	}
	b.WriteByte('\n')
}
