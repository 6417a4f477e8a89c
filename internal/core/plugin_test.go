package core

import (
	"context"
	"sync"

	"datasync/internal/config"
	"datasync/internal/element"
	"datasync/internal/pkg/errs"
	"datasync/internal/plugin/common"
)

// callLog 按顺序记录生命周期调用
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) index(call string) int {
	for i, c := range l.list() {
		if c == call {
			return i
		}
	}
	return -1
}

// fakeOptions 模拟插件的行为
type fakeOptions struct {
	// records 每个读切片发送的记录数
	records int
	// negativeEvery 每隔多少条发送一条写端会判为脏数据的记录，0 表示没有
	negativeEvery int
	// writerExtraSlices 写端切分多返回的切片数
	writerExtraSlices int
	readErr           error
	writeErr          error
	postErr           error
	// holdReader 读端发送完后一直等待到上下文取消
	holdReader bool
	// failOnTask 指定任务号的写端直接返回对应错误
	failOnTask map[int]error
	// failAfter 写端提交这么多条后返回连接错误，0 表示不失败
	failAfter int
}

type mockReaderJob struct {
	log  *callLog
	opts fakeOptions
	conf *config.Configuration
}

func (j *mockReaderJob) Init(conf *config.Configuration) error {
	j.log.add("reader.Init")
	j.conf = conf
	return nil
}

func (j *mockReaderJob) Prepare(context.Context) error {
	j.log.add("reader.Prepare")
	return nil
}

func (j *mockReaderJob) Split(_ context.Context, advice int) ([]*config.Configuration, error) {
	j.log.add("reader.Split")
	slices := make([]*config.Configuration, advice)
	for i := range slices {
		slices[i] = j.conf.Clone()
	}
	return slices, nil
}

func (j *mockReaderJob) Post(context.Context) error {
	j.log.add("reader.Post")
	return nil
}

func (j *mockReaderJob) Destroy() error {
	j.log.add("reader.Destroy")
	return nil
}

type mockReaderTask struct {
	log  *callLog
	opts fakeOptions
}

func (t *mockReaderTask) Init(*config.Configuration) error { return nil }
func (t *mockReaderTask) Prepare(context.Context) error    { return nil }

func (t *mockReaderTask) StartRead(ctx context.Context, sender common.RecordSender, _ common.TaskCollector) error {
	for i := 1; i <= t.opts.records; i++ {
		v := int64(i)
		if t.opts.negativeEvery > 0 && i%t.opts.negativeEvery == 0 {
			v = -v
		}
		if err := sender.SendToWriter(ctx, element.NewRecord(element.NewLongColumn(v))); err != nil {
			return err
		}
	}
	if t.opts.holdReader {
		<-ctx.Done()
		return ctx.Err()
	}
	return t.opts.readErr
}

func (t *mockReaderTask) Post(context.Context) error { return nil }

func (t *mockReaderTask) Destroy() error {
	t.log.add("readerTask.Destroy")
	return nil
}

type mockWriterJob struct {
	log  *callLog
	opts fakeOptions
	conf *config.Configuration
}

func (j *mockWriterJob) Init(conf *config.Configuration) error {
	j.log.add("writer.Init")
	j.conf = conf
	return nil
}

func (j *mockWriterJob) Prepare(context.Context) error {
	j.log.add("writer.Prepare")
	return nil
}

func (j *mockWriterJob) Split(_ context.Context, n int) ([]*config.Configuration, error) {
	j.log.add("writer.Split")
	slices := make([]*config.Configuration, n+j.opts.writerExtraSlices)
	for i := range slices {
		slices[i] = j.conf.Clone()
	}
	return slices, nil
}

func (j *mockWriterJob) Post(context.Context) error {
	j.log.add("writer.Post")
	return j.opts.postErr
}

func (j *mockWriterJob) Destroy() error {
	j.log.add("writer.Destroy")
	return nil
}

// mockWriterTask 负数记录判为脏数据，其余计入 written
type mockWriterTask struct {
	log     *callLog
	opts    fakeOptions
	mu      *sync.Mutex
	written *int64
	taskID  int
}

func (t *mockWriterTask) Init(slice *config.Configuration) error {
	t.taskID = slice.GetInt(common.KeyTaskID, 0)
	return nil
}

func (t *mockWriterTask) Prepare(context.Context) error { return nil }

func (t *mockWriterTask) StartWrite(ctx context.Context, receiver common.RecordReceiver, collector common.TaskCollector) error {
	if t.opts.writeErr != nil {
		return t.opts.writeErr
	}
	if err, ok := t.opts.failOnTask[t.taskID]; ok {
		return err
	}
	var committed int
	for {
		if t.opts.failAfter > 0 && committed >= t.opts.failAfter {
			return errs.New(errs.Connect, "模拟写入中途断开")
		}
		r, ok := receiver.GetFromReader(ctx)
		if !ok {
			return ctx.Err()
		}
		if v, _ := r.Column(0).AsLong(); v < 0 {
			collector.CollectDirtyRecord(r, errs.New(errs.WriteRow, "负数记录"))
			continue
		}
		t.mu.Lock()
		*t.written++
		t.mu.Unlock()
		committed++
		if wc, ok := collector.(common.WriteCounter); ok {
			wc.CollectWritten(1)
		}
	}
}

func (t *mockWriterTask) Post(context.Context) error { return nil }

func (t *mockWriterTask) Destroy() error {
	t.log.add("writerTask.Destroy")
	return nil
}

// fakeEnv 一组共享状态的模拟插件
type fakeEnv struct {
	log     *callLog
	mu      sync.Mutex
	written int64
}

func (e *fakeEnv) Written() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.written
}

// newFakeRegistry 注册名为 mockreader 与 mockwriter 的模拟插件
func newFakeRegistry(opts fakeOptions) (*PluginRegistry, *fakeEnv) {
	env := &fakeEnv{log: &callLog{}}
	r := NewPluginRegistry()
	r.RegisterReader("mockreader", common.ReaderPlugin{
		Description: "模拟读插件",
		NewJob:      func() common.ReaderJob { return &mockReaderJob{log: env.log, opts: opts} },
		NewTask:     func() common.ReaderTask { return &mockReaderTask{log: env.log, opts: opts} },
	})
	r.RegisterWriter("mockwriter", common.WriterPlugin{
		Description: "模拟写插件",
		Required:    []string{"target"},
		NewJob:      func() common.WriterJob { return &mockWriterJob{log: env.log, opts: opts} },
		NewTask: func() common.WriterTask {
			return &mockWriterTask{log: env.log, opts: opts, mu: &env.mu, written: &env.written}
		},
	})
	return r, env
}

// newJobConfig 构造 mockreader -> mockwriter 的作业配置
func newJobConfig(channel int) *JobConfig {
	conf := &JobConfig{}
	conf.Job.Content = []ContentConfig{{
		Reader: PluginConfig{Name: "mockreader", Parameter: map[string]any{}},
		Writer: PluginConfig{Name: "mockwriter", Parameter: map[string]any{"target": "t"}},
	}}
	conf.Job.Setting.Speed.Channel = channel
	return conf
}
