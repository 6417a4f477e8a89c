package core

import (
	"context"
	"testing"
	"time"

	"datasync/internal/config"
	"datasync/internal/pkg/errs"
)

func newPipeline(env *fakeEnv, opts fakeOptions, capacity int) *TaskPipeline {
	return NewTaskPipeline(
		&mockReaderTask{log: env.log, opts: opts}, config.New(),
		&mockWriterTask{log: env.log, opts: opts, mu: &env.mu, written: &env.written}, config.FromMap(map[string]any{"table": "t1"}),
		PipelineConfig{TaskID: 3, JobID: "test", ChannelCapacity: capacity})
}

func TestTaskPipeline_Run(t *testing.T) {
	tests := []struct {
		name        string
		opts        fakeOptions
		wantRead    int64
		wantWritten int64
		wantDirty   int64
		wantErr     bool
	}{
		{name: "全部写入", opts: fakeOptions{records: 50}, wantRead: 50, wantWritten: 50},
		{name: "部分脏数据", opts: fakeOptions{records: 50, negativeEvery: 5}, wantRead: 50, wantWritten: 40, wantDirty: 10},
		{name: "读端失败", opts: fakeOptions{records: 5, readErr: errs.New(errs.ExecSQL, "模拟查询失败")}, wantRead: 5, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := &fakeEnv{log: &callLog{}}
			report := newPipeline(env, tt.opts, 4).Run(context.Background())

			if (report.Err != nil) != tt.wantErr {
				t.Fatalf("wantErr=%v, got: %v", tt.wantErr, report.Err)
			}
			if report.TaskID != 3 || report.Table != "t1" {
				t.Errorf("Unexpected slice identity: task=%d table=%s", report.TaskID, report.Table)
			}
			if report.Read != tt.wantRead || report.Written != tt.wantWritten || report.Dirty != tt.wantDirty {
				t.Errorf("read=%d written=%d dirty=%d, expected %d/%d/%d",
					report.Read, report.Written, report.Dirty, tt.wantRead, tt.wantWritten, tt.wantDirty)
			}
			if int64(len(report.Causes)) != min(tt.wantDirty, maxKeptCauses) {
				t.Errorf("Expected %d causes, got %d", tt.wantDirty, len(report.Causes))
			}
			if env.log.index("readerTask.Destroy") < 0 || env.log.index("writerTask.Destroy") < 0 {
				t.Errorf("Both tasks should be destroyed, calls: %v", env.log.list())
			}
		})
	}
}

func TestTaskPipeline_WriterFailureUnblocksReader(t *testing.T) {
	env := &fakeEnv{log: &callLog{}}
	p := newPipeline(env, fakeOptions{records: 1000, writeErr: errs.New(errs.Connect, "模拟连接失败")}, 1)

	done := make(chan TaskReport)
	go func() { done <- p.Run(context.Background()) }()
	select {
	case report := <-done:
		if !errs.Is(report.Err, errs.Connect) {
			t.Errorf("Expected Connect error, got: %v", report.Err)
		}
		if report.Written != 0 {
			t.Errorf("Failed task should report 0 written, got %d", report.Written)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Reader should stop once the writer fails")
	}
}

func TestTaskPipeline_WrittenKeepsCommittedRows(t *testing.T) {
	env := &fakeEnv{log: &callLog{}}
	p := newPipeline(env, fakeOptions{records: 100, failAfter: 30}, 1)

	report := p.Run(context.Background())
	if !errs.Is(report.Err, errs.Connect) {
		t.Fatalf("Expected Connect error, got: %v", report.Err)
	}
	if report.Written != 30 {
		t.Errorf("Committed rows should be reported, got %d written", report.Written)
	}
}

func TestTaskPipeline_CancelledContext(t *testing.T) {
	env := &fakeEnv{log: &callLog{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := newPipeline(env, fakeOptions{records: 100}, 1).Run(ctx)
	if report.Err == nil {
		t.Fatal("A cancelled context should fail the task")
	}
}
