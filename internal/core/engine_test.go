package core

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"datasync/internal/pkg/errs"
)

func TestJobContainer_Start_Success(t *testing.T) {
	registry, env := newFakeRegistry(fakeOptions{records: 100})
	container := NewJobContainer(newJobConfig(3), registry, nil)

	report, err := container.Start(context.Background())
	if err != nil {
		t.Fatalf("Start should succeed, got: %v", err)
	}
	if len(report.Tasks) != 3 {
		t.Errorf("Expected 3 tasks, got %d", len(report.Tasks))
	}
	if report.Read != 300 || report.Written != 300 || report.Dirty != 0 {
		t.Errorf("Unexpected report: read=%d written=%d dirty=%d", report.Read, report.Written, report.Dirty)
	}
	if env.Written() != 300 {
		t.Errorf("Writer received %d records, expected 300", env.Written())
	}
	if report.JobID != container.JobID() {
		t.Errorf("Report job id %s does not match container %s", report.JobID, container.JobID())
	}
}

func TestJobContainer_LifecycleOrder(t *testing.T) {
	registry, env := newFakeRegistry(fakeOptions{records: 1})
	if _, err := NewJobContainer(newJobConfig(1), registry, nil).Start(context.Background()); err != nil {
		t.Fatalf("Start should succeed, got: %v", err)
	}

	order := []string{
		"reader.Init", "writer.Init",
		"reader.Prepare", "writer.Prepare",
		"reader.Split", "writer.Split",
		"writer.Post", "reader.Post",
		"writer.Destroy", "reader.Destroy",
	}
	last := -1
	for _, call := range order {
		i := env.log.index(call)
		if i < 0 {
			t.Fatalf("%s was not called, calls: %v", call, env.log.list())
		}
		if i < last {
			t.Errorf("%s called out of order, calls: %v", call, env.log.list())
		}
		last = i
	}
	if env.log.index("writerTask.Destroy") > env.log.index("writer.Post") {
		t.Errorf("Task destroy should happen before job post, calls: %v", env.log.list())
	}
}

func TestJobContainer_SplitMismatch(t *testing.T) {
	registry, env := newFakeRegistry(fakeOptions{records: 1, writerExtraSlices: 1})
	_, err := NewJobContainer(newJobConfig(2), registry, nil).Start(context.Background())
	if !errs.Is(err, errs.SplitMismatch) {
		t.Fatalf("Expected SplitMismatch, got: %v", err)
	}
	if env.log.index("writer.Destroy") < 0 || env.log.index("reader.Destroy") < 0 {
		t.Errorf("Destroy should always run, calls: %v", env.log.list())
	}
	if env.log.index("writerTask.Destroy") >= 0 {
		t.Errorf("No task should be scheduled after a split mismatch")
	}
}

func TestJobContainer_ErrorLimit(t *testing.T) {
	tests := []struct {
		name       string
		record     int
		percentage float64
		wantErr    bool
	}{
		{name: "未设置阈值", wantErr: false},
		{name: "条数未超限", record: 10, wantErr: false},
		{name: "条数超限", record: 5, wantErr: true},
		{name: "比例未超限", percentage: 0.2, wantErr: false},
		{name: "比例超限", percentage: 0.05, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// 100 条记录中每 10 条有 1 条脏数据
			registry, _ := newFakeRegistry(fakeOptions{records: 100, negativeEvery: 10})
			conf := newJobConfig(1)
			conf.Job.Setting.ErrorLimit = ErrorLimitConfig{Record: tt.record, Percentage: tt.percentage}

			report, err := NewJobContainer(conf, registry, nil).Start(context.Background())
			if report == nil {
				t.Fatalf("Report should be returned, err: %v", err)
			}
			if report.Dirty != 10 || report.Written != 90 {
				t.Errorf("Expected dirty=10 written=90, got dirty=%d written=%d", report.Dirty, report.Written)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("wantErr=%v, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestJobContainer_WriterFailure(t *testing.T) {
	registry, env := newFakeRegistry(fakeOptions{records: 10000, writeErr: errs.New(errs.Connect, "模拟连接失败")})
	conf := newJobConfig(2)
	conf.Job.Setting.ChannelCapacity = 1

	done := make(chan struct{})
	var err error
	go func() {
		defer close(done)
		_, err = NewJobContainer(conf, registry, nil).Start(context.Background())
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Reader should unblock when the writer fails")
	}
	if !errs.Is(err, errs.Connect) {
		t.Errorf("Expected Connect error, got: %v", err)
	}
	if env.log.index("writer.Post") >= 0 {
		t.Errorf("Post should not run after a failed task, calls: %v", env.log.list())
	}
	if env.log.index("writer.Destroy") < 0 {
		t.Errorf("Destroy should run after a failed task, calls: %v", env.log.list())
	}
}

func TestJobContainer_ReportsRootCause(t *testing.T) {
	// 任务0持续运行直到被取消，任务1的写端因列数不匹配失败
	registry, _ := newFakeRegistry(fakeOptions{
		records:    5,
		holdReader: true,
		failOnTask: map[int]error{1: errs.New(errs.ColumnMismatch, "模拟列数不匹配")},
	})
	report, err := NewJobContainer(newJobConfig(2), registry, nil).Start(context.Background())
	if !errs.Is(err, errs.ColumnMismatch) {
		t.Fatalf("Expected the ColumnMismatch cause, got: %v", err)
	}
	if !strings.Contains(err.Error(), "任务[1]") {
		t.Errorf("Error should locate the failed task, got: %v", err)
	}
	if report == nil || len(report.Tasks) != 2 {
		t.Fatalf("Report should hold both tasks, got: %+v", report)
	}
	if !errs.IsCanceled(report.Tasks[0].Err) {
		t.Errorf("Task 0 should be cancelled, got: %v", report.Tasks[0].Err)
	}
}

func TestRootCause(t *testing.T) {
	fatal := errs.New(errs.Connect, "连接失败")
	canceled := errs.Wrap(errs.Runtime, context.Canceled, "任务取消")
	tests := []struct {
		name    string
		poolErr error
		reports []TaskReport
		want    error
	}{
		{name: "没有错误", reports: []TaskReport{{}, {}}},
		{name: "跳过排在前面的取消错误", poolErr: canceled, reports: []TaskReport{{Err: canceled}, {Err: fatal}}, want: fatal},
		{name: "优先使用工作池的第一个错误", poolErr: fatal, reports: []TaskReport{{Err: canceled}, {Err: canceled}}, want: fatal},
		{name: "只有取消错误", poolErr: canceled, reports: []TaskReport{{Err: canceled}}, want: canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rootCause(tt.poolErr, tt.reports); got != tt.want {
				t.Errorf("rootCause = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPerChannel(t *testing.T) {
	tests := []struct {
		name            string
		limit, channels int
		want            int
	}{
		{name: "未限速", limit: 0, channels: 4, want: 0},
		{name: "均分", limit: 100, channels: 4, want: 25},
		{name: "小于通道数时至少为1", limit: 3, channels: 4, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := perChannel(tt.limit, tt.channels); got != tt.want {
				t.Errorf("perChannel(%d, %d) = %d, want %d", tt.limit, tt.channels, got, tt.want)
			}
		})
	}
}

func TestJobContainer_ValidationFailure(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *JobConfig)
	}{
		{name: "未注册的Reader", modify: func(c *JobConfig) { c.Job.Content[0].Reader.Name = "nosuchreader" }},
		{name: "缺少Writer必填参数", modify: func(c *JobConfig) { c.Job.Content[0].Writer.Parameter = map[string]any{} }},
		{name: "通道数为负", modify: func(c *JobConfig) { c.Job.Setting.Speed.Channel = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry, env := newFakeRegistry(fakeOptions{})
			conf := newJobConfig(1)
			tt.modify(conf)
			_, err := NewJobContainer(conf, registry, nil).Start(context.Background())
			if !errs.Is(err, errs.Config) {
				t.Errorf("Expected Config error, got: %v", err)
			}
			if len(env.log.list()) != 0 {
				t.Errorf("No plugin should be touched, calls: %v", env.log.list())
			}
		})
	}
}

func TestJobContainer_StreamToSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec("CREATE TABLE target (id BIGINT, name VARCHAR(20))"); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	registry := NewPluginRegistry()
	if err := NewPluginManager(registry).RegisterAllPlugins(); err != nil {
		t.Fatalf("Failed to register plugins: %v", err)
	}
	conf := &JobConfig{}
	conf.Job.Content = []ContentConfig{{
		Reader: PluginConfig{Name: "streamreader", Parameter: map[string]any{
			"column":           []any{map[string]any{"type": "long", "value": 7}, map[string]any{"type": "string", "value": "x"}},
			"sliceRecordCount": 25,
		}},
		Writer: PluginConfig{Name: "sqlitewriter", Parameter: map[string]any{
			"connection": []any{map[string]any{"url": path, "table": []any{"target"}}},
			"column":     []any{"id", "name"},
			"batchSize":  10,
			"preSql":     []any{"DELETE FROM @table"},
		}},
	}}
	conf.Job.Setting.Speed.Channel = 4

	report, err := NewJobContainer(conf, registry, nil).Start(context.Background())
	if err != nil {
		t.Fatalf("Job should succeed, got: %v", err)
	}
	if report.Written != 100 {
		t.Errorf("Expected 100 written records, got %d", report.Written)
	}
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM target WHERE id = 7 AND name = 'x'").Scan(&n); err != nil {
		t.Fatalf("Failed to count rows: %v", err)
	}
	if n != 100 {
		t.Errorf("Expected 100 rows in target, got %d", n)
	}
}

func TestJobContainer_StreamToStream(t *testing.T) {
	var out bytes.Buffer
	registry := NewPluginRegistry()
	pm := NewPluginManager(registry)
	pm.SetOutput(&out)
	if err := pm.RegisterAllPlugins(); err != nil {
		t.Fatalf("Failed to register plugins: %v", err)
	}

	conf := &JobConfig{}
	conf.Job.Content = []ContentConfig{{
		Reader: PluginConfig{Name: "streamreader", Parameter: map[string]any{
			"column":           []any{map[string]any{"type": "string", "value": "hello"}, map[string]any{"type": "long", "value": 1}},
			"sliceRecordCount": 3,
		}},
		Writer: PluginConfig{Name: "streamwriter", Parameter: map[string]any{"print": true, "fieldDelimiter": "|"}},
	}}

	if _, err := NewJobContainer(conf, registry, nil).Start(context.Background()); err != nil {
		t.Fatalf("Job should succeed, got: %v", err)
	}
	if got := strings.Count(out.String(), "hello|1\n"); got != 3 {
		t.Errorf("Expected 3 printed lines, got %d: %q", got, out.String())
	}
}
