package hbasesql

import (
	"context"
	"database/sql"
	"path/filepath"
	"slices"
	"testing"

	"datasync/internal/config"
	"datasync/internal/element"
	"datasync/internal/pkg/errs"
)

type sliceReceiver struct {
	records []*element.Record
	pos     int
}

func (r *sliceReceiver) GetFromReader(context.Context) (*element.Record, bool) {
	if r.pos >= len(r.records) {
		return nil, false
	}
	rec := r.records[r.pos]
	r.pos++
	return rec, true
}

type mockCollector struct {
	records []*element.Record
	causes  []error
}

func (c *mockCollector) CollectDirtyRecord(r *element.Record, cause error) {
	c.records = append(c.records, r)
	c.causes = append(c.causes, cause)
}

func newTable(t *testing.T) (string, *sql.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wide.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("打开SQLite失败: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec("CREATE TABLE wide (rowkey VARCHAR(32) PRIMARY KEY, cnt BIGINT, score DOUBLE)"); err != nil {
		t.Fatalf("建表失败: %v", err)
	}
	return path, db
}

func runTask(t *testing.T, param map[string]any, records []*element.Record) *mockCollector {
	t.Helper()
	ctx := context.Background()
	job := NewPlugin().NewJob()
	if err := job.Init(config.FromMap(param)); err != nil {
		t.Fatalf("初始化失败: %v", err)
	}
	slices, err := job.Split(ctx, 1)
	if err != nil {
		t.Fatalf("切分失败: %v", err)
	}
	task := NewPlugin().NewTask()
	if err := task.Init(slices[0]); err != nil {
		t.Fatalf("任务初始化失败: %v", err)
	}
	collector := &mockCollector{}
	if err := task.StartWrite(ctx, &sliceReceiver{records: records}, collector); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	return collector
}

func TestHBaseSQLWriter_NullMode(t *testing.T) {
	tests := []struct {
		name      string
		nullMode  string
		wantCnt   sql.NullInt64
		wantScore sql.NullFloat64
	}{
		{name: "skip写为空值", nullMode: "skip"},
		{name: "empty写为零值", nullMode: "empty", wantCnt: sql.NullInt64{Valid: true}, wantScore: sql.NullFloat64{Valid: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, db := newTable(t)
			records := []*element.Record{
				// 只给出行键，其余字段缺失
				element.NewRecord(element.NewStringColumn("r1"), nil, nil),
				// 字段存在但值为空时总是写为空值
				element.NewRecord(element.NewStringColumn("r2"), element.NewNullColumn(), element.NewNullColumn()),
			}
			runTask(t, map[string]any{
				"url": path, "dialect": "sqlite", "table": "wide",
				"column": []any{"rowkey", "cnt", "score"}, "nullMode": tt.nullMode,
			}, records)

			var cnt sql.NullInt64
			var score sql.NullFloat64
			if err := db.QueryRow("SELECT cnt, score FROM wide WHERE rowkey = 'r1'").Scan(&cnt, &score); err != nil {
				t.Fatalf("查询失败: %v", err)
			}
			if cnt != tt.wantCnt || score != tt.wantScore {
				t.Errorf("r1 = (%v, %v), 期望 (%v, %v)", cnt, score, tt.wantCnt, tt.wantScore)
			}
			if err := db.QueryRow("SELECT cnt, score FROM wide WHERE rowkey = 'r2'").Scan(&cnt, &score); err != nil {
				t.Fatalf("查询失败: %v", err)
			}
			if cnt.Valid || score.Valid {
				t.Errorf("r2 应为空值, 实际为 (%v, %v)", cnt, score)
			}
		})
	}
}

func TestHBaseSQLWriter_UpsertAndDirty(t *testing.T) {
	path, db := newTable(t)
	records := []*element.Record{
		element.NewRecord(element.NewStringColumn("k"), element.NewLongColumn(1), element.NewDoubleColumn(1.5)),
		element.NewRecord(element.NewStringColumn("k"), element.NewLongColumn(2), element.NewDoubleColumn(2.5)),
		element.NewRecord(element.NewStringColumn("bad"), element.NewStringColumn("abc"), element.NewDoubleColumn(0)),
	}
	collector := runTask(t, map[string]any{
		"url": path, "dialect": "sqlite", "table": "wide",
		"column": []any{"rowkey", "cnt", "score"},
	}, records)

	if len(collector.records) != 1 || !errs.Is(collector.causes[0], errs.Convert) {
		t.Fatalf("期望1条转换失败的脏数据, 实际 %d 条: %v", len(collector.records), collector.causes)
	}
	var cnt int64
	if err := db.QueryRow("SELECT cnt FROM wide WHERE rowkey = 'k'").Scan(&cnt); err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if cnt != 2 {
		t.Errorf("同一行键应被覆盖, cnt = %d, 期望 2", cnt)
	}
}

func TestHBaseSQLWriter_ColumnCountMismatch(t *testing.T) {
	tests := []struct {
		name   string
		record *element.Record
	}{
		{name: "记录列数少于配置", record: element.NewRecord(element.NewStringColumn("short"))},
		{name: "记录列数多于配置", record: element.NewRecord(element.NewStringColumn("long"), element.NewLongColumn(1),
			element.NewDoubleColumn(1), element.NewStringColumn("extra"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, db := newTable(t)
			ctx := context.Background()
			task := NewPlugin().NewTask()
			if err := task.Init(config.FromMap(map[string]any{
				"url": path, "dialect": "sqlite", "table": "wide",
				"column": []any{"rowkey", "cnt", "score"}, "nullMode": "empty",
			})); err != nil {
				t.Fatalf("任务初始化失败: %v", err)
			}
			records := []*element.Record{
				element.NewRecord(element.NewStringColumn("ok"), element.NewLongColumn(1), element.NewDoubleColumn(1)),
				tt.record,
			}
			collector := &mockCollector{}
			err := task.StartWrite(ctx, &sliceReceiver{records: records}, collector)
			if !errs.Is(err, errs.ColumnMismatch) {
				t.Fatalf("期望 ColumnMismatch 错误, 实际为 %v", err)
			}
			if len(collector.records) != 0 {
				t.Errorf("列数不匹配不应产生脏数据, 实际 %d 条", len(collector.records))
			}
			var n int
			if err := db.QueryRow("SELECT COUNT(*) FROM wide").Scan(&n); err != nil {
				t.Fatalf("查询失败: %v", err)
			}
			if n != 0 {
				t.Errorf("任务失败时不应提交记录, 实际 %d 行", n)
			}
		})
	}
}

func TestHBaseSQLWriter_InitErrors(t *testing.T) {
	tests := []struct {
		name  string
		param map[string]any
		code  errs.Code
	}{
		{name: "缺少地址", param: map[string]any{"table": "t", "column": []any{"a"}}, code: errs.RequiredValue},
		{name: "未知网关", param: map[string]any{"url": "x", "table": "t", "column": []any{"a"}, "dialect": "hive"}, code: errs.IllegalValue},
		{name: "非法nullMode", param: map[string]any{"url": "x", "table": "t", "column": []any{"a"}, "dialect": "sqlite", "nullMode": "zero"}, code: errs.IllegalValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewPlugin().NewJob().Init(config.FromMap(tt.param))
			if !errs.Is(err, tt.code) {
				t.Errorf("期望错误码 %s，实际为 %v", tt.code.Name, err)
			}
		})
	}
}

func TestPhoenix_DefaultGateway(t *testing.T) {
	job := NewPlugin().NewJob()
	err := job.Init(config.FromMap(map[string]any{"url": "http://pqs:8765", "table": "T", "column": []any{"ROWKEY"}}))
	if err != nil {
		t.Fatalf("默认网关应可初始化, 实际为 %v", err)
	}
	if !slices.Contains(sql.Drivers(), Phoenix{}.DriverName()) {
		t.Errorf("avatica 驱动未注册: %v", sql.Drivers())
	}
}

func TestPhoenix_SQL(t *testing.T) {
	query, err := upsertSQL(Phoenix{}, "T", []string{"ROWKEY", "V"})
	if err != nil {
		t.Fatalf("生成语句失败: %v", err)
	}
	if want := "UPSERT INTO T (ROWKEY,V) VALUES (?,?)"; query != want {
		t.Errorf("语句 = %s, 期望 %s", query, want)
	}

	dsn, err := Phoenix{}.DSN("http://pqs:8765", "u", "p")
	if err != nil {
		t.Fatalf("生成DSN失败: %v", err)
	}
	if want := "http://pqs:8765?authentication=BASIC&avaticaPassword=p&avaticaUser=u"; dsn != want {
		t.Errorf("DSN = %s, 期望 %s", dsn, want)
	}
	if _, err := (Phoenix{}).DSN("pqs:8765", "", ""); !errs.Is(err, errs.IllegalValue) {
		t.Errorf("缺少协议的地址应报错, 实际为 %v", err)
	}
}
