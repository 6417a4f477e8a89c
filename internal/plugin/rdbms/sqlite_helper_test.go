package rdbms

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"datasync/internal/config"
	"datasync/internal/element"
)

// newSQLiteFile 在临时目录创建数据库文件并执行建表语句
func newSQLiteFile(t *testing.T, ddl ...string) (string, *sql.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("打开SQLite失败: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	for _, stmt := range ddl {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("执行 %s 失败: %v", stmt, err)
		}
	}
	return path, db
}

func countRows(t *testing.T, db *sql.DB, query string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query).Scan(&n); err != nil {
		t.Fatalf("查询 %s 失败: %v", query, err)
	}
	return n
}

func mustConf(t *testing.T, m map[string]any) *config.Configuration {
	t.Helper()
	conf, err := config.FromAny(m)
	if err != nil {
		t.Fatalf("构造配置失败: %v", err)
	}
	return conf
}

// sliceReceiver 按顺序返回预置记录
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

// sliceSender 收集读任务发送的记录
type sliceSender struct {
	mu      sync.Mutex
	records []*element.Record
}

func (s *sliceSender) SendToWriter(_ context.Context, r *element.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

func (s *sliceSender) Terminate() {}

// mockCollector 收集脏数据
type mockCollector struct {
	records []*element.Record
	causes  []error
}

func (c *mockCollector) CollectDirtyRecord(r *element.Record, cause error) {
	c.records = append(c.records, r)
	c.causes = append(c.causes, cause)
}

func row(id int64, name string) *element.Record {
	return element.NewRecord(element.NewLongColumn(id), element.NewStringColumn(name))
}
