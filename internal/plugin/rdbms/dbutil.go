package rdbms

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"datasync/internal/pkg/errs"
	"datasync/internal/pkg/logger"
	"datasync/internal/plugin/coerce"
	"datasync/internal/plugin/common"
)

// Queryer 可执行查询的连接，*sql.DB、*sql.Conn 与 *sql.Tx 均满足
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Execer 可执行语句的连接
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// OpenDB 打开数据库并检查连通性
func OpenDB(ctx context.Context, d Dialect, url, username, password string) (*sql.DB, error) {
	dsn, err := d.DSN(url, username, password)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, errs.Wrap(errs.Connect, err, "打开%s连接失败: %s", d.Name(), url)
	}

	// 每个任务只占用一个会话
	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.Connect, err, "连接%s失败: %s", d.Name(), url)
	}
	return db, nil
}

// OpenConn 打开数据库并取出一个专用会话，关闭函数会同时释放会话与连接池
func OpenConn(ctx context.Context, d Dialect, url, username, password string) (*sql.Conn, func(), error) {
	db, err := OpenDB(ctx, d, url, username, password)
	if err != nil {
		return nil, nil, err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, nil, errs.Wrap(errs.Connect, err, "获取%s会话失败: %s", d.Name(), url)
	}
	return conn, func() {
		_ = conn.Close()
		_ = db.Close()
	}, nil
}

// ExecuteSQLs 依次执行语句，任何一条失败即返回
func ExecuteSQLs(ctx context.Context, conn Execer, sqls []string, l *logger.Logger) error {
	for _, s := range sqls {
		if strings.TrimSpace(s) == "" {
			continue
		}
		if l != nil {
			l.Info("执行SQL: %s", s)
		}
		if _, err := conn.ExecContext(ctx, s); err != nil {
			return errs.Wrap(errs.ExecSQL, err, "执行SQL失败: %s", s)
		}
	}
	return nil
}

// RenderSQLs 把语句中的表名占位符替换为实际表名
func RenderSQLs(sqls []string, table string) []string {
	out := make([]string, 0, len(sqls))
	for _, s := range sqls {
		out = append(out, strings.ReplaceAll(s, common.TablePlaceholder, table))
	}
	return out
}

// DescribeColumns 通过空结果查询获取字段类型，顺序与 columns 一致
func DescribeColumns(ctx context.Context, conn Queryer, d Dialect, table string, columns []string) ([]coerce.ColumnMeta, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE 1=2", strings.Join(columns, ","), table)
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, errs.Wrap(errs.ExecSQL, err, "获取表[%s]字段信息失败: %s", table, query)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, errs.Wrap(errs.ExecSQL, err, "获取表[%s]字段信息失败", table)
	}
	metas := make([]coerce.ColumnMeta, len(types))
	for i, ct := range types {
		name := ct.Name()
		if len(columns) == len(types) && columns[i] != "*" {
			name = columns[i]
		}
		native := ct.DatabaseTypeName()
		metas[i] = coerce.ColumnMeta{Name: name, Type: d.MapType(native), NativeName: native}
	}
	return metas, nil
}

// ExpandColumns 列配置为 ["*"] 时展开为表的全部列
func ExpandColumns(ctx context.Context, conn Queryer, d Dialect, table string, columns []string) ([]string, error) {
	if len(columns) != 1 || strings.TrimSpace(columns[0]) != "*" {
		return columns, nil
	}
	metas, err := DescribeColumns(ctx, conn, d, table, []string{"*"})
	if err != nil {
		return nil, err
	}
	names := make([]string, len(metas))
	for i, m := range metas {
		names[i] = m.Name
	}
	return names, nil
}
