package rdbms

import (
	"strings"

	"datasync/internal/plugin/coerce"
)

// sqliteBusyTimeout 并发写同一文件时的等待时间
const sqliteBusyTimeout = "_pragma=busy_timeout(5000)"

// SQLite 方言，使用纯Go实现的 modernc.org/sqlite 驱动
type SQLite struct{}

func (SQLite) Name() string       { return "sqlite" }
func (SQLite) DriverName() string { return "sqlite" }

// DSN 连接串为文件路径或 file: URI，账号密码不生效
func (SQLite) DSN(url, _, _ string) (string, error) {
	dsn := strings.TrimPrefix(url, "sqlite://")
	if strings.Contains(dsn, "busy_timeout") {
		return dsn, nil
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqliteBusyTimeout, nil
	}
	return dsn + "?" + sqliteBusyTimeout, nil
}

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) ValueHolder(placeholder string, _ coerce.ColumnMeta) string { return placeholder }

// MapType 先按通用类型名查找，找不到时按 SQLite 类型亲和规则推断
func (SQLite) MapType(native string) coerce.SQLType {
	if t := genericType(native); t != coerce.TypeUnknown {
		return t
	}
	name := strings.ToUpper(native)
	switch {
	case strings.Contains(name, "INT"):
		return coerce.TypeBigInt
	case strings.Contains(name, "CHAR"), strings.Contains(name, "CLOB"), strings.Contains(name, "TEXT"):
		return coerce.TypeVarchar
	case strings.Contains(name, "BLOB"):
		return coerce.TypeBlob
	case strings.Contains(name, "REAL"), strings.Contains(name, "FLOA"), strings.Contains(name, "DOUB"):
		return coerce.TypeDouble
	}
	return coerce.TypeUnknown
}

func (SQLite) Policy(emptyAsNull bool) coerce.Policy {
	return coerce.Policy{EmptyAsNull: emptyAsNull}
}

func (SQLite) Limits() (int, int) { return 0, 32766 }

func (d SQLite) WriteSQL(table string, columns []string, mode WriteMode, rows []string) (string, error) {
	switch mode.Kind {
	case ModeInsert:
		return insertSQL("INSERT INTO", table, columns, rows), nil
	case ModeReplace:
		return insertSQL("INSERT OR REPLACE INTO", table, columns, rows), nil
	default:
		return insertSQL("INSERT INTO", table, columns, rows) + onConflict(columns, mode.Keys, "excluded"), nil
	}
}
