package rdbms

import (
	neturl "net/url"

	"github.com/microsoft/go-mssqldb/msdsn"

	"datasync/internal/pkg/errs"
	"datasync/internal/plugin/coerce"
)

// SQLServer 方言，多值插入最多1000行、每条语句最多2100个参数
type SQLServer struct{}

func (SQLServer) Name() string       { return "sqlserver" }
func (SQLServer) DriverName() string { return "sqlserver" }

// DSN 连接串形如 sqlserver://host:port?database=db
func (SQLServer) DSN(url, username, password string) (string, error) {
	u, err := neturl.Parse(url)
	if err != nil || u.Scheme != "sqlserver" {
		return "", errs.New(errs.IllegalValue, "SQLServer连接串格式错误, 应形如 sqlserver://host:port?database=db: %s", url)
	}
	if username != "" {
		u.User = neturl.UserPassword(username, password)
	}
	dsn := u.String()
	if _, err := msdsn.Parse(dsn); err != nil {
		return "", errs.Wrap(errs.IllegalValue, err, "SQLServer连接串格式错误: %s", url)
	}
	return dsn, nil
}

func (SQLServer) Placeholder(n int) string { return ordinal("@p")(n) }

func (SQLServer) ValueHolder(placeholder string, _ coerce.ColumnMeta) string { return placeholder }

func (SQLServer) MapType(native string) coerce.SQLType { return genericType(native) }

func (SQLServer) Policy(emptyAsNull bool) coerce.Policy {
	return coerce.Policy{EmptyAsNull: emptyAsNull}
}

func (SQLServer) Limits() (int, int) { return 1000, 2100 }

func (d SQLServer) WriteSQL(table string, columns []string, mode WriteMode, rows []string) (string, error) {
	if mode.Kind != ModeInsert {
		return "", unsupportedMode(d, mode)
	}
	return insertSQL("INSERT INTO", table, columns, rows), nil
}
