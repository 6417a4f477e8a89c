package hbasesql

import (
	"net/url"
	"strings"

	"datasync/internal/pkg/errs"
	"datasync/internal/plugin/coerce"
	"datasync/internal/plugin/rdbms"
)

// Phoenix 通过 Phoenix Query Server 访问 HBase 的方言，驱动名为 avatica
type Phoenix struct{}

var _ rdbms.Dialect = Phoenix{}

func (Phoenix) Name() string       { return "phoenix" }
func (Phoenix) DriverName() string { return "avatica" }

// DSN 在 Query Server 地址上追加 BASIC 认证参数
func (Phoenix) DSN(raw, username, password string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", errs.New(errs.IllegalValue, "Phoenix Query Server 地址不合法: %s", raw)
	}
	if username != "" {
		q := u.Query()
		q.Set("authentication", "BASIC")
		q.Set("avaticaUser", username)
		q.Set("avaticaPassword", password)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (Phoenix) Placeholder(int) string { return "?" }

func (Phoenix) ValueHolder(placeholder string, _ coerce.ColumnMeta) string { return placeholder }

func (Phoenix) MapType(native string) coerce.SQLType {
	return coerce.LookupNativeType(native)
}

func (Phoenix) Policy(emptyAsNull bool) coerce.Policy {
	return coerce.Policy{EmptyAsNull: emptyAsNull}
}

// Limits Phoenix 不支持多值 VALUES
func (Phoenix) Limits() (int, int) { return 1, 0 }

// WriteSQL Phoenix 只有 UPSERT，所有写入模式都按主键覆盖
func (Phoenix) WriteSQL(table string, columns []string, _ rdbms.WriteMode, rows []string) (string, error) {
	if len(rows) != 1 {
		return "", errs.New(errs.IllegalValue, "Phoenix 每条 UPSERT 只能写入一行")
	}
	return "UPSERT INTO " + table + " (" + strings.Join(columns, ",") + ") VALUES " + rows[0], nil
}
