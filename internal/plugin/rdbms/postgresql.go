package rdbms

import (
	"fmt"
	neturl "net/url"
	"strings"

	"github.com/lib/pq"

	"datasync/internal/pkg/errs"
	"datasync/internal/plugin/coerce"
)

// PostgreSQL 方言，参数以文本传输，按字段类型显式转换
type PostgreSQL struct{}

func (PostgreSQL) Name() string       { return "postgresql" }
func (PostgreSQL) DriverName() string { return "postgres" }

// DSN 支持 postgres:// URL 与 key=value 两种格式
func (PostgreSQL) DSN(url, username, password string) (string, error) {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		u, err := neturl.Parse(url)
		if err != nil {
			return "", errs.Wrap(errs.IllegalValue, err, "PostgreSQL连接串格式错误: %s", url)
		}
		if username != "" {
			u.User = neturl.UserPassword(username, password)
		}
		dsn, err := pq.ParseURL(u.String())
		if err != nil {
			return "", errs.Wrap(errs.IllegalValue, err, "PostgreSQL连接串格式错误: %s", url)
		}
		return dsn, nil
	}

	dsn := strings.TrimSpace(url)
	if username != "" {
		dsn += " user=" + quoteConnValue(username)
	}
	if password != "" {
		dsn += " password=" + quoteConnValue(password)
	}
	return strings.TrimSpace(dsn), nil
}

// quoteConnValue 按 libpq 规则给连接参数加引号
func quoteConnValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func (PostgreSQL) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

// ValueHolder serial 类转为对应整数类型，bit 转为 bit varying，其余按原生类型转换
func (PostgreSQL) ValueHolder(placeholder string, meta coerce.ColumnMeta) string {
	native := strings.ToLower(strings.TrimSpace(meta.NativeName))
	switch native {
	case "":
		return placeholder
	case "serial":
		return placeholder + "::int"
	case "bigserial":
		return placeholder + "::int8"
	case "bit":
		return placeholder + "::bit varying"
	}
	return placeholder + "::" + native
}

func (PostgreSQL) MapType(native string) coerce.SQLType { return genericType(native) }

func (PostgreSQL) Policy(emptyAsNull bool) coerce.Policy {
	return coerce.Policy{EmptyAsNull: emptyAsNull}
}

func (PostgreSQL) Limits() (int, int) { return 0, 65535 }

func (d PostgreSQL) WriteSQL(table string, columns []string, mode WriteMode, rows []string) (string, error) {
	switch mode.Kind {
	case ModeInsert:
		return insertSQL("INSERT INTO", table, columns, rows), nil
	case ModeUpdate:
		return insertSQL("INSERT INTO", table, columns, rows) + onConflict(columns, mode.Keys, "EXCLUDED"), nil
	default:
		return "", unsupportedMode(d, mode)
	}
}

// onConflict 生成 ON CONFLICT (keys) DO UPDATE SET 子句，没有非主键列时忽略冲突
func onConflict(columns, keys []string, excluded string) string {
	rest := nonKeyColumns(columns, keys)
	clause := " ON CONFLICT (" + strings.Join(keys, ",") + ")"
	if len(rest) == 0 {
		return clause + " DO NOTHING"
	}
	sets := make([]string, len(rest))
	for i, c := range rest {
		sets[i] = c + "=" + excluded + "." + c
	}
	return clause + " DO UPDATE SET " + strings.Join(sets, ",")
}
