package rdbms

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-sql-driver/mysql"

	"datasync/internal/pkg/errs"
	"datasync/internal/plugin/coerce"
)

// mysqlMaxPlaceholders MySQL预编译语句占位符限制
const mysqlMaxPlaceholders = 65535

// MySQL 方言
type MySQL struct{}

func (MySQL) Name() string       { return "mysql" }
func (MySQL) DriverName() string { return "mysql" }

// DSN 解析 go-sql-driver 格式的连接串，补充账号并打开 parseTime
func (MySQL) DSN(url, username, password string) (string, error) {
	cfg, err := mysql.ParseDSN(strings.TrimPrefix(url, "mysql://"))
	if err != nil {
		return "", errs.Wrap(errs.IllegalValue, err, "MySQL连接串格式错误: %s", url)
	}
	if username != "" {
		cfg.User = username
	}
	if password != "" {
		cfg.Passwd = password
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func (MySQL) Placeholder(int) string { return "?" }

func (MySQL) ValueHolder(placeholder string, _ coerce.ColumnMeta) string { return placeholder }

func (MySQL) MapType(native string) coerce.SQLType { return genericType(native) }

func (MySQL) Policy(emptyAsNull bool) coerce.Policy {
	return coerce.Policy{EmptyAsNull: emptyAsNull, BitAsBool: true}
}

func (MySQL) Limits() (int, int) { return 0, mysqlMaxPlaceholders }

func (d MySQL) WriteSQL(table string, columns []string, mode WriteMode, rows []string) (string, error) {
	switch mode.Kind {
	case ModeInsert:
		return insertSQL("INSERT INTO", table, columns, rows), nil
	case ModeReplace:
		return insertSQL("REPLACE INTO", table, columns, rows), nil
	default:
		sets := make([]string, len(columns))
		for i, c := range columns {
			sets[i] = c + "=VALUES(" + c + ")"
		}
		return insertSQL("INSERT INTO", table, columns, rows) +
			" ON DUPLICATE KEY UPDATE " + strings.Join(sets, ","), nil
	}
}

// TuneBatchSize 按 max_allowed_packet 估算安全的批次大小，只会调小
func (MySQL) TuneBatchSize(ctx context.Context, conn *sql.Conn, columns, batchSize int) int {
	if columns <= 0 {
		return batchSize
	}
	safe := mysqlMaxPlaceholders / columns

	var name string
	var maxAllowedPacket int64
	err := conn.QueryRowContext(ctx, "SHOW VARIABLES LIKE 'max_allowed_packet'").Scan(&name, &maxAllowedPacket)
	if err != nil {
		maxAllowedPacket = 4 * 1024 * 1024
	}

	// 每个字段平均100字节，每行额外20字节，预留20%
	estimatedRowSize := columns*100 + 20
	byPacket := int(float64(maxAllowedPacket) * 0.8 / float64(estimatedRowSize))
	safe = min(safe, byPacket)
	safe = max(safe, 1)
	if batchSize > safe {
		return safe
	}
	return batchSize
}

var _ batchTuner = MySQL{}
