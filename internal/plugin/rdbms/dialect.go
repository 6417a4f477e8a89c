// Package rdbms 实现关系型数据库通用的读写插件，各数据库差异由 Dialect 描述
package rdbms

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"datasync/internal/pkg/errs"
	"datasync/internal/plugin/coerce"
)

// Dialect 数据库方言
type Dialect interface {
	// Name 数据库名称，插件名由它加上 reader/writer 后缀构成
	Name() string
	// DriverName database/sql 注册的驱动名
	DriverName() string
	// DSN 把连接串与账号密码合成驱动可用的数据源
	DSN(url, username, password string) (string, error)
	// Placeholder 第 n 个参数的占位符，n 从1开始
	Placeholder(n int) string
	// ValueHolder 按字段类型包装占位符
	ValueHolder(placeholder string, meta coerce.ColumnMeta) string
	// MapType 把驱动报告的类型名映射为类型码
	MapType(native string) coerce.SQLType
	// Policy 写入时的转换策略
	Policy(emptyAsNull bool) coerce.Policy
	// Limits 单条语句最多的行数与参数个数，0 表示不限
	Limits() (maxRows, maxParams int)
	// WriteSQL 生成写入语句，rows 为多值插入的值组
	WriteSQL(table string, columns []string, mode WriteMode, rows []string) (string, error)
}

// batchTuner 根据服务端参数调整批次大小的方言
type batchTuner interface {
	TuneBatchSize(ctx context.Context, conn *sql.Conn, columns, batchSize int) int
}

// WriteModeKind 写入模式
type WriteModeKind int

const (
	ModeInsert WriteModeKind = iota
	ModeReplace
	ModeUpdate
)

// WriteMode 写入模式及 update 模式下的主键列
type WriteMode struct {
	Kind WriteModeKind
	Keys []string
}

func (m WriteMode) String() string {
	switch m.Kind {
	case ModeReplace:
		return "replace"
	case ModeUpdate:
		return "update(" + strings.Join(m.Keys, ",") + ")"
	default:
		return "insert"
	}
}

var updateModePattern = regexp.MustCompile(`(?i)^update\s*\((.*)\)$`)

// ParseWriteMode 解析 writeMode，支持 insert、replace 与 update(k1,k2)，空串为 insert
func ParseWriteMode(s string) (WriteMode, error) {
	mode := strings.TrimSpace(s)
	switch strings.ToLower(mode) {
	case "", "insert":
		return WriteMode{Kind: ModeInsert}, nil
	case "replace":
		return WriteMode{Kind: ModeReplace}, nil
	}
	m := updateModePattern.FindStringSubmatch(mode)
	if m == nil {
		return WriteMode{}, errs.New(errs.IllegalValue,
			"writeMode 仅支持 insert、replace 或 update(主键列), 当前配置为 [%s]", s)
	}
	var keys []string
	for _, k := range strings.Split(m[1], ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return WriteMode{}, errs.New(errs.IllegalValue, "writeMode [%s] 没有指定主键列", s)
	}
	return WriteMode{Kind: ModeUpdate, Keys: keys}, nil
}

// insertSQL 多值插入语句，verb 如 INSERT INTO、REPLACE INTO
func insertSQL(verb, table string, columns, rows []string) string {
	var b strings.Builder
	b.WriteString(verb)
	b.WriteByte(' ')
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(columns, ","))
	b.WriteString(") VALUES ")
	b.WriteString(strings.Join(rows, ","))
	return b.String()
}

// nonKeyColumns 去掉主键后的列，比较不区分大小写
func nonKeyColumns(columns, keys []string) []string {
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[strings.ToLower(k)] = true
	}
	var out []string
	for _, c := range columns {
		if !isKey[strings.ToLower(c)] {
			out = append(out, c)
		}
	}
	return out
}

func unsupportedMode(d Dialect, mode WriteMode) error {
	return errs.New(errs.IllegalValue, "%s 不支持写入模式 [%s]", d.Name(), mode)
}

func questionMark(int) string { return "?" }

// genericType 通用类型映射，找不到时按字符串处理
func genericType(native string) coerce.SQLType {
	if t := coerce.LookupNativeType(native); t != coerce.TypeUnknown {
		return t
	}
	if strings.TrimSpace(native) == "" {
		return coerce.TypeVarchar
	}
	return coerce.TypeUnknown
}

var dialects = map[string]Dialect{}

func registerDialect(d Dialect) {
	dialects[d.Name()] = d
}

// LookupDialect 按名称查找方言
func LookupDialect(name string) (Dialect, error) {
	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		return nil, errs.New(errs.Config, "不支持的数据库类型: %s", name)
	}
	return d, nil
}

// Dialects 已内置的方言
func Dialects() []Dialect {
	return []Dialect{MySQL{}, PostgreSQL{}, Oracle{}, SQLServer{}, SQLite{}}
}

func init() {
	for _, d := range Dialects() {
		registerDialect(d)
	}
}

// ordinal 生成 prefix+n 形式的占位符
func ordinal(prefix string) func(int) string {
	return func(n int) string { return fmt.Sprintf("%s%d", prefix, n) }
}
