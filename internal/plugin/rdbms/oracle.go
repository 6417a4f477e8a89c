package rdbms

import (
	neturl "net/url"
	"strconv"
	"strings"

	go_ora "github.com/sijms/go-ora/v2"

	"datasync/internal/element"
	"datasync/internal/pkg/errs"
	"datasync/internal/plugin/coerce"
)

// Oracle 方言，每条语句只写一行
type Oracle struct{}

func (Oracle) Name() string       { return "oracle" }
func (Oracle) DriverName() string { return "oracle" }

// DSN 连接串形如 oracle://host:port/service?options 或 host:port/service
func (Oracle) DSN(url, username, password string) (string, error) {
	raw := url
	if !strings.Contains(raw, "://") {
		raw = "oracle://" + raw
	}
	u, err := neturl.Parse(raw)
	if err != nil {
		return "", errs.Wrap(errs.IllegalValue, err, "Oracle连接串格式错误: %s", url)
	}
	port := 1521
	if p := u.Port(); p != "" {
		if port, err = strconv.Atoi(p); err != nil {
			return "", errs.Wrap(errs.IllegalValue, err, "Oracle端口格式错误: %s", url)
		}
	}
	if username == "" && u.User != nil {
		username = u.User.Username()
		password, _ = u.User.Password()
	}
	var options map[string]string
	for k, v := range u.Query() {
		if options == nil {
			options = map[string]string{}
		}
		if len(v) > 0 {
			options[k] = v[0]
		}
	}
	service := strings.TrimPrefix(u.Path, "/")
	return go_ora.BuildUrl(u.Hostname(), port, service, username, password, options), nil
}

func (Oracle) Placeholder(n int) string { return ordinal(":")(n) }

func (Oracle) ValueHolder(placeholder string, _ coerce.ColumnMeta) string { return placeholder }

func (Oracle) MapType(native string) coerce.SQLType { return genericType(native) }

func (Oracle) Policy(emptyAsNull bool) coerce.Policy {
	return coerce.Policy{EmptyAsNull: emptyAsNull}
}

func (Oracle) Limits() (int, int) { return 1, 1000 }

// WriteSQL update 模式生成 MERGE，参数顺序为主键、非主键、全部列
func (d Oracle) WriteSQL(table string, columns []string, mode WriteMode, rows []string) (string, error) {
	switch mode.Kind {
	case ModeInsert:
		return insertSQL("INSERT INTO", table, columns, rows), nil
	case ModeUpdate:
		if len(rows) != 1 {
			return "", errs.New(errs.Runtime, "Oracle MERGE 每条语句只能写一行")
		}
		return oracleMerge(table, columns, mode.Keys)
	default:
		return "", unsupportedMode(d, mode)
	}
}

// MergePermutation 记录列到 MERGE 绑定参数的排列：主键、非主键、再按原序的全部列
func (Oracle) MergePermutation(columns, keys []string) ([]int, error) {
	keyFirst, err := element.KeyFirstPermutation(columns, keys)
	if err != nil {
		return nil, err
	}
	perm := make([]int, 0, 2*len(columns))
	perm = append(perm, keyFirst...)
	for i := range columns {
		perm = append(perm, i)
	}
	return perm, nil
}

func oracleMerge(table string, columns, keys []string) (string, error) {
	keyFirst, err := element.KeyFirstPermutation(columns, keys)
	if err != nil {
		return "", err
	}
	ordered := element.PermuteStrings(columns, keyFirst)
	keyCount := len(columns) - len(nonKeyColumns(columns, keys))
	n := 0
	next := func() string {
		n++
		return ":" + strconv.Itoa(n)
	}

	on := make([]string, keyCount)
	for i, k := range ordered[:keyCount] {
		on[i] = "T." + k + " = " + next()
	}
	sets := make([]string, 0, len(ordered)-keyCount)
	for _, c := range ordered[keyCount:] {
		sets = append(sets, "T."+c+" = "+next())
	}
	values := make([]string, len(columns))
	for i := range columns {
		values[i] = next()
	}

	var b strings.Builder
	b.WriteString("MERGE INTO ")
	b.WriteString(table)
	b.WriteString(" T USING DUAL ON (")
	b.WriteString(strings.Join(on, " AND "))
	b.WriteString(")")
	if len(sets) > 0 {
		b.WriteString(" WHEN MATCHED THEN UPDATE SET ")
		b.WriteString(strings.Join(sets, ", "))
	}
	b.WriteString(" WHEN NOT MATCHED THEN INSERT (")
	b.WriteString(strings.Join(columns, ","))
	b.WriteString(") VALUES (")
	b.WriteString(strings.Join(values, ","))
	b.WriteString(")")
	return b.String(), nil
}

// merger 写入时需要重排参数的方言
type merger interface {
	MergePermutation(columns, keys []string) ([]int, error)
}

var _ merger = Oracle{}
