package rdbms

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"datasync/internal/config"
	"datasync/internal/element"
	"datasync/internal/pkg/errs"
	"datasync/internal/pkg/logger"
	"datasync/internal/plugin/coerce"
	"datasync/internal/plugin/common"
)

// NewReaderPlugin 创建指定方言的读插件
func NewReaderPlugin(d Dialect) common.ReaderPlugin {
	return common.ReaderPlugin{
		Description: fmt.Sprintf("%s 读取插件，支持按 splitPk 范围切分", d.Name()),
		Required:    []string{common.KeyConnection},
		NewJob:      func() common.ReaderJob { return &ReaderJob{dialect: d} },
		NewTask:     func() common.ReaderTask { return &ReaderTask{dialect: d} },
	}
}

// ReaderJob 读插件作业阶段
type ReaderJob struct {
	dialect Dialect
	conf    *config.Configuration
	logger  *logger.Logger
}

// Init 校验连接配置：每个连接需配置 table 或 querySql 之一
func (j *ReaderJob) Init(conf *config.Configuration) error {
	j.conf = conf
	j.logger = logger.Default().With(j.dialect.Name() + "reader")

	connections := conf.GetListConfiguration(common.KeyConnection)
	if len(connections) == 0 {
		return errs.New(errs.RequiredValue, "您未配置读取数据库的连接信息 [%s]", common.KeyConnection)
	}
	for i, c := range connections {
		if _, err := c.GetNecessaryString(common.KeyURL); err != nil {
			return errs.Wrap(errs.RequiredValue, err, "第%d个连接配置有误", i)
		}
		hasTable := len(c.GetStringList(common.KeyTable)) > 0
		hasQuery := len(c.GetStringList(common.KeyQuerySQL)) > 0
		switch {
		case hasTable && hasQuery:
			return errs.New(errs.IllegalValue, "第%d个连接不能同时配置 table 与 querySql", i)
		case !hasTable && !hasQuery:
			return errs.New(errs.RequiredValue, "第%d个连接需要配置 table 或 querySql", i)
		case hasTable && len(conf.GetStringList(common.KeyColumn)) == 0:
			return errs.New(errs.RequiredValue, "您未配置读取数据库表的列信息 [%s]", common.KeyColumn)
		}
	}
	return nil
}

func (j *ReaderJob) Prepare(context.Context) error { return nil }

// Split querySql 每条一个切片；配置 splitPk 时每张表按主键范围切成多份，外加一份主键为空的切片
func (j *ReaderJob) Split(ctx context.Context, adviceNumber int) ([]*config.Configuration, error) {
	connections := j.conf.GetListConfiguration(common.KeyConnection)
	columns := j.conf.GetStringList(common.KeyColumn)
	where := j.conf.GetString(common.KeyWhere)
	splitPk := strings.TrimSpace(j.conf.GetString(common.KeySplitPk))

	tableNumber := 0
	for _, c := range connections {
		tableNumber += len(c.GetStringList(common.KeyTable))
	}
	eachTable := 1
	if splitPk != "" && tableNumber > 0 && adviceNumber > 1 {
		eachTable = (adviceNumber + tableNumber - 1) / tableNumber
	}

	var slices []*config.Configuration
	add := func(url, table, query string) error {
		slice := j.conf.Clone()
		slice.Remove(common.KeyConnection)
		for key, value := range map[string]string{common.KeyURL: url, common.KeyTable: table, common.KeyQuerySQL: query} {
			if err := slice.Set(key, value); err != nil {
				return err
			}
		}
		slices = append(slices, slice)
		return nil
	}

	for _, c := range connections {
		url := c.GetString(common.KeyURL)
		for _, query := range c.GetStringList(common.KeyQuerySQL) {
			if err := add(url, "", query); err != nil {
				return nil, err
			}
		}
		for _, table := range c.GetStringList(common.KeyTable) {
			queries := []string{selectSQL(columns, table, where, "")}
			if eachTable > 1 {
				ranged, err := j.splitByPk(ctx, url, table, columns, where, splitPk, eachTable)
				if err != nil {
					return nil, err
				}
				if len(ranged) > 0 {
					queries = ranged
				}
			}
			for _, query := range queries {
				if err := add(url, table, query); err != nil {
					return nil, err
				}
			}
		}
	}
	j.logger.Info("读取切分完成: 建议切分数 %d, 实际切分数 %d", adviceNumber, len(slices))
	return slices, nil
}

// splitByPk 按整数主键的最小最大值等分区间，主键不是整数或表为空时返回 nil
func (j *ReaderJob) splitByPk(ctx context.Context, url, table string, columns []string,
	where, pk string, n int) ([]string, error) {
	conn, release, err := OpenConn(ctx, j.dialect, url,
		j.conf.GetString(common.KeyUsername), j.conf.GetString(common.KeyPassword))
	if err != nil {
		return nil, err
	}
	defer release()

	query := fmt.Sprintf("SELECT MIN(%s),MAX(%s) FROM %s", pk, pk, table)
	if strings.TrimSpace(where) != "" {
		query += " WHERE " + where
	}
	var lo, hi sql.NullInt64
	if err := conn.QueryRowContext(ctx, query).Scan(&lo, &hi); err != nil {
		j.logger.Warn("表[%s]主键[%s]不是整数类型, 不做切分: %v", table, pk, err)
		return nil, nil
	}
	if !lo.Valid || !hi.Valid {
		return nil, nil
	}

	var queries []string
	for _, cond := range pkRanges(pk, lo.Int64, hi.Int64, n) {
		queries = append(queries, selectSQL(columns, table, where, cond))
	}
	return append(queries, selectSQL(columns, table, where, pk+" IS NULL")), nil
}

// pkRanges 把 [lo, hi] 等分为最多 n 个左闭右开区间，最后一个区间右闭
func pkRanges(pk string, lo, hi int64, n int) []string {
	span := new(big.Int).Sub(big.NewInt(hi), big.NewInt(lo))
	var points []int64
	for i := 0; i <= n; i++ {
		p := new(big.Int).Mul(span, big.NewInt(int64(i)))
		p.Quo(p, big.NewInt(int64(n)))
		p.Add(p, big.NewInt(lo))
		v := p.Int64()
		if len(points) == 0 || points[len(points)-1] != v {
			points = append(points, v)
		}
	}
	if len(points) == 1 {
		return []string{fmt.Sprintf("%s = %d", pk, lo)}
	}
	conds := make([]string, 0, len(points)-1)
	for i := 0; i < len(points)-1; i++ {
		op := "<"
		if i == len(points)-2 {
			op = "<="
		}
		conds = append(conds, fmt.Sprintf("(%s >= %d AND %s %s %d)", pk, points[i], pk, op, points[i+1]))
	}
	return conds
}

// selectSQL 拼接查询语句
func selectSQL(columns []string, table, where, cond string) string {
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ","), table)
	var filters []string
	if strings.TrimSpace(where) != "" {
		filters = append(filters, "("+where+")")
	}
	if cond != "" {
		filters = append(filters, cond)
	}
	if len(filters) > 0 {
		query += " WHERE " + strings.Join(filters, " AND ")
	}
	return query
}

func (j *ReaderJob) Post(context.Context) error { return nil }
func (j *ReaderJob) Destroy() error             { return nil }

// ReaderTask 读插件任务阶段
type ReaderTask struct {
	dialect  Dialect
	logger   *logger.Logger
	url      string
	username string
	password string
	query    string
	session  []string
}

// Init 读取切片配置
func (t *ReaderTask) Init(slice *config.Configuration) error {
	t.logger = logger.Default().With(fmt.Sprintf("%sreader.Task[%d]", t.dialect.Name(), slice.GetInt(common.KeyTaskID, 0)))
	var err error
	if t.url, err = slice.GetNecessaryString(common.KeyURL); err != nil {
		return err
	}
	if t.query, err = slice.GetNecessaryString(common.KeyQuerySQL); err != nil {
		return err
	}
	t.username = slice.GetString(common.KeyUsername)
	t.password = slice.GetString(common.KeyPassword)
	t.session = slice.GetStringList(common.KeySession)
	return nil
}

func (t *ReaderTask) Prepare(context.Context) error { return nil }

// StartRead 执行查询并逐行发送，单行转换失败记为脏数据
func (t *ReaderTask) StartRead(ctx context.Context, sender common.RecordSender, collector common.TaskCollector) error {
	conn, release, err := OpenConn(ctx, t.dialect, t.url, t.username, t.password)
	if err != nil {
		return err
	}
	defer release()
	if err := ExecuteSQLs(ctx, conn, t.session, t.logger); err != nil {
		return err
	}

	t.logger.Info("开始读取数据: %s", t.query)
	rows, err := conn.QueryContext(ctx, t.query)
	if err != nil {
		return errs.Wrap(errs.ExecSQL, err, "执行查询失败: %s", t.query)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return errs.Wrap(errs.ExecSQL, err, "获取结果集字段信息失败")
	}
	metas := make([]coerce.ColumnMeta, len(types))
	for i, ct := range types {
		native := ct.DatabaseTypeName()
		metas[i] = coerce.ColumnMeta{Name: ct.Name(), Type: t.dialect.MapType(native), NativeName: native}
	}

	values := make([]any, len(metas))
	ptrs := make([]any, len(metas))
	for i := range values {
		ptrs[i] = &values[i]
	}
	var count int64
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return errs.Wrap(errs.ExecSQL, err, "读取数据行失败")
		}
		record, err := buildRecord(metas, values)
		if err != nil {
			collector.CollectDirtyRecord(record, err)
			continue
		}
		if err := sender.SendToWriter(ctx, record); err != nil {
			return err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return errs.Wrap(errs.ExecSQL, err, "读取数据失败")
	}
	t.logger.Info("读取完成, 共 %d 条", count)
	return nil
}

func (t *ReaderTask) Post(context.Context) error { return nil }
func (t *ReaderTask) Destroy() error             { return nil }

// buildRecord 把一行驱动值转换为记录，失败时返回已转换的部分
func buildRecord(metas []coerce.ColumnMeta, values []any) (*element.Record, error) {
	record := element.NewRecord()
	for i, meta := range metas {
		col, err := toColumn(meta, values[i])
		if err != nil {
			return record, errs.Wrap(errs.Convert, err, "字段[%s]类型[%s]读取转换失败", meta.Name, meta.NativeName)
		}
		record.AddColumn(col)
	}
	return record, nil
}

// toColumn 按驱动返回的Go类型与字段类型构造列
func toColumn(meta coerce.ColumnMeta, v any) (*element.Column, error) {
	switch x := v.(type) {
	case nil:
		return nullColumn(meta.Type), nil
	case int64:
		if meta.Type == coerce.TypeBoolean {
			return element.NewBoolColumn(x != 0), nil
		}
		return element.NewLongColumn(x), nil
	case int32:
		return element.NewLongColumn(int64(x)), nil
	case int:
		return element.NewLongColumn(int64(x)), nil
	case float32:
		return fromFloat(meta, float64(x))
	case float64:
		return fromFloat(meta, x)
	case bool:
		return element.NewBoolColumn(x), nil
	case time.Time:
		return element.NewDateColumnOf(x, dateTypeOf(meta.Type)), nil
	case []byte:
		switch meta.Type {
		case coerce.TypeBinary, coerce.TypeVarbinary, coerce.TypeBlob, coerce.TypeLongVarbinary:
			return element.NewBytesColumn(x), nil
		case coerce.TypeBit:
			if len(x) == 1 && (x[0] == 0 || x[0] == 1) {
				return element.NewBoolColumn(x[0] == 1), nil
			}
			return element.NewLongColumn(new(big.Int).SetBytes(x).Int64()), nil
		}
		return fromText(meta, string(x))
	case string:
		return fromText(meta, x)
	}
	return element.NewStringColumn(fmt.Sprint(v)), nil
}

func fromFloat(meta coerce.ColumnMeta, f float64) (*element.Column, error) {
	if meta.Type == coerce.TypeDecimal || meta.Type == coerce.TypeNumeric {
		return element.NewDecimalColumn(strconv.FormatFloat(f, 'f', -1, 64))
	}
	return element.NewDoubleColumn(f), nil
}

func fromText(meta coerce.ColumnMeta, s string) (*element.Column, error) {
	switch meta.Type {
	case coerce.TypeTinyInt, coerce.TypeSmallInt, coerce.TypeInteger, coerce.TypeBigInt:
		return element.NewLongColumnFromString(strings.TrimSpace(s))
	case coerce.TypeDecimal, coerce.TypeNumeric:
		return element.NewDecimalColumn(strings.TrimSpace(s))
	case coerce.TypeFloat, coerce.TypeReal, coerce.TypeDouble:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, err
		}
		return element.NewDoubleColumn(f), nil
	case coerce.TypeBoolean:
		b, err := cast.ToBoolE(s)
		if err != nil {
			return nil, err
		}
		return element.NewBoolColumn(b), nil
	case coerce.TypeDate, coerce.TypeTime, coerce.TypeTimestamp:
		if strings.EqualFold(coerce.BaseTypeName(meta.NativeName), "year") {
			return element.NewLongColumnFromString(s)
		}
		tm, err := cast.ToTimeE(s)
		if err != nil {
			return nil, err
		}
		return element.NewDateColumnOf(tm, dateTypeOf(meta.Type)), nil
	}
	return element.NewStringColumn(s), nil
}

func dateTypeOf(t coerce.SQLType) element.DateType {
	switch t {
	case coerce.TypeDate:
		return element.DateOnly
	case coerce.TypeTime:
		return element.TimeOnly
	}
	return element.DateTime
}

func nullColumn(t coerce.SQLType) *element.Column {
	switch t {
	case coerce.TypeDate, coerce.TypeTime, coerce.TypeTimestamp:
		return element.NewNullDateColumn(dateTypeOf(t))
	case coerce.TypeChar, coerce.TypeNChar, coerce.TypeVarchar, coerce.TypeNVarchar,
		coerce.TypeLongVarchar, coerce.TypeLongNVarchar, coerce.TypeClob, coerce.TypeNClob:
		return element.NewNullableStringColumn(nil)
	}
	return element.NewNullColumn()
}
