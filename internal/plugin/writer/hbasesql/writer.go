// Package hbasesql 通过 SQL 网关按行键覆盖写入宽表的写插件
package hbasesql

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"datasync/internal/config"
	"datasync/internal/element"
	"datasync/internal/pkg/errs"
	"datasync/internal/pkg/logger"
	"datasync/internal/plugin/batch"
	"datasync/internal/plugin/coerce"
	"datasync/internal/plugin/common"
	"datasync/internal/plugin/rdbms"
)

// Parameter 写入参数
type Parameter struct {
	URL           string   `json:"url"`
	Username      string   `json:"username"`
	Password      string   `json:"password"`
	Dialect       string   `json:"dialect"`
	Table         string   `json:"table"`
	Column        []string `json:"column"`
	NullMode      string   `json:"nullMode"`
	BatchSize     int      `json:"batchSize"`
	BatchByteSize int      `json:"batchByteSize"`
}

// NewPlugin 创建 hbasesqlwriter 插件
func NewPlugin() common.WriterPlugin {
	return common.WriterPlugin{
		Description: "通过 Phoenix 等 SQL 网关以 UPSERT 写入，空缺字段按 nullMode 处理",
		Required:    []string{common.KeyURL, common.KeyTable, common.KeyColumn},
		NewJob:      func() common.WriterJob { return &Job{} },
		NewTask:     func() common.WriterTask { return &Task{} },
	}
}

// lookupGateway 按名称选择网关方言，默认为 phoenix
func lookupGateway(name string) (rdbms.Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "phoenix":
		return Phoenix{}, nil
	case "sqlite":
		return rdbms.SQLite{}, nil
	}
	return nil, errs.New(errs.IllegalValue, "dialect 仅支持 phoenix 或 sqlite, 当前配置为 [%s]", name)
}

func parseParameter(conf *config.Configuration) (Parameter, rdbms.Dialect, coerce.NullMode, error) {
	var p Parameter
	if err := conf.Decode(&p); err != nil {
		return p, nil, "", err
	}
	if strings.TrimSpace(p.URL) == "" {
		return p, nil, "", errs.New(errs.RequiredValue, "您未配置 SQL 网关地址 [%s]", common.KeyURL)
	}
	if strings.TrimSpace(p.Table) == "" {
		return p, nil, "", errs.New(errs.RequiredValue, "您未配置写入的表名 [%s]", common.KeyTable)
	}
	if len(p.Column) == 0 {
		return p, nil, "", errs.New(errs.RequiredValue, "您未配置写入的列信息 [%s]", common.KeyColumn)
	}
	d, err := lookupGateway(p.Dialect)
	if err != nil {
		return p, nil, "", err
	}
	mode, err := coerce.ParseNullMode(p.NullMode)
	if err != nil {
		return p, nil, "", err
	}
	return p, d, mode, nil
}

// Job hbasesqlwriter 作业阶段
type Job struct {
	conf *config.Configuration
}

// Init 校验参数，并确认网关驱动已经注册
func (j *Job) Init(conf *config.Configuration) error {
	j.conf = conf
	_, d, _, err := parseParameter(conf)
	if err != nil {
		return err
	}
	if !slices.Contains(sql.Drivers(), d.DriverName()) {
		return errs.New(errs.Config, "%s 驱动 [%s] 未注册，请在构建时引入对应的 database/sql 驱动", d.Name(), d.DriverName())
	}
	return nil
}

func (j *Job) Prepare(context.Context) error { return nil }

// Split 所有任务写同一张表
func (j *Job) Split(_ context.Context, mandatoryNumber int) ([]*config.Configuration, error) {
	out := make([]*config.Configuration, mandatoryNumber)
	for i := range out {
		out[i] = j.conf.Clone()
	}
	return out, nil
}

func (j *Job) Post(context.Context) error { return nil }
func (j *Job) Destroy() error             { return nil }

// Task hbasesqlwriter 任务阶段
type Task struct {
	slice    *config.Configuration
	param    Parameter
	dialect  rdbms.Dialect
	nullMode coerce.NullMode
	logger   *logger.Logger
}

func (t *Task) Init(slice *config.Configuration) error {
	t.slice = slice
	t.logger = logger.Default().With(fmt.Sprintf("hbasesqlwriter.Task[%d]", slice.GetInt(common.KeyTaskID, 0)))
	var err error
	t.param, t.dialect, t.nullMode, err = parseParameter(slice)
	return err
}

func (t *Task) Prepare(context.Context) error { return nil }

// StartWrite 取得字段类型后按行 UPSERT
func (t *Task) StartWrite(ctx context.Context, receiver common.RecordReceiver, collector common.TaskCollector) error {
	conn, release, err := rdbms.OpenConn(ctx, t.dialect, t.param.URL, t.param.Username, t.param.Password)
	if err != nil {
		return err
	}
	defer release()

	metas, err := rdbms.DescribeColumns(ctx, conn, t.dialect, t.param.Table, t.param.Column)
	if err != nil {
		return err
	}
	if len(metas) != len(t.param.Column) {
		return errs.New(errs.ColumnMismatch, "表[%s]返回 %d 个字段，但配置了 %d 列", t.param.Table, len(metas), len(t.param.Column))
	}
	query, err := upsertSQL(t.dialect, t.param.Table, t.param.Column)
	if err != nil {
		return err
	}
	t.logger.Info("写入语句: %s", query)

	s := &upsertSink{conn: conn, query: query, table: t.param.Table, metas: metas, nullMode: t.nullMode}
	defer s.Close()
	w := batch.New(s, collector, batch.Option{
		BatchSize:     t.param.BatchSize,
		BatchByteSize: t.param.BatchByteSize,
		ColumnNumber:  len(metas),
		JobID:         t.slice.GetString(common.KeyJobID),
		Logger:        t.logger,
	})
	return w.Consume(ctx, receiver)
}

func (t *Task) Post(context.Context) error { return nil }
func (t *Task) Destroy() error             { return nil }

// upsertSQL 生成单行覆盖写语句
func upsertSQL(d rdbms.Dialect, table string, columns []string) (string, error) {
	holders := make([]string, len(columns))
	for i := range holders {
		holders[i] = d.Placeholder(i + 1)
	}
	row := "(" + strings.Join(holders, ",") + ")"
	return d.WriteSQL(table, columns, rdbms.WriteMode{Kind: rdbms.ModeReplace}, []string{row})
}

// upsertSink 逐行绑定的写入目标，记录中为 nil 的字段按 nullMode 处理
type upsertSink struct {
	conn     *sql.Conn
	query    string
	table    string
	metas    []coerce.ColumnMeta
	nullMode coerce.NullMode
	one      *sql.Stmt
}

var _ batch.Sink = (*upsertSink)(nil)

func (s *upsertSink) bind(record *element.Record) ([]any, error) {
	if record.ColumnNumber() != len(s.metas) {
		return nil, errs.New(errs.ColumnMismatch, "记录有 %d 列，但配置了 %d 列", record.ColumnNumber(), len(s.metas))
	}
	args := make([]any, len(s.metas))
	for i, meta := range s.metas {
		v, err := coerce.Typed(meta, record.Column(i), s.nullMode)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// WriteBatch 在一个事务内逐行 UPSERT 后提交
func (s *upsertSink) WriteBatch(ctx context.Context, records []*element.Record) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.Connect, err, "开启事务失败")
	}
	stmt, err := tx.PrepareContext(ctx, s.query)
	if err != nil {
		_ = tx.Rollback()
		return errs.Wrap(errs.WriteBatch, err, "预编译语句失败: %s", s.query)
	}
	defer stmt.Close()

	for _, record := range records {
		args, err := s.bind(record)
		if err == nil {
			_, err = stmt.ExecContext(ctx, args...)
		}
		if err != nil {
			_ = tx.Rollback()
			return errs.Wrap(errs.WriteBatch, err, "批量写入表[%s]失败", s.table)
		}
	}
	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return errs.Wrap(errs.WriteBatch, err, "提交事务失败")
	}
	return nil
}

// WriteOne 自动提交写入单条记录
func (s *upsertSink) WriteOne(ctx context.Context, record *element.Record) error {
	args, err := s.bind(record)
	if err != nil {
		return err
	}
	if s.one == nil {
		if s.one, err = s.conn.PrepareContext(ctx, s.query); err != nil {
			return errs.Wrap(errs.WriteRow, err, "预编译语句失败: %s", s.query)
		}
	}
	if _, err := s.one.ExecContext(ctx, args...); err != nil {
		return errs.Wrap(errs.WriteRow, err, "写入表[%s]失败", s.table)
	}
	return nil
}

func (s *upsertSink) Close() {
	if s.one != nil {
		_ = s.one.Close()
	}
}
