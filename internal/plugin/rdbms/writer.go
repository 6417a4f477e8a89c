package rdbms

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"datasync/internal/config"
	"datasync/internal/element"
	"datasync/internal/pkg/errs"
	"datasync/internal/pkg/logger"
	"datasync/internal/plugin/batch"
	"datasync/internal/plugin/common"
)

// NewWriterPlugin 创建指定方言的写插件
func NewWriterPlugin(d Dialect) common.WriterPlugin {
	return common.WriterPlugin{
		Description: fmt.Sprintf("%s 写入插件，支持 %s", d.Name(), supportedModes(d)),
		Required:    []string{common.KeyConnection, common.KeyColumn},
		NewJob:      func() common.WriterJob { return &WriterJob{dialect: d} },
		NewTask:     func() common.WriterTask { return &WriterTask{dialect: d} },
	}
}

func supportedModes(d Dialect) string {
	var modes []string
	for _, m := range []WriteMode{{Kind: ModeInsert}, {Kind: ModeReplace}, {Kind: ModeUpdate, Keys: []string{"id"}}} {
		if _, err := d.WriteSQL("t", []string{"id"}, m, []string{"(?)"}); err == nil {
			modes = append(modes, strings.TrimSuffix(m.String(), "(id)"))
		}
	}
	return strings.Join(modes, "/")
}

// WriterJob 写插件作业阶段
type WriterJob struct {
	dialect     Dialect
	conf        *config.Configuration
	tableNumber int
	logger      *logger.Logger
}

// Init 校验配置并统计目的表个数
func (j *WriterJob) Init(conf *config.Configuration) error {
	j.conf = conf
	j.logger = logger.Default().With(j.dialect.Name() + "writer")

	columns := conf.GetStringList(common.KeyColumn)
	if len(columns) == 0 {
		return errs.New(errs.RequiredValue, "您未配置写入数据库表的列信息 [%s]", common.KeyColumn)
	}
	if _, err := ParseWriteMode(conf.GetString(common.KeyWriteMode)); err != nil {
		return err
	}

	connections := conf.GetListConfiguration(common.KeyConnection)
	if len(connections) == 0 {
		return errs.New(errs.RequiredValue, "您未配置写入数据库的连接信息 [%s]", common.KeyConnection)
	}
	tableNumber := 0
	for i, c := range connections {
		if _, err := c.GetNecessaryString(common.KeyURL); err != nil {
			return errs.Wrap(errs.RequiredValue, err, "第%d个连接配置有误", i)
		}
		tables := c.GetStringList(common.KeyTable)
		if len(tables) == 0 {
			return errs.New(errs.RequiredValue, "第%d个连接没有配置表名 [%s]", i, common.KeyTable)
		}
		tableNumber += len(tables)
	}
	j.tableNumber = tableNumber
	return conf.Set(common.KeyTableNumber, tableNumber)
}

// Prepare 展开 "*" 列，只有一张目的表时在作业级执行前置SQL
func (j *WriterJob) Prepare(ctx context.Context) error {
	url := j.conf.GetString(common.KeyConnection + "[0]." + common.KeyURL)
	table := j.conf.GetStringList(common.KeyConnection + "[0]." + common.KeyTable)[0]
	columns := j.conf.GetStringList(common.KeyColumn)
	preSQL := j.conf.GetStringList(common.KeyPreSQL)

	needExpand := len(columns) == 1 && strings.TrimSpace(columns[0]) == "*"
	if !needExpand && (j.tableNumber != 1 || len(preSQL) == 0) {
		return nil
	}

	conn, release, err := OpenConn(ctx, j.dialect, url,
		j.conf.GetString(common.KeyUsername), j.conf.GetString(common.KeyPassword))
	if err != nil {
		return err
	}
	defer release()

	if needExpand {
		expanded, err := ExpandColumns(ctx, conn, j.dialect, table, columns)
		if err != nil {
			return err
		}
		j.logger.Info("列配置 * 已展开为: %s", strings.Join(expanded, ","))
		if err := j.conf.Set(common.KeyColumn, expanded); err != nil {
			return err
		}
	}

	if j.tableNumber == 1 && len(preSQL) > 0 {
		j.logger.Info("开始执行作业级前置SQL, 表[%s]", table)
		return ExecuteSQLs(ctx, conn, RenderSQLs(preSQL, table), j.logger)
	}
	return nil
}

// Split 单表时复制 mandatoryNumber 份，多表时每张表一份且表数必须等于 mandatoryNumber
func (j *WriterJob) Split(_ context.Context, mandatoryNumber int) ([]*config.Configuration, error) {
	connections := j.conf.GetListConfiguration(common.KeyConnection)

	if j.tableNumber == 1 {
		base := j.conf.Clone()
		base.Remove(common.KeyConnection)
		if err := base.Set(common.KeyURL, connections[0].GetString(common.KeyURL)); err != nil {
			return nil, err
		}
		if err := base.Set(common.KeyTable, connections[0].GetStringList(common.KeyTable)[0]); err != nil {
			return nil, err
		}
		slices := make([]*config.Configuration, mandatoryNumber)
		for i := range slices {
			slices[i] = base.Clone()
		}
		return slices, nil
	}

	if j.tableNumber != mandatoryNumber {
		return nil, errs.New(errs.SplitMismatch,
			"您的配置有误. 由于您配置的目的表数目[%d]与源端切分的任务数目[%d]不相等, 无法一一对应写入", j.tableNumber, mandatoryNumber)
	}
	var slices []*config.Configuration
	for _, c := range connections {
		for _, table := range c.GetStringList(common.KeyTable) {
			slice := j.conf.Clone()
			slice.Remove(common.KeyConnection)
			if err := slice.Set(common.KeyURL, c.GetString(common.KeyURL)); err != nil {
				return nil, err
			}
			if err := slice.Set(common.KeyTable, table); err != nil {
				return nil, err
			}
			slices = append(slices, slice)
		}
	}
	return slices, nil
}

// Post 只有一张目的表时在作业级执行后置SQL
func (j *WriterJob) Post(ctx context.Context) error {
	postSQL := j.conf.GetStringList(common.KeyPostSQL)
	if j.tableNumber != 1 || len(postSQL) == 0 {
		return nil
	}
	url := j.conf.GetString(common.KeyConnection + "[0]." + common.KeyURL)
	table := j.conf.GetStringList(common.KeyConnection + "[0]." + common.KeyTable)[0]
	conn, release, err := OpenConn(ctx, j.dialect, url,
		j.conf.GetString(common.KeyUsername), j.conf.GetString(common.KeyPassword))
	if err != nil {
		return err
	}
	defer release()
	j.logger.Info("开始执行作业级后置SQL, 表[%s]", table)
	return ExecuteSQLs(ctx, conn, RenderSQLs(postSQL, table), j.logger)
}

func (j *WriterJob) Destroy() error { return nil }

// WriterTask 写插件任务阶段，每个任务独占一个会话
type WriterTask struct {
	dialect Dialect
	slice   *config.Configuration
	logger  *logger.Logger

	url         string
	username    string
	password    string
	table       string
	columns     []string
	mode        WriteMode
	emptyAsNull bool
	tableNumber int
	preSQL      []string
	postSQL     []string
	session     []string
}

// Init 读取切片配置
func (t *WriterTask) Init(slice *config.Configuration) error {
	t.slice = slice
	t.logger = logger.Default().With(fmt.Sprintf("%swriter.Task[%d]", t.dialect.Name(), slice.GetInt(common.KeyTaskID, 0)))

	var err error
	if t.url, err = slice.GetNecessaryString(common.KeyURL); err != nil {
		return err
	}
	if t.table, err = slice.GetNecessaryString(common.KeyTable); err != nil {
		return err
	}
	if t.mode, err = ParseWriteMode(slice.GetString(common.KeyWriteMode)); err != nil {
		return err
	}
	t.username = slice.GetString(common.KeyUsername)
	t.password = slice.GetString(common.KeyPassword)
	t.columns = slice.GetStringList(common.KeyColumn)
	t.emptyAsNull = slice.GetBool(common.KeyEmptyAsNull, true)
	t.tableNumber = slice.GetInt(common.KeyTableNumber, 1)
	t.preSQL = RenderSQLs(slice.GetStringList(common.KeyPreSQL), t.table)
	t.postSQL = RenderSQLs(slice.GetStringList(common.KeyPostSQL), t.table)
	t.session = slice.GetStringList(common.KeySession)
	return nil
}

// Prepare 多表时在任务级执行前置SQL
func (t *WriterTask) Prepare(ctx context.Context) error {
	if t.tableNumber == 1 || len(t.preSQL) == 0 {
		return nil
	}
	return t.withConn(ctx, func(conn *sql.Conn) error {
		t.logger.Info("开始执行任务级前置SQL, 表[%s]", t.table)
		return ExecuteSQLs(ctx, conn, t.preSQL, t.logger)
	})
}

// StartWrite 获取会话、生成写入模板，然后攒批写入
func (t *WriterTask) StartWrite(ctx context.Context, receiver common.RecordReceiver, collector common.TaskCollector) error {
	return t.withConn(ctx, func(conn *sql.Conn) error {
		metas, err := DescribeColumns(ctx, conn, t.dialect, t.table, t.columns)
		if err != nil {
			return err
		}
		tmpl, err := newWriteTemplate(t.dialect, t.table, t.columns, metas, t.mode, t.dialect.Policy(t.emptyAsNull))
		if err != nil {
			return err
		}

		batchSize := t.slice.GetInt(common.KeyBatchSize, common.DefaultBatchSize)
		if tuner, ok := t.dialect.(batchTuner); ok {
			if tuned := tuner.TuneBatchSize(ctx, conn, len(t.columns), batchSize); tuned != batchSize {
				t.logger.Info("批次大小已自动调整: %d -> %d", batchSize, tuned)
				batchSize = tuned
			}
		}

		s := newSQLSink(conn, tmpl)
		defer s.Close()
		w := batch.New(s, collector, batch.Option{
			BatchSize:     batchSize,
			BatchByteSize: t.slice.GetInt(common.KeyBatchByteSize, common.DefaultBatchByteSize),
			ColumnNumber:  len(t.columns),
			JobID:         t.slice.GetString(common.KeyJobID),
			Logger:        t.logger,
		})
		return w.Consume(ctx, receiver)
	})
}

// Post 多表时在任务级执行后置SQL
func (t *WriterTask) Post(ctx context.Context) error {
	if t.tableNumber == 1 || len(t.postSQL) == 0 {
		return nil
	}
	return t.withConn(ctx, func(conn *sql.Conn) error {
		t.logger.Info("开始执行任务级后置SQL, 表[%s]", t.table)
		return ExecuteSQLs(ctx, conn, t.postSQL, t.logger)
	})
}

func (t *WriterTask) Destroy() error { return nil }

// withConn 打开会话并执行 session 语句，返回时释放会话
func (t *WriterTask) withConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, release, err := OpenConn(ctx, t.dialect, t.url, t.username, t.password)
	if err != nil {
		return err
	}
	defer release()
	if err := ExecuteSQLs(ctx, conn, t.session, t.logger); err != nil {
		return err
	}
	return fn(conn)
}

// sqlSink 基于单个会话的写入目标
type sqlSink struct {
	conn *sql.Conn
	tmpl *writeTemplate
	// statements 按行数缓存的语句文本
	statements map[int]string
	one        *sql.Stmt
}

var _ batch.Sink = (*sqlSink)(nil)

func newSQLSink(conn *sql.Conn, tmpl *writeTemplate) *sqlSink {
	return &sqlSink{conn: conn, tmpl: tmpl, statements: map[int]string{}}
}

func (s *sqlSink) statement(rows int) (string, error) {
	if q, ok := s.statements[rows]; ok {
		return q, nil
	}
	q, err := s.tmpl.SQL(rows)
	if err != nil {
		return "", err
	}
	s.statements[rows] = q
	return q, nil
}

// WriteBatch 在一个事务内写入整批，任何失败都回滚
func (s *sqlSink) WriteBatch(ctx context.Context, records []*element.Record) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.Connect, err, "开启事务失败")
	}
	for _, chunk := range s.tmpl.Chunks(records) {
		if err := s.execChunk(ctx, tx, chunk); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return errs.Wrap(errs.WriteBatch, err, "提交事务失败")
	}
	return nil
}

func (s *sqlSink) execChunk(ctx context.Context, tx *sql.Tx, chunk []*element.Record) error {
	query, err := s.statement(len(chunk))
	if err != nil {
		return err
	}
	args, err := s.tmpl.Args(chunk)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return errs.Wrap(errs.WriteBatch, err, "批量写入表[%s]失败", s.tmpl.table)
	}
	return nil
}

// WriteOne 以自动提交方式写入单条记录，语句只预编译一次
func (s *sqlSink) WriteOne(ctx context.Context, record *element.Record) error {
	args, err := s.tmpl.Args([]*element.Record{record})
	if err != nil {
		return err
	}
	if s.one == nil {
		query, err := s.statement(1)
		if err != nil {
			return err
		}
		if s.one, err = s.conn.PrepareContext(ctx, query); err != nil {
			return errs.Wrap(errs.WriteRow, err, "预编译语句失败: %s", query)
		}
	}
	if _, err := s.one.ExecContext(ctx, args...); err != nil {
		return errs.Wrap(errs.WriteRow, err, "写入表[%s]失败", s.tmpl.table)
	}
	return nil
}

// Close 释放预编译语句
func (s *sqlSink) Close() {
	if s.one != nil {
		_ = s.one.Close()
	}
}
