// Package mongodb 把记录按字段定义写为文档的写插件
package mongodb

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"datasync/internal/config"
	"datasync/internal/element"
	"datasync/internal/pkg/errs"
	"datasync/internal/pkg/logger"
	"datasync/internal/plugin/batch"
	"datasync/internal/plugin/coerce"
	"datasync/internal/plugin/common"
)

// Parameter 写入参数
type Parameter struct {
	URL           string   `json:"url"`
	Username      string   `json:"username"`
	Password      string   `json:"password"`
	AuthDB        string   `json:"authDb"`
	Database      string   `json:"database"`
	Collection    string   `json:"collection"`
	Column        []Column `json:"column"`
	WriteMode     string   `json:"writeMode"`
	Keys          []string `json:"keys"`
	NullMode      string   `json:"nullMode"`
	Transaction   bool     `json:"transaction"`
	BatchSize     int      `json:"batchSize"`
	BatchByteSize int      `json:"batchByteSize"`
}

const (
	modeInsert  = "insert"
	modeReplace = "replace"
)

// NewPlugin 创建 mongodbwriter 插件
func NewPlugin() common.WriterPlugin {
	return common.WriterPlugin{
		Description: "写入 MongoDB 集合，支持 insert 与按主键覆盖的 replace",
		Required:    []string{common.KeyURL, "database", "collection", common.KeyColumn},
		NewJob:      func() common.WriterJob { return &Job{} },
		NewTask:     func() common.WriterTask { return &Task{} },
	}
}

// settings 校验后的写入设置
type settings struct {
	param    Parameter
	metas    []coerce.ColumnMeta
	keys     []string
	mode     string
	nullMode coerce.NullMode
}

func parseSettings(conf *config.Configuration) (*settings, error) {
	var p Parameter
	if err := conf.Decode(&p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.URL) == "" {
		return nil, errs.New(errs.RequiredValue, "您未配置 MongoDB 连接地址 [%s]", common.KeyURL)
	}
	if p.Database == "" || p.Collection == "" {
		return nil, errs.New(errs.RequiredValue, "您未配置写入的库名 [database] 或集合名 [collection]")
	}
	if len(p.Column) == 0 {
		return nil, errs.New(errs.RequiredValue, "您未配置写入的字段信息 [%s]", common.KeyColumn)
	}
	metas, err := fieldMetas(p.Column)
	if err != nil {
		return nil, err
	}
	nullMode, err := coerce.ParseNullMode(p.NullMode)
	if err != nil {
		return nil, err
	}

	s := &settings{param: p, metas: metas, nullMode: nullMode}
	switch strings.ToLower(strings.TrimSpace(p.WriteMode)) {
	case "", modeInsert:
		s.mode = modeInsert
	case modeReplace:
		s.mode = modeReplace
		if len(p.Keys) == 0 {
			return nil, errs.New(errs.RequiredValue, "replace 模式必须配置主键 [keys]")
		}
		if err := checkKeys(p.Column, p.Keys); err != nil {
			return nil, err
		}
		for i := range p.Keys {
			s.keys = append(s.keys, p.Column[i].Name)
		}
	default:
		return nil, errs.New(errs.IllegalValue, "writeMode 仅支持 insert 或 replace, 当前配置为 [%s]", p.WriteMode)
	}
	return s, nil
}

// Job mongodbwriter 作业阶段
type Job struct {
	conf *config.Configuration
}

func (j *Job) Init(conf *config.Configuration) error {
	j.conf = conf
	_, err := parseSettings(conf)
	return err
}

func (j *Job) Prepare(context.Context) error { return nil }

// Split 所有任务写同一个集合
func (j *Job) Split(_ context.Context, mandatoryNumber int) ([]*config.Configuration, error) {
	out := make([]*config.Configuration, mandatoryNumber)
	for i := range out {
		out[i] = j.conf.Clone()
	}
	return out, nil
}

func (j *Job) Post(context.Context) error { return nil }
func (j *Job) Destroy() error             { return nil }

// Task mongodbwriter 任务阶段
type Task struct {
	slice    *config.Configuration
	settings *settings
	logger   *logger.Logger
}

func (t *Task) Init(slice *config.Configuration) error {
	t.slice = slice
	t.logger = logger.Default().With(fmt.Sprintf("mongodbwriter.Task[%d]", slice.GetInt(common.KeyTaskID, 0)))
	var err error
	t.settings, err = parseSettings(slice)
	return err
}

func (t *Task) Prepare(context.Context) error { return nil }

// StartWrite 连接 MongoDB 后攒批写入
func (t *Task) StartWrite(ctx context.Context, receiver common.RecordReceiver, collector common.TaskCollector) error {
	p := t.settings.param
	opts := options.Client().ApplyURI(p.URL)
	if p.Username != "" {
		opts.SetAuth(options.Credential{Username: p.Username, Password: p.Password, AuthSource: p.AuthDB})
	}
	client, err := mongo.Connect(opts)
	if err != nil {
		return errs.Wrap(errs.Connect, err, "连接MongoDB失败")
	}
	defer func() { _ = client.Disconnect(context.Background()) }()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return errs.Wrap(errs.Connect, err, "连接MongoDB失败")
	}

	store := &collectionStore{
		client:      client,
		coll:        client.Database(p.Database).Collection(p.Collection),
		transaction: p.Transaction,
	}
	t.logger.Info("开始写入集合 %s.%s, 模式 %s", p.Database, p.Collection, t.settings.mode)
	return t.consume(ctx, store, receiver, collector)
}

func (t *Task) consume(ctx context.Context, store documentStore, receiver common.RecordReceiver, collector common.TaskCollector) error {
	w := batch.New(&documentSink{store: store, settings: t.settings}, collector, batch.Option{
		BatchSize:     t.settings.param.BatchSize,
		BatchByteSize: t.settings.param.BatchByteSize,
		ColumnNumber:  len(t.settings.metas),
		JobID:         t.slice.GetString(common.KeyJobID),
		Logger:        t.logger,
	})
	return w.Consume(ctx, receiver)
}

func (t *Task) Post(context.Context) error { return nil }
func (t *Task) Destroy() error             { return nil }

// documentStore 文档写入目标，filters 为空时插入，否则按过滤条件覆盖写
type documentStore interface {
	WriteMany(ctx context.Context, docs, filters []bson.D) error
	WriteOne(ctx context.Context, doc, filter bson.D) error
}

// collectionStore 基于单个集合的写入目标
type collectionStore struct {
	client      *mongo.Client
	coll        *mongo.Collection
	transaction bool
}

func (s *collectionStore) WriteMany(ctx context.Context, docs, filters []bson.D) error {
	write := func(ctx context.Context) error {
		if filters == nil {
			items := make([]any, len(docs))
			for i, d := range docs {
				items[i] = d
			}
			_, err := s.coll.InsertMany(ctx, items)
			return err
		}
		models := make([]mongo.WriteModel, len(docs))
		for i := range docs {
			models[i] = mongo.NewReplaceOneModel().SetFilter(filters[i]).SetReplacement(docs[i]).SetUpsert(true)
		}
		_, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
		return err
	}

	if !s.transaction {
		if err := write(ctx); err != nil {
			return errs.Wrap(errs.WriteBatch, err, "批量写入集合[%s]失败", s.coll.Name())
		}
		return nil
	}

	session, err := s.client.StartSession()
	if err != nil {
		return errs.Wrap(errs.Connect, err, "开启会话失败")
	}
	defer session.EndSession(context.Background())
	_, err = session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, write(ctx)
	})
	if err != nil {
		return errs.Wrap(errs.WriteBatch, err, "事务写入集合[%s]失败", s.coll.Name())
	}
	return nil
}

func (s *collectionStore) WriteOne(ctx context.Context, doc, filter bson.D) error {
	var err error
	if filter == nil {
		_, err = s.coll.InsertOne(ctx, doc)
	} else {
		_, err = s.coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	}
	if err != nil {
		return errs.Wrap(errs.WriteRow, err, "写入集合[%s]失败", s.coll.Name())
	}
	return nil
}

// documentSink 把记录转换为文档后交给写入目标
type documentSink struct {
	store    documentStore
	settings *settings
}

var _ batch.Sink = (*documentSink)(nil)

func (s *documentSink) convert(record *element.Record) (bson.D, bson.D, error) {
	doc, err := buildDocument(s.settings.metas, record, s.settings.nullMode)
	if err != nil {
		return nil, nil, err
	}
	if s.settings.mode != modeReplace {
		return doc, nil, nil
	}
	filter, err := keyFilter(doc, s.settings.keys)
	if err != nil {
		return nil, nil, err
	}
	return doc, filter, nil
}

func (s *documentSink) WriteBatch(ctx context.Context, records []*element.Record) error {
	docs := make([]bson.D, len(records))
	var filters []bson.D
	if s.settings.mode == modeReplace {
		filters = make([]bson.D, len(records))
	}
	for i, r := range records {
		doc, filter, err := s.convert(r)
		if err != nil {
			return errs.Wrap(errs.WriteBatch, err, "第%d条记录转换失败", i)
		}
		docs[i] = doc
		if filters != nil {
			filters[i] = filter
		}
	}
	return s.store.WriteMany(ctx, docs, filters)
}

func (s *documentSink) WriteOne(ctx context.Context, record *element.Record) error {
	doc, filter, err := s.convert(record)
	if err != nil {
		return err
	}
	return s.store.WriteOne(ctx, doc, filter)
}
