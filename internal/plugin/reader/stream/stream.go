// Package stream 按配置生成固定记录的读插件，用于联调与压测
package stream

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"datasync/internal/config"
	"datasync/internal/element"
	"datasync/internal/pkg/errs"
	"datasync/internal/pkg/logger"
	"datasync/internal/plugin/common"
)

// Column 生成列的定义
type Column struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// Parameter 读取参数
type Parameter struct {
	Column           []Column `json:"column"`
	SliceRecordCount int64    `json:"sliceRecordCount"`
}

// NewPlugin 创建 streamreader 插件
func NewPlugin() common.ReaderPlugin {
	return common.ReaderPlugin{
		Description: "按列定义为每个切片生成 sliceRecordCount 条记录",
		Required:    []string{common.KeyColumn, "sliceRecordCount"},
		NewJob:      func() common.ReaderJob { return &Job{} },
		NewTask:     func() common.ReaderTask { return &Task{} },
	}
}

// Job streamreader 作业阶段
type Job struct {
	conf *config.Configuration
}

// Init 校验列定义
func (j *Job) Init(conf *config.Configuration) error {
	j.conf = conf
	var p Parameter
	if err := conf.Decode(&p); err != nil {
		return err
	}
	if p.SliceRecordCount < 0 {
		return errs.New(errs.IllegalValue, "sliceRecordCount 不能为负数: %d", p.SliceRecordCount)
	}
	_, err := buildColumns(p.Column)
	return err
}

func (j *Job) Prepare(context.Context) error { return nil }

// Split 每个建议并发生成一个相同的切片
func (j *Job) Split(_ context.Context, adviceNumber int) ([]*config.Configuration, error) {
	slices := make([]*config.Configuration, max(adviceNumber, 1))
	for i := range slices {
		slices[i] = j.conf.Clone()
	}
	return slices, nil
}

func (j *Job) Post(context.Context) error { return nil }
func (j *Job) Destroy() error             { return nil }

// Task streamreader 任务阶段
type Task struct {
	columns []*element.Column
	count   int64
	logger  *logger.Logger
}

// Init 解析列定义，列值在任务内只构造一次
func (t *Task) Init(slice *config.Configuration) error {
	t.logger = logger.Default().With(fmt.Sprintf("streamreader.Task[%d]", slice.GetInt(common.KeyTaskID, 0)))
	var p Parameter
	if err := slice.Decode(&p); err != nil {
		return err
	}
	columns, err := buildColumns(p.Column)
	if err != nil {
		return err
	}
	t.columns = columns
	t.count = p.SliceRecordCount
	return nil
}

func (t *Task) Prepare(context.Context) error { return nil }

// StartRead 发送 sliceRecordCount 条记录
func (t *Task) StartRead(ctx context.Context, sender common.RecordSender, _ common.TaskCollector) error {
	for i := int64(0); i < t.count; i++ {
		if err := sender.SendToWriter(ctx, element.NewRecord(t.columns...)); err != nil {
			return err
		}
	}
	t.logger.Debug("生成记录 %d 条", t.count)
	return nil
}

func (t *Task) Post(context.Context) error { return nil }
func (t *Task) Destroy() error             { return nil }

// buildColumns 把列定义转换为不可变的列值
func buildColumns(defs []Column) ([]*element.Column, error) {
	if len(defs) == 0 {
		return nil, errs.New(errs.RequiredValue, "您未配置生成数据的列信息 [column]")
	}
	columns := make([]*element.Column, len(defs))
	for i, def := range defs {
		col, err := buildColumn(def)
		if err != nil {
			return nil, errs.Wrap(errs.IllegalValue, err, "第%d列配置有误", i)
		}
		columns[i] = col
	}
	return columns, nil
}

func buildColumn(def Column) (*element.Column, error) {
	typ := strings.ToLower(strings.TrimSpace(def.Type))
	if def.Value == nil {
		switch typ {
		case "date":
			return element.NewNullDateColumn(element.DateTime), nil
		case "string":
			return element.NewNullableStringColumn(nil), nil
		}
		return element.NewNullColumn(), nil
	}

	switch typ {
	case "string", "":
		return element.NewStringColumn(cast.ToString(def.Value)), nil
	case "long":
		return element.NewLongColumnFromString(cast.ToString(def.Value))
	case "decimal":
		return element.NewDecimalColumn(cast.ToString(def.Value))
	case "double":
		f, err := cast.ToFloat64E(def.Value)
		if err != nil {
			return nil, err
		}
		return element.NewDoubleColumn(f), nil
	case "bool":
		b, err := cast.ToBoolE(def.Value)
		if err != nil {
			return nil, err
		}
		return element.NewBoolColumn(b), nil
	case "date":
		tm, err := cast.ToTimeE(def.Value)
		if err != nil {
			return nil, err
		}
		return element.NewDateColumn(tm), nil
	case "bytes":
		b, err := base64.StdEncoding.DecodeString(cast.ToString(def.Value))
		if err != nil {
			return nil, err
		}
		return element.NewBytesColumn(b), nil
	}
	return nil, errs.New(errs.IllegalValue, "不支持的列类型: %s，支持的类型: string, long, decimal, double, bool, date, bytes", def.Type)
}
