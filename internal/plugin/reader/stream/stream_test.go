package stream

import (
	"context"
	"testing"

	"datasync/internal/config"
	"datasync/internal/element"
	"datasync/internal/pkg/errs"
)

type countingSender struct {
	records []*element.Record
}

func (s *countingSender) SendToWriter(_ context.Context, r *element.Record) error {
	s.records = append(s.records, r)
	return nil
}

func (s *countingSender) Terminate() {}

func TestStreamReader_GenerateRecords(t *testing.T) {
	conf, err := config.FromJSON([]byte(`{
		"column": [
			{"type": "long", "value": 10},
			{"type": "string", "value": "hello"},
			{"type": "date", "value": "2024-01-02 03:04:05"},
			{"type": "bool", "value": true},
			{"type": "double", "value": 1.5},
			{"type": "bytes", "value": "aGk="},
			{"type": "string"}
		],
		"sliceRecordCount": 3
	}`))
	if err != nil {
		t.Fatalf("解析配置失败: %v", err)
	}

	ctx := context.Background()
	job := &Job{}
	if err := job.Init(conf); err != nil {
		t.Fatalf("初始化失败: %v", err)
	}
	slices, err := job.Split(ctx, 2)
	if err != nil || len(slices) != 2 {
		t.Fatalf("切分结果不符: %d, %v", len(slices), err)
	}

	sender := &countingSender{}
	for _, slice := range slices {
		task := &Task{}
		if err := task.Init(slice); err != nil {
			t.Fatalf("任务初始化失败: %v", err)
		}
		if err := task.StartRead(ctx, sender, nil); err != nil {
			t.Fatalf("读取失败: %v", err)
		}
	}
	if len(sender.records) != 6 {
		t.Fatalf("记录数 = %d, 期望 6", len(sender.records))
	}

	r := sender.records[0]
	wantKinds := []element.Kind{element.KindLong, element.KindString, element.KindDate,
		element.KindBool, element.KindDouble, element.KindBytes, element.KindString}
	for i, k := range wantKinds {
		if r.Column(i).Kind() != k {
			t.Errorf("第%d列类型 = %v, 期望 %v", i, r.Column(i).Kind(), k)
		}
	}
	if b, _ := r.Column(5).AsBytes(); string(b) != "hi" {
		t.Errorf("bytes 列 = %q, 期望 hi", b)
	}
	if !r.Column(6).IsNull() {
		t.Error("未配置 value 的列应为空值")
	}
}

func TestStreamReader_InitErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
		code errs.Code
	}{
		{name: "缺少列", json: `{"sliceRecordCount": 1}`, code: errs.RequiredValue},
		{name: "未知类型", json: `{"column": [{"type": "map", "value": 1}], "sliceRecordCount": 1}`, code: errs.IllegalValue},
		{name: "值无法转换", json: `{"column": [{"type": "long", "value": "abc"}], "sliceRecordCount": 1}`, code: errs.IllegalValue},
		{name: "记录数为负", json: `{"column": [{"type": "long", "value": 1}], "sliceRecordCount": -1}`, code: errs.IllegalValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf, err := config.FromJSON([]byte(tt.json))
			if err != nil {
				t.Fatalf("解析配置失败: %v", err)
			}
			if err := (&Job{}).Init(conf); !errs.Is(err, tt.code) {
				t.Errorf("期望错误码 %s，实际为 %v", tt.code.Name, err)
			}
		})
	}
}
