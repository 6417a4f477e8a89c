package mongodb

import (
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"datasync/internal/element"
	"datasync/internal/pkg/errs"
	"datasync/internal/plugin/coerce"
)

// Column 目标字段定义
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

var fieldTypes = map[string]coerce.SQLType{
	"string":  coerce.TypeVarchar,
	"int":     coerce.TypeBigInt,
	"long":    coerce.TypeBigInt,
	"double":  coerce.TypeDouble,
	"float":   coerce.TypeDouble,
	"bool":    coerce.TypeBoolean,
	"boolean": coerce.TypeBoolean,
	"date":    coerce.TypeTimestamp,
	"decimal": coerce.TypeDecimal,
	"bytes":   coerce.TypeBlob,
	"binary":  coerce.TypeBlob,
}

// fieldMetas 把字段定义转换为类型描述，未知类型在初始化时报错
func fieldMetas(columns []Column) ([]coerce.ColumnMeta, error) {
	metas := make([]coerce.ColumnMeta, len(columns))
	for i, c := range columns {
		if strings.TrimSpace(c.Name) == "" {
			return nil, errs.New(errs.RequiredValue, "第%d个字段没有配置 name", i)
		}
		t, ok := fieldTypes[strings.ToLower(strings.TrimSpace(c.Type))]
		if !ok {
			t = coerce.LookupNativeType(c.Type)
		}
		meta := coerce.ColumnMeta{Name: c.Name, Type: t, NativeName: c.Type}
		if _, err := coerce.EmptyValue(meta); err != nil {
			return nil, err
		}
		metas[i] = meta
	}
	return metas, nil
}

// checkKeys 主键必须按顺序排在字段定义的最前面
func checkKeys(columns []Column, keys []string) error {
	if len(keys) > len(columns) {
		return errs.New(errs.IllegalValue, "主键个数 %d 多于字段个数 %d", len(keys), len(columns))
	}
	for i, k := range keys {
		if !strings.EqualFold(columns[i].Name, k) {
			return errs.New(errs.IllegalValue, "主键 [%s] 必须是第 %d 个字段, 实际为 [%s]", k, i, columns[i].Name)
		}
	}
	return nil
}

// buildDocument 按字段定义把记录转换为文档
//
// 为 nil 的字段在 skip 模式下不写入文档，在 empty 模式下写入零值；
// 字段存在但值为空时写入 null。
func buildDocument(metas []coerce.ColumnMeta, record *element.Record, mode coerce.NullMode) (bson.D, error) {
	if record.ColumnNumber() != len(metas) {
		return nil, errs.New(errs.ColumnMismatch, "记录有 %d 列，但配置了 %d 个字段", record.ColumnNumber(), len(metas))
	}
	doc := make(bson.D, 0, len(metas))
	for i, meta := range metas {
		col := record.Column(i)
		switch {
		case col == nil && mode == coerce.NullModeSkip:
			continue
		case col != nil && col.IsNull():
			doc = append(doc, bson.E{Key: meta.Name, Value: nil})
			continue
		}
		v, err := coerce.Typed(meta, col, mode)
		if err != nil {
			return nil, err
		}
		if meta.Type == coerce.TypeDecimal || meta.Type == coerce.TypeNumeric {
			d, err := bson.ParseDecimal128(v.(string))
			if err != nil {
				return nil, errs.Wrap(errs.Convert, err, "字段[%s]的值[%v]超出Decimal128表示范围", meta.Name, v)
			}
			v = d
		}
		doc = append(doc, bson.E{Key: meta.Name, Value: v})
	}
	return doc, nil
}

// keyFilter 取文档中的主键字段作为覆盖写的过滤条件
func keyFilter(doc bson.D, keys []string) (bson.D, error) {
	filter := make(bson.D, 0, len(keys))
	for i, k := range keys {
		if i >= len(doc) || doc[i].Key != k || doc[i].Value == nil {
			return nil, errs.New(errs.Convert, "主键字段 [%s] 不能为空", k)
		}
		filter = append(filter, doc[i])
	}
	return filter, nil
}
