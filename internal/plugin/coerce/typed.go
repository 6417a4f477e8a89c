package coerce

import (
	"math"
	"strings"

	"datasync/internal/element"
	"datasync/internal/pkg/errs"
)

// NullMode 键值型目标端对缺失值的处理方式
type NullMode string

const (
	// NullModeSkip 缺失值写为带类型的NULL
	NullModeSkip NullMode = "skip"
	// NullModeEmpty 缺失值写为类型对应的零值
	NullModeEmpty NullMode = "empty"
)

// ParseNullMode 解析 nullMode 配置，空串为 skip
func ParseNullMode(s string) (NullMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(NullModeSkip):
		return NullModeSkip, nil
	case string(NullModeEmpty):
		return NullModeEmpty, nil
	default:
		return "", errs.New(errs.IllegalValue, "nullMode 仅支持 skip 或 empty, 当前配置为 [%s]", s)
	}
}

// EmptyValue 类型对应的零值
func EmptyValue(meta ColumnMeta) (any, error) {
	switch meta.Type {
	case TypeChar, TypeNChar, TypeVarchar, TypeNVarchar, TypeLongVarchar,
		TypeLongNVarchar, TypeClob, TypeNClob, TypeSQLXML:
		return "", nil
	case TypeBoolean, TypeBit:
		return false, nil
	case TypeTinyInt, TypeSmallInt, TypeInteger, TypeBigInt:
		return int64(0), nil
	case TypeFloat, TypeReal, TypeDouble:
		return float64(0), nil
	case TypeDecimal, TypeNumeric:
		return "0", nil
	case TypeDate, TypeTime, TypeTimestamp:
		return epoch, nil
	case TypeBinary, TypeVarbinary, TypeBlob, TypeLongVarbinary:
		return []byte{}, nil
	}
	return nil, UnsupportedTypeError(meta)
}

// Typed 键值型目标端的绑定值：按声明类型输出原生Go值
//
// col 为 nil 表示读端没有给出该字段，按 nullMode 处理；
// 列存在但原始值为空时总是写为带类型的NULL。
func Typed(meta ColumnMeta, col *element.Column, mode NullMode) (any, error) {
	if col == nil {
		if mode == NullModeEmpty {
			return EmptyValue(meta)
		}
		return TypedNull(meta.Type), nil
	}
	if col.IsNull() {
		return TypedNull(meta.Type), nil
	}

	switch meta.Type {
	case TypeChar, TypeNChar, TypeVarchar, TypeNVarchar, TypeLongVarchar,
		TypeLongNVarchar, TypeClob, TypeNClob, TypeSQLXML:
		return asString(meta, col)

	case TypeBinary, TypeVarbinary, TypeBlob, TypeLongVarbinary:
		b, err := col.AsBytes()
		if err != nil {
			return nil, convertErr(meta, err)
		}
		return b, nil

	case TypeBoolean, TypeBit:
		b, err := col.AsBool()
		if err != nil {
			return nil, convertErr(meta, err)
		}
		return b, nil

	case TypeTinyInt:
		return boundedLong(meta, col, math.MinInt8, math.MaxInt8)
	case TypeSmallInt:
		return boundedLong(meta, col, math.MinInt16, math.MaxInt16)
	case TypeInteger:
		return boundedLong(meta, col, math.MinInt32, math.MaxInt32)
	case TypeBigInt:
		v, err := col.AsLong()
		if err != nil {
			return nil, convertErr(meta, err)
		}
		return v, nil

	case TypeFloat, TypeReal:
		v, err := col.AsDouble()
		if err != nil {
			return nil, convertErr(meta, err)
		}
		if !math.IsInf(v, 0) && math.Abs(v) > math.MaxFloat32 {
			return nil, errs.New(errs.Convert, "字段[%s]的值[%v]超出Float表示范围", meta.Name, v)
		}
		return float64(float32(v)), nil
	case TypeDouble:
		v, err := col.AsDouble()
		if err != nil {
			return nil, convertErr(meta, err)
		}
		return v, nil

	case TypeDecimal, TypeNumeric:
		d, err := col.AsDecimal()
		if err != nil {
			return nil, convertErr(meta, err)
		}
		return d.String(), nil

	case TypeDate, TypeTime, TypeTimestamp:
		t, err := col.AsDate()
		if err != nil {
			return nil, convertErr(meta, err)
		}
		return t, nil
	}

	return nil, UnsupportedTypeError(meta)
}

func boundedLong(meta ColumnMeta, col *element.Column, lo, hi int64) (any, error) {
	v, err := col.AsLong()
	if err != nil {
		return nil, convertErr(meta, err)
	}
	if v < lo || v > hi {
		return nil, errs.New(errs.Convert, "字段[%s]的值[%d]超出%s表示范围", meta.Name, v, meta.Type)
	}
	return v, nil
}
