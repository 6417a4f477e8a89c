package coerce

import (
	"database/sql"
	"strings"
	"time"

	"datasync/internal/element"
	"datasync/internal/pkg/errs"
)

// Policy 关系型目标端的转换策略
type Policy struct {
	// EmptyAsNull 数值类型的空字符串写为NULL
	EmptyAsNull bool
	// BitAsBool BIT 字段以布尔值绑定（MySQL）
	BitAsBool bool
}

// DefaultPolicy 默认策略
func DefaultPolicy() Policy {
	return Policy{EmptyAsNull: true}
}

// UnsupportedTypeError 构造不支持字段类型的错误
func UnsupportedTypeError(meta ColumnMeta) error {
	return errs.New(errs.UnsupportedType,
		"您的配置文件中的列配置信息有误. 不支持数据库写入这种字段类型. 字段名:[%s], 字段类型:[%d], 字段原生类型:[%s]. 请修改表中该字段的类型或者不同步该字段",
		meta.Name, int(meta.Type), meta.NativeName)
}

// TypedNull 返回带类型的空值
func TypedNull(t SQLType) any {
	switch t {
	case TypeTinyInt, TypeSmallInt, TypeInteger, TypeBigInt:
		return sql.NullInt64{}
	case TypeFloat, TypeReal, TypeDouble:
		return sql.NullFloat64{}
	case TypeBoolean, TypeBit:
		return sql.NullBool{}
	case TypeDate, TypeTime, TypeTimestamp:
		return sql.NullTime{}
	case TypeBinary, TypeVarbinary, TypeBlob, TypeLongVarbinary:
		return []byte(nil)
	default:
		return sql.NullString{}
	}
}

// Relational 关系型目标端的绑定值：按声明类型选择列视图
func Relational(meta ColumnMeta, col *element.Column, policy Policy) (any, error) {
	if col == nil || col.IsNull() {
		return TypedNull(meta.Type), nil
	}

	switch meta.Type {
	case TypeChar, TypeNChar, TypeClob, TypeNClob, TypeVarchar, TypeLongVarchar,
		TypeNVarchar, TypeLongNVarchar, TypeBoolean, TypeSQLXML, TypeArray:
		return asString(meta, col)

	case TypeSmallInt, TypeInteger, TypeBigInt, TypeNumeric, TypeDecimal,
		TypeFloat, TypeReal, TypeDouble:
		s, err := asString(meta, col)
		if err != nil {
			return nil, err
		}
		if policy.EmptyAsNull && s == "" {
			return TypedNull(meta.Type), nil
		}
		return s, nil

	case TypeTinyInt:
		v, err := col.AsLong()
		if err != nil {
			return nil, convertErr(meta, err)
		}
		return v, nil

	case TypeDate:
		t, err := col.AsDate()
		if err != nil {
			return nil, convertErr(meta, err)
		}
		if strings.EqualFold(BaseTypeName(meta.NativeName), "year") {
			return int64(t.Year()), nil
		}
		return t, nil

	case TypeTime:
		t, err := col.AsDate()
		if err != nil {
			return nil, convertErr(meta, err)
		}
		return t, nil

	case TypeTimestamp:
		// 带时区的 DateTime 驱动无法表达时区，按字符串写入
		if strings.HasPrefix(meta.NativeName, "DateTime(") {
			return asString(meta, col)
		}
		t, err := col.AsDate()
		if err != nil {
			return nil, convertErr(meta, err)
		}
		return t, nil

	case TypeBinary, TypeVarbinary, TypeBlob, TypeLongVarbinary:
		b, err := col.AsBytes()
		if err != nil {
			return nil, convertErr(meta, err)
		}
		return b, nil

	case TypeBit:
		if policy.BitAsBool {
			b, err := col.AsBool()
			if err != nil {
				return nil, convertErr(meta, err)
			}
			return b, nil
		}
		return asString(meta, col)

	case TypeOther:
		if strings.EqualFold(meta.NativeName, "image") {
			b, err := col.AsBytes()
			if err != nil {
				return nil, convertErr(meta, err)
			}
			return b, nil
		}
		// DateTime64(p, tz) 等其余数据库特有类型按字符串写入
		return asString(meta, col)
	}

	return nil, UnsupportedTypeError(meta)
}

func asString(meta ColumnMeta, col *element.Column) (string, error) {
	s, err := col.AsString()
	if err != nil {
		return "", convertErr(meta, err)
	}
	return s, nil
}

func convertErr(meta ColumnMeta, err error) error {
	return errs.Wrap(errs.Convert, err, "字段[%s]类型[%s]转换失败", meta.Name, meta.NativeName)
}

// epoch EMPTY 模式下日期类字段的零值
var epoch = time.Unix(0, 0).UTC()
