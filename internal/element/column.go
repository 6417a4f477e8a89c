// Package element 定义读写插件之间交换的通用列与记录模型
package element

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/inf.v0"

	"datasync/internal/pkg/errs"
)

// Kind 列的逻辑类型
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindLong
	KindDecimal
	KindDouble
	KindBool
	KindDate
	KindBytes
)

var kindNames = [...]string{"NULL", "STRING", "LONG", "DECIMAL", "DOUBLE", "BOOL", "DATE", "BYTES"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "UNKNOWN"
}

// DateType 日期列的子类型
type DateType int

const (
	DateTime DateType = iota
	DateOnly
	TimeOnly
)

// Column 带逻辑类型的不可变值，raw 为 nil 时表示空值
type Column struct {
	kind     Kind
	raw      any
	dateType DateType
	byteSize int
}

// NewNullColumn 创建空值列
func NewNullColumn() *Column {
	return &Column{kind: KindNull}
}

// NewStringColumn 创建字符串列
func NewStringColumn(s string) *Column {
	return &Column{kind: KindString, raw: s, byteSize: len(s)}
}

// NewNullableStringColumn 创建可能为空的字符串列
func NewNullableStringColumn(s *string) *Column {
	if s == nil {
		return &Column{kind: KindString}
	}
	return NewStringColumn(*s)
}

// NewLongColumn 创建整数列
func NewLongColumn(v int64) *Column {
	return &Column{kind: KindLong, raw: big.NewInt(v), byteSize: 8}
}

// NewBigIntColumn 创建任意精度整数列
func NewBigIntColumn(v *big.Int) *Column {
	if v == nil {
		return &Column{kind: KindLong}
	}
	return &Column{kind: KindLong, raw: new(big.Int).Set(v), byteSize: 8}
}

// NewLongColumnFromString 从字符串创建整数列，允许带小数部分的输入按截断处理
func NewLongColumnFromString(s string) (*Column, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return &Column{kind: KindLong}, nil
	}
	if v, ok := new(big.Int).SetString(s, 10); ok {
		return &Column{kind: KindLong, raw: v, byteSize: 8}, nil
	}
	d, ok := new(inf.Dec).SetString(s)
	if !ok {
		return nil, errs.New(errs.Convert, "String[%s]不能转为Long", s)
	}
	return &Column{kind: KindLong, raw: truncate(d), byteSize: 8}, nil
}

// NewDecimalColumn 从十进制字符串创建精确小数列
func NewDecimalColumn(s string) (*Column, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return &Column{kind: KindDecimal}, nil
	}
	if _, ok := new(inf.Dec).SetString(s); !ok {
		return nil, errs.New(errs.Convert, "String[%s]不能转为Decimal", s)
	}
	return &Column{kind: KindDecimal, raw: s, byteSize: len(s)}, nil
}

// NewDoubleColumn 创建浮点列，以字符串形式保存避免精度漂移
func NewDoubleColumn(v float64) *Column {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		s = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return &Column{kind: KindDouble, raw: s, byteSize: 8}
}

// NewBoolColumn 创建布尔列
func NewBoolColumn(v bool) *Column {
	return &Column{kind: KindBool, raw: v, byteSize: 1}
}

// NewNullableBoolColumn 创建可能为空的布尔列
func NewNullableBoolColumn(v *bool) *Column {
	if v == nil {
		return &Column{kind: KindBool}
	}
	return NewBoolColumn(*v)
}

// NewDateColumn 创建日期时间列
func NewDateColumn(t time.Time) *Column {
	return NewDateColumnOf(t, DateTime)
}

// NewDateColumnOf 创建指定子类型的日期列
func NewDateColumnOf(t time.Time, dt DateType) *Column {
	return &Column{kind: KindDate, raw: t, dateType: dt, byteSize: 8}
}

// NewNullDateColumn 创建空的日期列
func NewNullDateColumn(dt DateType) *Column {
	return &Column{kind: KindDate, dateType: dt}
}

// NewBytesColumn 创建字节列
func NewBytesColumn(b []byte) *Column {
	if b == nil {
		return &Column{kind: KindBytes}
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return &Column{kind: KindBytes, raw: cp, byteSize: len(cp)}
}

// Kind 返回列类型
func (c *Column) Kind() Kind {
	return c.kind
}

// DateType 返回日期子类型
func (c *Column) DateType() DateType {
	return c.dateType
}

// Raw 返回原始值
func (c *Column) Raw() any {
	return c.raw
}

// IsNull 原始值为空
func (c *Column) IsNull() bool {
	return c.raw == nil
}

// ByteSize 估算的序列化字节数
func (c *Column) ByteSize() int {
	return c.byteSize
}

// AsString 字符串视图
func (c *Column) AsString() (string, error) {
	if c.raw == nil {
		return "", nil
	}
	switch c.kind {
	case KindString, KindDecimal, KindDouble:
		return c.raw.(string), nil
	case KindLong:
		return c.raw.(*big.Int).String(), nil
	case KindBool:
		return strconv.FormatBool(c.raw.(bool)), nil
	case KindDate:
		t := c.raw.(time.Time)
		switch c.dateType {
		case DateOnly:
			return t.Format("2006-01-02"), nil
		case TimeOnly:
			return t.Format("15:04:05"), nil
		default:
			return t.Format("2006-01-02 15:04:05"), nil
		}
	case KindBytes:
		return string(c.raw.([]byte)), nil
	}
	return "", c.convertErr("String")
}

// AsBigInt 任意精度整数视图，小数部分截断
func (c *Column) AsBigInt() (*big.Int, error) {
	if c.raw == nil {
		return nil, nil
	}
	switch c.kind {
	case KindLong:
		return new(big.Int).Set(c.raw.(*big.Int)), nil
	case KindBool:
		if c.raw.(bool) {
			return big.NewInt(1), nil
		}
		return big.NewInt(0), nil
	case KindDate:
		return big.NewInt(c.raw.(time.Time).UnixMilli()), nil
	case KindString, KindDecimal, KindDouble:
		d, err := c.AsDecimal()
		if err != nil {
			return nil, err
		}
		return truncate(d), nil
	}
	return nil, c.convertErr("Long")
}

// AsLong 64位整数视图，超出范围时报溢出错误
func (c *Column) AsLong() (int64, error) {
	if c.raw == nil {
		return 0, nil
	}
	v, err := c.AsBigInt()
	if err != nil {
		return 0, err
	}
	if !v.IsInt64() {
		return 0, errs.New(errs.Convert, "[%s]超出Long表示范围", v.String())
	}
	return v.Int64(), nil
}

// AsDecimal 精确小数视图
func (c *Column) AsDecimal() (*inf.Dec, error) {
	if c.raw == nil {
		return nil, nil
	}
	switch c.kind {
	case KindLong:
		return new(inf.Dec).SetUnscaledBig(c.raw.(*big.Int)), nil
	case KindBool:
		if c.raw.(bool) {
			return inf.NewDec(1, 0), nil
		}
		return inf.NewDec(0, 0), nil
	case KindDate:
		return inf.NewDec(c.raw.(time.Time).UnixMilli(), 0), nil
	case KindString, KindDecimal, KindDouble:
		s := strings.TrimSpace(c.raw.(string))
		d, ok := new(inf.Dec).SetString(s)
		if !ok {
			return nil, errs.New(errs.Convert, "String[%s]不能转为Decimal", s)
		}
		return d, nil
	}
	return nil, c.convertErr("Decimal")
}

// AsDouble 浮点视图，有限输入得到无穷结果时报错
func (c *Column) AsDouble() (float64, error) {
	if c.raw == nil {
		return 0, nil
	}
	switch c.kind {
	case KindString, KindDecimal, KindDouble:
		s := strings.TrimSpace(c.raw.(string))
		switch s {
		case "NaN":
			return math.NaN(), nil
		case "+Inf", "Infinity":
			return math.Inf(1), nil
		case "-Inf", "-Infinity":
			return math.Inf(-1), nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, errs.Wrap(errs.Convert, err, "String[%s]不能转为Double", s)
		}
		return v, nil
	case KindLong:
		f, _ := new(big.Float).SetInt(c.raw.(*big.Int)).Float64()
		if math.IsInf(f, 0) {
			return 0, errs.New(errs.Convert, "[%s]超出Double表示范围", c.raw.(*big.Int).String())
		}
		return f, nil
	case KindBool:
		if c.raw.(bool) {
			return 1, nil
		}
		return 0, nil
	case KindDate:
		return float64(c.raw.(time.Time).UnixMilli()), nil
	}
	return 0, c.convertErr("Double")
}

// AsBool 布尔视图
func (c *Column) AsBool() (bool, error) {
	if c.raw == nil {
		return false, nil
	}
	switch c.kind {
	case KindBool:
		return c.raw.(bool), nil
	case KindLong:
		return c.raw.(*big.Int).Sign() != 0, nil
	case KindString:
		b, err := cast.ToBoolE(strings.TrimSpace(c.raw.(string)))
		if err != nil {
			return false, errs.Wrap(errs.Convert, err, "String[%s]不能转为Bool", c.raw)
		}
		return b, nil
	}
	return false, c.convertErr("Bool")
}

// AsDate 时间点视图
func (c *Column) AsDate() (time.Time, error) {
	if c.raw == nil {
		return time.Time{}, nil
	}
	switch c.kind {
	case KindDate:
		return c.raw.(time.Time), nil
	case KindLong:
		v := c.raw.(*big.Int)
		if !v.IsInt64() {
			return time.Time{}, errs.New(errs.Convert, "[%s]超出Date表示范围", v.String())
		}
		return time.UnixMilli(v.Int64()), nil
	case KindString:
		t, err := cast.ToTimeE(strings.TrimSpace(c.raw.(string)))
		if err != nil {
			return time.Time{}, errs.Wrap(errs.Convert, err, "String[%s]不能转为Date", c.raw)
		}
		return t, nil
	}
	return time.Time{}, c.convertErr("Date")
}

// AsBytes 字节视图
func (c *Column) AsBytes() ([]byte, error) {
	if c.raw == nil {
		return nil, nil
	}
	switch c.kind {
	case KindBytes:
		return c.raw.([]byte), nil
	case KindString:
		return []byte(c.raw.(string)), nil
	}
	return nil, c.convertErr("Bytes")
}

func (c *Column) convertErr(target string) error {
	return errs.New(errs.Convert, "%s类型不能转为%s", c.kind, target)
}

// String 便于日志输出
func (c *Column) String() string {
	if c == nil || c.raw == nil {
		return "null"
	}
	s, err := c.AsString()
	if err != nil {
		return "<" + c.kind.String() + ">"
	}
	return s
}

// truncate 向零截断小数部分
func truncate(d *inf.Dec) *big.Int {
	r := new(inf.Dec).Round(d, 0, inf.RoundDown)
	return new(big.Int).Set(r.UnscaledBig())
}
