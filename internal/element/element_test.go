package element

import (
	"math/big"
	"testing"
	"time"

	"datasync/internal/pkg/errs"
)

func TestColumn_Views(t *testing.T) {
	day := time.Date(2024, 3, 5, 10, 20, 30, 0, time.UTC)
	dec, _ := NewDecimalColumn("12.75")
	long, _ := NewLongColumnFromString("-8.9")

	tests := []struct {
		name    string
		col     *Column
		str     string
		long    int64
		longErr bool
	}{
		{"字符串数字", NewStringColumn("42"), "42", 42, false},
		{"整数", NewLongColumn(7), "7", 7, false},
		{"小数截断", dec, "12.75", 12, false},
		{"负数字符串截断", long, "-8", -8, false},
		{"浮点", NewDoubleColumn(1.5), "1.5", 1, false},
		{"布尔", NewBoolColumn(true), "true", 1, false},
		{"日期", NewDateColumn(day), "2024-03-05 10:20:30", day.UnixMilli(), false},
		{"非法字符串", NewStringColumn("abc"), "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := tt.col.AsString()
			if err != nil || s != tt.str {
				t.Errorf("AsString() = %q, %v, want %q", s, err, tt.str)
			}
			l, err := tt.col.AsLong()
			if (err != nil) != tt.longErr {
				t.Fatalf("AsLong() error = %v, wantErr %v", err, tt.longErr)
			}
			if !tt.longErr && l != tt.long {
				t.Errorf("AsLong() = %d, want %d", l, tt.long)
			}
		})
	}
}

func TestColumn_NumericOverflowAgrees(t *testing.T) {
	huge, _ := new(big.Int).SetString("92233720368547758070", 10)
	cols := []*Column{
		NewBigIntColumn(huge),
		NewStringColumn("92233720368547758070"),
	}
	for _, c := range cols {
		if _, err := c.AsLong(); !errs.Is(err, errs.Convert) {
			t.Errorf("%s: AsLong() 应报溢出错误, got %v", c.Kind(), err)
		}
		d, err := c.AsDecimal()
		if err != nil || d.String() != "92233720368547758070" {
			t.Errorf("%s: AsDecimal() = %v, %v", c.Kind(), d, err)
		}
		s, _ := c.AsString()
		if s != "92233720368547758070" {
			t.Errorf("%s: AsString() = %s", c.Kind(), s)
		}
	}
}

func TestColumn_Null(t *testing.T) {
	cols := []*Column{
		NewNullColumn(),
		NewNullableStringColumn(nil),
		NewBigIntColumn(nil),
		NewNullDateColumn(DateOnly),
		NewBytesColumn(nil),
		NewNullableBoolColumn(nil),
	}
	for _, c := range cols {
		if !c.IsNull() {
			t.Errorf("%s 列应为空", c.Kind())
		}
		if c.ByteSize() != 0 {
			t.Errorf("空列字节数应为0, got %d", c.ByteSize())
		}
		if s, err := c.AsString(); err != nil || s != "" {
			t.Errorf("空列 AsString() = %q, %v", s, err)
		}
	}
}

func TestColumn_DateAndBool(t *testing.T) {
	d, err := NewStringColumn("2024-01-02 03:04:05").AsDate()
	if err != nil {
		t.Fatalf("AsDate() error = %v", err)
	}
	if d.Year() != 2024 || d.Hour() != 3 {
		t.Errorf("AsDate() = %v", d)
	}
	if _, err := NewStringColumn("not-a-date").AsDate(); err == nil {
		t.Error("非法日期应报错")
	}
	if b, err := NewStringColumn("TRUE").AsBool(); err != nil || !b {
		t.Errorf("AsBool() = %v, %v", b, err)
	}
	if _, err := NewDoubleColumn(1).AsBool(); err == nil {
		t.Error("Double 转 Bool 应报错")
	}
	if s, _ := NewDateColumnOf(d, DateOnly).AsString(); s != "2024-01-02" {
		t.Errorf("日期子类型字符串 = %s", s)
	}
}

func TestColumn_BytesAndDouble(t *testing.T) {
	src := []byte{1, 2, 3}
	c := NewBytesColumn(src)
	src[0] = 9
	b, _ := c.AsBytes()
	if b[0] != 1 {
		t.Error("字节列应拷贝输入")
	}
	if c.ByteSize() != 3 {
		t.Errorf("ByteSize() = %d", c.ByteSize())
	}
	if _, err := NewBoolColumn(true).AsBytes(); err == nil {
		t.Error("Bool 转 Bytes 应报错")
	}
	if v, err := NewStringColumn("3.25").AsDouble(); err != nil || v != 3.25 {
		t.Errorf("AsDouble() = %v, %v", v, err)
	}
}

func TestRecord_ByteSize(t *testing.T) {
	r := NewRecord(NewStringColumn("abcd"), NewLongColumn(1), nil, NewBoolColumn(false))
	if r.ColumnNumber() != 4 {
		t.Errorf("ColumnNumber() = %d", r.ColumnNumber())
	}
	if r.ByteSize() != 4+8+1 {
		t.Errorf("ByteSize() = %d, want 13", r.ByteSize())
	}
	if r.Column(2) != nil || r.Column(10) != nil {
		t.Error("缺失列与越界列应返回nil")
	}
}

func TestReorder(t *testing.T) {
	r := NewRecord(NewStringColumn("a"), NewStringColumn("b"), NewStringColumn("c"))
	perm, err := KeyFirstPermutation([]string{"id", "name", "code"}, []string{"CODE"})
	if err != nil {
		t.Fatalf("KeyFirstPermutation() error = %v", err)
	}
	if len(perm) != 3 || perm[0] != 2 || perm[1] != 0 || perm[2] != 1 {
		t.Fatalf("perm = %v", perm)
	}

	out := Reorder(r, append(perm, 0, 1, 2))
	got := out.String()
	if got != "[c, a, b, a, b, c]" {
		t.Errorf("Reorder() = %s", got)
	}
	if r.String() != "[a, b, c]" {
		t.Errorf("原记录不应被修改: %s", r.String())
	}
	if out.ByteSize() != 6 {
		t.Errorf("重排后字节数 = %d", out.ByteSize())
	}

	if _, err := KeyFirstPermutation([]string{"id"}, []string{"missing"}); !errs.Is(err, errs.IllegalValue) {
		t.Errorf("未知主键列应报错, got %v", err)
	}
	if s := PermuteStrings([]string{"id", "name", "code"}, perm); s[0] != "code" {
		t.Errorf("PermuteStrings() = %v", s)
	}
}
