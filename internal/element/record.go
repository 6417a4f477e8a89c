package element

import "strings"

// Record 定长的列序列，附带字节数估算
type Record struct {
	columns  []*Column
	byteSize int
}

// NewRecord 创建记录；nil 列表示该字段缺失
func NewRecord(columns ...*Column) *Record {
	r := &Record{columns: make([]*Column, 0, len(columns))}
	for _, c := range columns {
		r.AddColumn(c)
	}
	return r
}

// AddColumn 追加一列
func (r *Record) AddColumn(c *Column) {
	r.columns = append(r.columns, c)
	if c != nil {
		r.byteSize += c.ByteSize()
	}
}

// Column 返回第i列
func (r *Record) Column(i int) *Column {
	if i < 0 || i >= len(r.columns) {
		return nil
	}
	return r.columns[i]
}

// Columns 返回列切片（只读）
func (r *Record) Columns() []*Column {
	return r.columns
}

// ColumnNumber 列数
func (r *Record) ColumnNumber() int {
	return len(r.columns)
}

// ByteSize 各列字节数之和
func (r *Record) ByteSize() int {
	return r.byteSize
}

func (r *Record) String() string {
	parts := make([]string, len(r.columns))
	for i, c := range r.columns {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
