package rdbms

import (
	"strings"

	"datasync/internal/element"
	"datasync/internal/pkg/errs"
	"datasync/internal/plugin/coerce"
)

// writeTemplate 单个写任务的写入模板，由目标表字段类型计算一次，创建后不再修改
type writeTemplate struct {
	dialect Dialect
	table   string
	columns []string
	mode    WriteMode
	policy  coerce.Policy

	// metas 每行绑定参数的字段描述，按绑定顺序
	metas []coerce.ColumnMeta
	// perm 记录列到绑定参数的排列，nil 表示原序
	perm []int
	// rowsPerStatement 单条语句最多写入的行数，0 表示不限
	rowsPerStatement int
}

// newWriteTemplate 根据按列配置顺序描述的字段信息创建模板
func newWriteTemplate(d Dialect, table string, columns []string, metas []coerce.ColumnMeta,
	mode WriteMode, policy coerce.Policy) (*writeTemplate, error) {
	if len(columns) == 0 {
		return nil, errs.New(errs.RequiredValue, "目的表[%s]的列配置不能为空", table)
	}
	if len(metas) != len(columns) {
		return nil, errs.New(errs.ColumnMismatch,
			"目的表[%s]字段描述个数[%d]与列配置个数[%d]不相等", table, len(metas), len(columns))
	}
	t := &writeTemplate{
		dialect: d,
		table:   table,
		columns: columns,
		mode:    mode,
		policy:  policy,
		metas:   metas,
	}

	if mode.Kind == ModeUpdate {
		if _, err := element.KeyFirstPermutation(columns, mode.Keys); err != nil {
			return nil, err
		}
		if m, ok := d.(merger); ok {
			perm, err := m.MergePermutation(columns, mode.Keys)
			if err != nil {
				return nil, err
			}
			t.perm = perm
			t.metas = make([]coerce.ColumnMeta, len(perm))
			for i, src := range perm {
				t.metas[i] = metas[src]
			}
		}
	}

	maxRows, maxParams := d.Limits()
	if maxParams > 0 {
		t.rowsPerStatement = max(maxParams/len(t.metas), 1)
	}
	if maxRows > 0 && (t.rowsPerStatement == 0 || maxRows < t.rowsPerStatement) {
		t.rowsPerStatement = maxRows
	}

	// 提前生成一次语句，写入模式不被支持时在任务开始前报错
	if _, err := t.SQL(1); err != nil {
		return nil, err
	}
	return t, nil
}

// SQL 写入 rows 行的语句
func (t *writeTemplate) SQL(rows int) (string, error) {
	per := len(t.metas)
	values := make([]string, rows)
	holders := make([]string, per)
	for r := 0; r < rows; r++ {
		for j, meta := range t.metas {
			holders[j] = t.dialect.ValueHolder(t.dialect.Placeholder(r*per+j+1), meta)
		}
		values[r] = "(" + strings.Join(holders, ",") + ")"
	}
	return t.dialect.WriteSQL(t.table, t.columns, t.mode, values)
}

// Args 按绑定顺序转换记录
func (t *writeTemplate) Args(records []*element.Record) ([]any, error) {
	args := make([]any, 0, len(records)*len(t.metas))
	for _, record := range records {
		r := record
		if t.perm != nil {
			r = element.Reorder(record, t.perm)
		}
		for j, meta := range t.metas {
			v, err := coerce.Relational(meta, r.Column(j), t.policy)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
	}
	return args, nil
}

// Chunks 按单条语句行数上限切分记录
func (t *writeTemplate) Chunks(records []*element.Record) [][]*element.Record {
	size := t.rowsPerStatement
	if size <= 0 || size >= len(records) {
		return [][]*element.Record{records}
	}
	chunks := make([][]*element.Record, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		chunks = append(chunks, records[start:end])
	}
	return chunks
}
