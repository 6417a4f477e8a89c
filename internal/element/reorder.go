package element

import (
	"strings"

	"datasync/internal/pkg/errs"
)

// Reorder 按排列生成新记录，perm[i] 为新记录第i列在原记录中的下标；原记录不变
func Reorder(r *Record, perm []int) *Record {
	out := &Record{columns: make([]*Column, len(perm))}
	for i, src := range perm {
		c := r.Column(src)
		out.columns[i] = c
		if c != nil {
			out.byteSize += c.ByteSize()
		}
	}
	return out
}

// KeyFirstPermutation 计算“主键列在前、其余列在后”的排列，列名比较不区分大小写
func KeyFirstPermutation(columns, keys []string) ([]int, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[strings.ToLower(c)] = i
	}
	perm := make([]int, 0, len(columns))
	isKey := make(map[int]bool, len(keys))
	for _, k := range keys {
		i, ok := index[strings.ToLower(strings.TrimSpace(k))]
		if !ok {
			return nil, errs.New(errs.IllegalValue, "主键列 [%s] 不在列配置 %v 中", k, columns)
		}
		if isKey[i] {
			continue
		}
		isKey[i] = true
		perm = append(perm, i)
	}
	for i := range columns {
		if !isKey[i] {
			perm = append(perm, i)
		}
	}
	return perm, nil
}

// PermuteStrings 按排列重排字符串切片
func PermuteStrings(values []string, perm []int) []string {
	out := make([]string, len(perm))
	for i, src := range perm {
		out[i] = values[src]
	}
	return out
}
