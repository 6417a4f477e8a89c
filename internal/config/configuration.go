// Package config 提供任务与切片使用的键值配置文档
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"datasync/internal/pkg/errs"
)

// Configuration 以路径访问的键值文档，路径形如 connection[0].table[1]
type Configuration struct {
	root map[string]any
}

// New 创建空配置
func New() *Configuration {
	return &Configuration{root: make(map[string]any)}
}

// FromMap 基于已有map创建配置，map会被深拷贝
func FromMap(m map[string]any) *Configuration {
	if m == nil {
		return New()
	}
	return &Configuration{root: deepCopy(m).(map[string]any)}
}

// FromJSON 解析JSON文本
func FromJSON(data []byte) (*Configuration, error) {
	var m map[string]any
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&m); err != nil {
		return nil, errs.Wrap(errs.Config, err, "解析配置JSON失败")
	}
	return FromMap(m), nil
}

// FromAny 将任意可JSON编码的值转换为配置
func FromAny(v any) (*Configuration, error) {
	if v == nil {
		return New(), nil
	}
	if c, ok := v.(*Configuration); ok {
		return c.Clone(), nil
	}
	if m, ok := v.(map[string]any); ok {
		return FromMap(normalize(m).(map[string]any)), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errs.Wrap(errs.Config, err, "参数编码失败")
	}
	return FromJSON(data)
}

// Get 获取路径对应的原始值
func (c *Configuration) Get(path string) any {
	if path == "" {
		return c.root
	}
	var cur any = c.root
	for _, seg := range parsePath(path) {
		switch node := cur.(type) {
		case map[string]any:
			if seg.isIndex {
				return nil
			}
			v, ok := node[seg.key]
			if !ok {
				return nil
			}
			cur = v
		case []any:
			if !seg.isIndex || seg.index < 0 || seg.index >= len(node) {
				return nil
			}
			cur = node[seg.index]
		default:
			return nil
		}
	}
	return cur
}

// Has 判断路径是否存在
func (c *Configuration) Has(path string) bool {
	return c.Get(path) != nil
}

// GetString 获取字符串，不存在时返回默认值
func (c *Configuration) GetString(path string, def ...string) string {
	v := c.Get(path)
	if v == nil {
		if len(def) > 0 {
			return def[0]
		}
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		if len(def) > 0 {
			return def[0]
		}
		return ""
	}
	return s
}

// GetInt 获取整数，不存在或无法转换时返回默认值
func (c *Configuration) GetInt(path string, def int) int {
	v := c.Get(path)
	if v == nil {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return n
}

// GetInt64 获取64位整数
func (c *Configuration) GetInt64(path string, def int64) int64 {
	v := c.Get(path)
	if v == nil {
		return def
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return def
	}
	return n
}

// GetBool 获取布尔值
func (c *Configuration) GetBool(path string, def bool) bool {
	v := c.Get(path)
	if v == nil {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

// GetStringList 获取字符串列表，单个字符串视为只有一个元素的列表
func (c *Configuration) GetStringList(path string) []string {
	v := c.Get(path)
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	}
	list, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil
	}
	return list
}

// GetList 获取列表
func (c *Configuration) GetList(path string) []any {
	if list, ok := c.Get(path).([]any); ok {
		return list
	}
	return nil
}

// GetConfiguration 获取子配置（拷贝）
func (c *Configuration) GetConfiguration(path string) *Configuration {
	if m, ok := c.Get(path).(map[string]any); ok {
		return FromMap(m)
	}
	return nil
}

// GetListConfiguration 获取子配置列表（拷贝）
func (c *Configuration) GetListConfiguration(path string) []*Configuration {
	var out []*Configuration
	for _, item := range c.GetList(path) {
		if m, ok := item.(map[string]any); ok {
			out = append(out, FromMap(m))
		}
	}
	return out
}

// GetNecessaryString 获取必填字符串
func (c *Configuration) GetNecessaryString(path string) (string, error) {
	s := strings.TrimSpace(c.GetString(path))
	if s == "" {
		return "", errs.New(errs.RequiredValue, "您未配置必填参数 [%s]", path)
	}
	return s, nil
}

// Set 设置路径对应的值，中间节点不存在时自动创建
func (c *Configuration) Set(path string, value any) error {
	segs := parsePath(path)
	if len(segs) == 0 {
		return errs.New(errs.IllegalValue, "配置路径不能为空")
	}
	value = normalize(value)
	var parent any = c.root
	for i, seg := range segs {
		last := i == len(segs)-1
		switch node := parent.(type) {
		case map[string]any:
			if seg.isIndex {
				return errs.New(errs.IllegalValue, "配置路径 [%s] 与现有结构不匹配", path)
			}
			if last {
				node[seg.key] = value
				return nil
			}
			next, ok := node[seg.key]
			if !ok || next == nil {
				next = newContainer(segs[i+1])
				node[seg.key] = next
			}
			parent = next
		case []any:
			if !seg.isIndex || seg.index < 0 || seg.index >= len(node) {
				return errs.New(errs.IllegalValue, "配置路径 [%s] 下标越界", path)
			}
			if last {
				node[seg.index] = value
				return nil
			}
			if node[seg.index] == nil {
				node[seg.index] = newContainer(segs[i+1])
			}
			parent = node[seg.index]
		default:
			return errs.New(errs.IllegalValue, "配置路径 [%s] 与现有结构不匹配", path)
		}
	}
	return nil
}

// Remove 删除顶层或嵌套键
func (c *Configuration) Remove(path string) {
	segs := parsePath(path)
	if len(segs) == 0 {
		return
	}
	parentPath := joinPath(segs[:len(segs)-1])
	lastSeg := segs[len(segs)-1]
	var parent any = c.root
	if parentPath != "" {
		parent = c.Get(parentPath)
	}
	if m, ok := parent.(map[string]any); ok && !lastSeg.isIndex {
		delete(m, lastSeg.key)
	}
}

// Keys 返回顶层键（有序）
func (c *Configuration) Keys() []string {
	keys := make([]string, 0, len(c.root))
	for k := range c.root {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone 深拷贝
func (c *Configuration) Clone() *Configuration {
	return FromMap(c.root)
}

// Merge 将另一个配置的顶层键合并进来，overwrite为false时保留已有值
func (c *Configuration) Merge(other *Configuration, overwrite bool) {
	if other == nil {
		return
	}
	for k, v := range other.root {
		if _, exists := c.root[k]; exists && !overwrite {
			continue
		}
		c.root[k] = deepCopy(v)
	}
}

// Decode 通过JSON编解码将配置转换为结构体参数
func (c *Configuration) Decode(target any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(c.root); err != nil {
		return errs.Wrap(errs.Config, err, "参数编码失败")
	}

	decoder := json.NewDecoder(bytes.NewReader(buf.Bytes()))
	decoder.UseNumber()
	if err := decoder.Decode(target); err != nil {
		return errs.Wrap(errs.Config, err, "参数解码失败")
	}
	return nil
}

// Map 返回底层map的拷贝
func (c *Configuration) Map() map[string]any {
	return deepCopy(c.root).(map[string]any)
}

// ToJSON 序列化为JSON
func (c *Configuration) ToJSON() string {
	data, err := json.Marshal(c.root)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// String 序列化，密码等敏感字段被遮蔽
func (c *Configuration) String() string {
	masked := c.Clone()
	maskSecrets(masked.root)
	return masked.ToJSON()
}

func maskSecrets(node any) {
	switch t := node.(type) {
	case map[string]any:
		for k, v := range t {
			if strings.EqualFold(k, "password") {
				t[k] = "******"
				continue
			}
			maskSecrets(v)
		}
	case []any:
		for _, v := range t {
			maskSecrets(v)
		}
	}
}

type pathSeg struct {
	key     string
	index   int
	isIndex bool
}

// parsePath 解析 a.b[0].c 形式的路径
func parsePath(path string) []pathSeg {
	var segs []pathSeg
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}
		name := part
		rest := ""
		if i := strings.IndexByte(part, '['); i >= 0 {
			name, rest = part[:i], part[i:]
		}
		if name != "" {
			segs = append(segs, pathSeg{key: name})
		}
		for strings.HasPrefix(rest, "[") {
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				break
			}
			idx, err := strconv.Atoi(rest[1:end])
			if err != nil {
				idx = -1
			}
			segs = append(segs, pathSeg{index: idx, isIndex: true})
			rest = rest[end+1:]
		}
	}
	return segs
}

func joinPath(segs []pathSeg) string {
	var b strings.Builder
	for _, s := range segs {
		if s.isIndex {
			fmt.Fprintf(&b, "[%d]", s.index)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.key)
	}
	return b.String()
}

func newContainer(next pathSeg) any {
	if next.isIndex {
		return make([]any, next.index+1)
	}
	return make(map[string]any)
}

// normalize 将 []string、map[string]string 等转换为通用结构
func normalize(v any) any {
	switch t := v.(type) {
	case *Configuration:
		return deepCopy(t.root)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = normalize(m)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out
	default:
		return v
	}
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return normalize(v)
	}
}
