package core

import (
	"sort"
	"sync"

	"datasync/internal/pkg/errs"
	"datasync/internal/plugin/common"
)

// PluginRegistry 插件注册器
type PluginRegistry struct {
	readers map[string]common.ReaderPlugin
	writers map[string]common.WriterPlugin
	mutex   sync.RWMutex
}

// NewPluginRegistry 创建新的插件注册器
func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{
		readers: make(map[string]common.ReaderPlugin),
		writers: make(map[string]common.WriterPlugin),
	}
}

// RegisterReader 注册Reader插件
func (r *PluginRegistry) RegisterReader(name string, plugin common.ReaderPlugin) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.readers[name] = plugin
}

// RegisterWriter 注册Writer插件
func (r *PluginRegistry) RegisterWriter(name string, plugin common.WriterPlugin) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.writers[name] = plugin
}

// Reader 查找Reader插件
func (r *PluginRegistry) Reader(name string) (common.ReaderPlugin, error) {
	r.mutex.RLock()
	plugin, exists := r.readers[name]
	r.mutex.RUnlock()

	if !exists {
		return common.ReaderPlugin{}, errs.New(errs.Config, "未找到Reader插件: %s", name)
	}
	return plugin, nil
}

// Writer 查找Writer插件
func (r *PluginRegistry) Writer(name string) (common.WriterPlugin, error) {
	r.mutex.RLock()
	plugin, exists := r.writers[name]
	r.mutex.RUnlock()

	if !exists {
		return common.WriterPlugin{}, errs.New(errs.Config, "未找到Writer插件: %s", name)
	}
	return plugin, nil
}

// GetRegisteredReaders 获取已注册的Reader插件名称列表（有序）
func (r *PluginRegistry) GetRegisteredReaders() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.readers))
	for name := range r.readers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetRegisteredWriters 获取已注册的Writer插件名称列表（有序）
func (r *PluginRegistry) GetRegisteredWriters() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.writers))
	for name := range r.writers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasReader 检查是否存在指定的Reader插件
func (r *PluginRegistry) HasReader(name string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	_, exists := r.readers[name]
	return exists
}

// HasWriter 检查是否存在指定的Writer插件
func (r *PluginRegistry) HasWriter(name string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	_, exists := r.writers[name]
	return exists
}

// PluginInfo 插件信息
type PluginInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "reader" 或 "writer"
	Description string `json:"description,omitempty"`
}

// GetPluginInfo 获取所有插件信息，先Reader后Writer，各自按名称排序
func (r *PluginRegistry) GetPluginInfo() []PluginInfo {
	var plugins []PluginInfo
	for _, name := range r.GetRegisteredReaders() {
		p, _ := r.Reader(name)
		plugins = append(plugins, PluginInfo{Name: name, Type: "reader", Description: p.Description})
	}
	for _, name := range r.GetRegisteredWriters() {
		p, _ := r.Writer(name)
		plugins = append(plugins, PluginInfo{Name: name, Type: "writer", Description: p.Description})
	}
	return plugins
}

// Clear 清空所有注册的插件（主要用于测试）
func (r *PluginRegistry) Clear() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.readers = make(map[string]common.ReaderPlugin)
	r.writers = make(map[string]common.WriterPlugin)
}

// DefaultRegistry 全局插件注册器实例
var DefaultRegistry = NewPluginRegistry()
