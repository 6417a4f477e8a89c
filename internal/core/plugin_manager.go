package core

import (
	"io"
	"os"
	"slices"

	"datasync/internal/pkg/errs"
	"datasync/internal/plugin/rdbms"
	streamReader "datasync/internal/plugin/reader/stream"
	"datasync/internal/plugin/writer/hbasesql"
	"datasync/internal/plugin/writer/mongodb"
	streamWriter "datasync/internal/plugin/writer/stream"
)

// PluginManager 插件管理器
type PluginManager struct {
	registry *PluginRegistry
	// out streamwriter 的输出
	out io.Writer
}

// NewPluginManager 创建新的插件管理器
func NewPluginManager(registry *PluginRegistry) *PluginManager {
	return &PluginManager{registry: registry, out: os.Stdout}
}

// SetOutput 设置 streamwriter 的输出，需在注册前调用
func (pm *PluginManager) SetOutput(out io.Writer) {
	pm.out = out
}

// RegisterAllPlugins 注册所有内置插件
func (pm *PluginManager) RegisterAllPlugins() error {
	pm.registerReaderPlugins()
	pm.registerWriterPlugins()
	return nil
}

// registerReaderPlugins 每种关系型方言一个读插件，另加 streamreader
func (pm *PluginManager) registerReaderPlugins() {
	for _, d := range rdbms.Dialects() {
		pm.registry.RegisterReader(d.Name()+"reader", rdbms.NewReaderPlugin(d))
	}
	pm.registry.RegisterReader("streamreader", streamReader.NewPlugin())
}

// registerWriterPlugins 每种关系型方言一个写插件，另加键值与文档型写插件
func (pm *PluginManager) registerWriterPlugins() {
	for _, d := range rdbms.Dialects() {
		pm.registry.RegisterWriter(d.Name()+"writer", rdbms.NewWriterPlugin(d))
	}
	pm.registry.RegisterWriter("hbasesqlwriter", hbasesql.NewPlugin())
	pm.registry.RegisterWriter("mongodbwriter", mongodb.NewPlugin())
	pm.registry.RegisterWriter("streamwriter", streamWriter.NewPlugin(pm.out))
}

// GetSupportedPlugins 获取支持的插件列表
func (pm *PluginManager) GetSupportedPlugins() map[string][]string {
	return map[string][]string{
		"readers": pm.registry.GetRegisteredReaders(),
		"writers": pm.registry.GetRegisteredWriters(),
	}
}

// ValidatePlugin 验证插件是否支持
func (pm *PluginManager) ValidatePlugin(pluginType, name string) error {
	supported := pm.GetSupportedPlugins()

	var pluginList []string
	switch pluginType {
	case "reader":
		pluginList = supported["readers"]
	case "writer":
		pluginList = supported["writers"]
	default:
		return errs.New(errs.Config, "未知的插件类型: %s", pluginType)
	}

	if slices.Contains(pluginList, name) {
		return nil
	}
	return errs.New(errs.Config, "不支持的%s插件: %s", pluginType, name)
}

// IsPluginRegistered 检查插件是否已注册
func (pm *PluginManager) IsPluginRegistered(pluginType, name string) bool {
	switch pluginType {
	case "reader":
		return pm.registry.HasReader(name)
	case "writer":
		return pm.registry.HasWriter(name)
	default:
		return false
	}
}

// GetRegistry 获取插件注册器
func (pm *PluginManager) GetRegistry() *PluginRegistry {
	return pm.registry
}

// 全局插件管理器实例
var DefaultPluginManager = NewPluginManager(DefaultRegistry)

// RegisterAllBuiltinPlugins 注册所有内置插件的便捷函数
func RegisterAllBuiltinPlugins() error {
	return DefaultPluginManager.RegisterAllPlugins()
}

// ValidateBuiltinPlugin 验证内置插件的便捷函数
func ValidateBuiltinPlugin(pluginType, name string) error {
	return DefaultPluginManager.ValidatePlugin(pluginType, name)
}

// GetSupportedBuiltinPlugins 获取支持的内置插件列表的便捷函数
func GetSupportedBuiltinPlugins() map[string][]string {
	return DefaultPluginManager.GetSupportedPlugins()
}
