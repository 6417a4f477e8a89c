package core

import (
	"fmt"
	"strings"

	"datasync/internal/config"
)

// ConfigValidator 配置验证器接口
type ConfigValidator interface {
	Validate() error
}

// JobConfigValidator 任务配置验证器
type JobConfigValidator struct {
	config   *JobConfig
	registry *PluginRegistry
}

// NewJobConfigValidator 创建新的任务配置验证器，使用全局插件注册器
func NewJobConfigValidator(config *JobConfig) *JobConfigValidator {
	return NewJobConfigValidatorWithRegistry(config, DefaultRegistry)
}

// NewJobConfigValidatorWithRegistry 创建使用指定注册器的验证器
func NewJobConfigValidatorWithRegistry(config *JobConfig, registry *PluginRegistry) *JobConfigValidator {
	return &JobConfigValidator{
		config:   config,
		registry: registry,
	}
}

// Validate 验证任务配置
func (v *JobConfigValidator) Validate() error {
	if v.config == nil {
		return fmt.Errorf("配置不能为空")
	}

	// 验证基本结构
	if err := v.validateBasicStructure(); err != nil {
		return fmt.Errorf("基本结构验证失败: %v", err)
	}

	// 验证内容配置
	if err := v.validateContent(); err != nil {
		return fmt.Errorf("内容配置验证失败: %v", err)
	}

	// 验证设置配置
	if err := v.validateSettings(); err != nil {
		return fmt.Errorf("设置配置验证失败: %v", err)
	}

	return nil
}

// validateBasicStructure 验证基本结构
func (v *JobConfigValidator) validateBasicStructure() error {
	if len(v.config.Job.Content) == 0 {
		return fmt.Errorf("任务配置中没有content")
	}

	if len(v.config.Job.Content) > 1 {
		return fmt.Errorf("当前版本只支持单个content配置")
	}

	return nil
}

// validateContent 验证内容配置
func (v *JobConfigValidator) validateContent() error {
	content := v.config.Job.Content[0]

	if err := v.validateReader(&content.Reader); err != nil {
		return fmt.Errorf("Reader配置验证失败: %v", err)
	}

	if err := v.validateWriter(&content.Writer); err != nil {
		return fmt.Errorf("Writer配置验证失败: %v", err)
	}

	return nil
}

// validateReader 验证Reader配置
func (v *JobConfigValidator) validateReader(reader *PluginConfig) error {
	if reader.Name == "" {
		return fmt.Errorf("Reader名称不能为空")
	}

	plugin, err := v.registry.Reader(reader.Name)
	if err != nil {
		return fmt.Errorf("不支持的Reader类型: %s，支持的类型: %s",
			reader.Name, strings.Join(v.registry.GetRegisteredReaders(), ", "))
	}

	if reader.Parameter == nil {
		return fmt.Errorf("Reader参数不能为空")
	}

	return validateRequired(config.FromMap(reader.Parameter), plugin.Required)
}

// validateWriter 验证Writer配置
func (v *JobConfigValidator) validateWriter(writer *PluginConfig) error {
	if writer.Name == "" {
		return fmt.Errorf("Writer名称不能为空")
	}

	plugin, err := v.registry.Writer(writer.Name)
	if err != nil {
		return fmt.Errorf("不支持的Writer类型: %s，支持的类型: %s",
			writer.Name, strings.Join(v.registry.GetRegisteredWriters(), ", "))
	}

	if writer.Parameter == nil {
		return fmt.Errorf("Writer参数不能为空")
	}

	params := config.FromMap(writer.Parameter)
	if err := validateRequired(params, plugin.Required); err != nil {
		return err
	}

	// 验证批次大小
	if params.Has("batchSize") && params.GetInt("batchSize", 0) <= 0 {
		return fmt.Errorf("批次大小必须大于0")
	}
	if params.Has("batchByteSize") && params.GetInt64("batchByteSize", 0) <= 0 {
		return fmt.Errorf("批次字节数必须大于0")
	}

	return nil
}

// validateRequired 检查必填字段，路径语法同 Configuration
func validateRequired(params *config.Configuration, required []string) error {
	for _, field := range required {
		if !params.Has(field) {
			return fmt.Errorf("缺少必需字段: %s", field)
		}
	}
	return nil
}

// validateSettings 验证设置配置
func (v *JobConfigValidator) validateSettings() error {
	settings := &v.config.Job.Setting

	// 验证速度设置
	if settings.Speed.Channel < 0 {
		return fmt.Errorf("通道数不能为负数")
	}

	if settings.Speed.Bytes < 0 {
		return fmt.Errorf("字节数限制不能为负数")
	}

	if settings.Speed.Record < 0 {
		return fmt.Errorf("记录数限制不能为负数")
	}

	if settings.ChannelCapacity < 0 {
		return fmt.Errorf("通道容量不能为负数")
	}

	// 验证错误限制设置
	if settings.ErrorLimit.Record < 0 {
		return fmt.Errorf("错误记录数限制不能为负数")
	}

	if settings.ErrorLimit.Percentage < 0 || settings.ErrorLimit.Percentage > 1 {
		return fmt.Errorf("错误百分比必须在0-1之间")
	}

	return nil
}

// ValidateJobConfig 验证任务配置的便捷函数
func ValidateJobConfig(config *JobConfig) error {
	validator := NewJobConfigValidator(config)
	return validator.Validate()
}
