package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"datasync/internal/pkg/errs"
)

// ReadJobFile 读取任务文件并统一转换为JSON文本，支持 .json/.yaml/.yml
func ReadJobFile(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.Config, err, "读取任务配置文件失败")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAMLToJSON(content)
	default:
		return content, nil
	}
}

// YAMLToJSON 将YAML文档转换为JSON文本
func YAMLToJSON(content []byte) ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, errs.Wrap(errs.Config, err, "解析YAML任务配置失败")
	}
	data, err := json.Marshal(normalize(doc))
	if err != nil {
		return nil, errs.Wrap(errs.Config, err, "转换YAML任务配置失败")
	}
	return data, nil
}
