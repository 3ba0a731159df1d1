// Package config 加载请求头部配置文件(headers.yaml)
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/RecoveryAshes/mdcrawl/internal/models"
	"github.com/RecoveryAshes/mdcrawl/internal/utils"
)

const (
	// DefaultConfigFile 默认头部配置文件
	DefaultConfigFile = "configs/headers.yaml"

	// MaxConfigFileSize 配置文件大小上限 1MB
	MaxConfigFileSize = 1 << 20
)

//go:embed headers_template.yaml
var headerTemplate []byte

// HeaderConfigLoader 头部配置加载器
type HeaderConfigLoader struct {
	configPath string
	explicit   bool // 用户显式指定了路径,文件不存在时报错
}

// NewHeaderConfigLoader 创建加载器,configPath为空时使用默认路径
func NewHeaderConfigLoader(configPath string) *HeaderConfigLoader {
	if configPath == "" {
		return &HeaderConfigLoader{configPath: DefaultConfigFile}
	}
	return &HeaderConfigLoader{configPath: configPath, explicit: true}
}

// Path 配置文件路径
func (hcl *HeaderConfigLoader) Path() string {
	return hcl.configPath
}

// WriteTemplate 在path生成带注释的头部配置模板,文件已存在时不覆盖
func WriteTemplate(path string) (bool, error) {
	if path == "" {
		path = DefaultConfigFile
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("无法创建配置目录: %w", err)
	}
	if err := os.WriteFile(path, headerTemplate, 0644); err != nil {
		return false, fmt.Errorf("无法生成配置文件 [%s]: %w", path, err)
	}
	return true, nil
}

// LoadConfig 读取并解析配置文件
// 默认路径的文件不存在时返回空配置。
func (hcl *HeaderConfigLoader) LoadConfig() (*models.HeaderConfig, error) {
	info, err := os.Stat(hcl.configPath)
	if errors.Is(err, fs.ErrNotExist) && !hcl.explicit {
		utils.Debugf("未找到头部配置文件 [%s], 使用默认头部", hcl.configPath)
		return &models.HeaderConfig{Headers: map[string]string{}}, nil
	}
	if err != nil {
		return nil, &models.ConfigError{FilePath: hcl.configPath, Cause: err}
	}
	if info.Size() > MaxConfigFileSize {
		return nil, &models.ConfigError{
			FilePath: hcl.configPath,
			Cause:    fmt.Errorf("配置文件过大: %d 字节 (最大 %d 字节)", info.Size(), MaxConfigFileSize),
		}
	}

	v := viper.New()
	v.SetConfigFile(hcl.configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, &models.ConfigError{FilePath: hcl.configPath, Cause: err}
	}

	var config models.HeaderConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{
			FilePath: hcl.configPath,
			Cause:    fmt.Errorf("配置绑定失败: %w", err),
		}
	}
	if config.Headers == nil {
		config.Headers = map[string]string{}
	}
	return &config, nil
}
