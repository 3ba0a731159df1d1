package models

import (
	"fmt"
	"net/http"
	"strings"
)

// HeaderConfig headers.yaml的内容
type HeaderConfig struct {
	Headers map[string]string `mapstructure:"headers" yaml:"headers"`
}

// CliHeaders 命令行 -H 传入的 "Name: Value" 列表
type CliHeaders []string

// Parse 解析为http.Header,同名头部后出现的覆盖先出现的
func (ch CliHeaders) Parse() (http.Header, error) {
	result := make(http.Header, len(ch))
	for i, s := range ch {
		name, value, ok := strings.Cut(s, ":")
		if !ok {
			return nil, fmt.Errorf("参数 --header 第%d项格式错误: 缺少冒号, 应为 'Name: Value'", i+1)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("参数 --header 第%d项格式错误: 头部名称为空", i+1)
		}
		result.Set(name, strings.TrimSpace(value))
	}
	return result, nil
}

// HeaderProvider 为渲染器提供请求头部
// 返回的头部已按 默认 < 配置文件 < 命令行 的优先级合并。
type HeaderProvider interface {
	GetHeaders() (http.Header, error)
}

// ValidationError 单个头部不合法
type ValidationError struct {
	Field      string // "name" 或 "value"
	HeaderName string
	Reason     string
	Suggestion string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("头部验证失败 [%s]: %s", e.HeaderName, e.Reason)
	if e.Suggestion != "" {
		msg += " (建议: " + e.Suggestion + ")"
	}
	return msg
}

// Unwrap 头部错误都属于配置错误
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// ConfigError 配置文件无法读取或解析
type ConfigError struct {
	FilePath string
	Cause    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("配置文件错误 [%s]: %v", e.FilePath, e.Cause)
}

// Unwrap 同时匹配底层原因和ErrInvalidConfig
func (e *ConfigError) Unwrap() []error {
	return []error{e.Cause, ErrInvalidConfig}
}
