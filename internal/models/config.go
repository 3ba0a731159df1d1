package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidConfig 配置校验失败,属于启动期致命错误
var ErrInvalidConfig = errors.New("配置无效")

// CrawlMode 渲染模式
type CrawlMode string

const (
	ModeDynamic CrawlMode = "dynamic" // 浏览器渲染(默认)
	ModeStatic  CrawlMode = "static"  // 直接抓取HTML,不执行JS
)

const (
	DefaultConcurrency = 6
	DefaultUserAgent   = "mdcrawl/1.0"
	DefaultOutDir      = "docs"
	DefaultPageTimeout = 180 * time.Second
	DefaultNavTimeout  = 120 * time.Second
	DefaultMaxRetries  = 2
)

// ScrapeConfig 爬取配置
// 启动时创建一次,之后只读。
type ScrapeConfig struct {
	SeedURL       string    `json:"seed_url"`       // 入口URL(必需,绝对URL)
	ExtraSeeds    []string  `json:"extra_seeds"`    // 额外入口URL(来自URL文件)
	AllowPrefix   string    `json:"allow_prefix"`   // 范围前缀(必需,绝对URL)
	OutDir        string    `json:"out_dir"`        // 输出目录(必需)
	Concurrency   int       `json:"concurrency"`    // 并发页面数 (默认:6)
	UserAgent     string    `json:"user_agent"`     // User-Agent
	RespectRobots bool      `json:"respect_robots"` // 是否遵守robots.txt(暂未实现)
	Mode          CrawlMode `json:"mode"`           // 渲染模式 (默认:dynamic)
	Headless      bool      `json:"headless"`       // 无头模式 (默认:true)

	MaxDepth    int           `json:"max_depth"`    // 最大深度,0表示不限制
	MaxPages    int           `json:"max_pages"`    // 最大页面数,0表示不限制
	PageTimeout time.Duration `json:"page_timeout"` // 单页处理超时
	NavTimeout  time.Duration `json:"nav_timeout"`  // 导航超时
	MaxRetries  int           `json:"max_retries"`  // 渲染失败重试次数

	IgnoreCertErrors bool   `json:"ignore_cert_errors"` // 跳过TLS证书校验
	BrowserBin       string `json:"browser_bin"`        // 浏览器可执行文件路径(为空时自动查找或下载)
	ReportDir        string `json:"report_dir"`         // 报告目录,为空时不生成报告
	Progress         bool   `json:"progress"`           // 显示进度条
}

// DefaultScrapeConfig 返回带默认值的配置
func DefaultScrapeConfig() ScrapeConfig {
	return ScrapeConfig{
		OutDir:      DefaultOutDir,
		Concurrency: DefaultConcurrency,
		UserAgent:   DefaultUserAgent,
		Mode:        ModeDynamic,
		Headless:    true,
		PageTimeout: DefaultPageTimeout,
		NavTimeout:  DefaultNavTimeout,
		MaxRetries:  DefaultMaxRetries,
	}
}

// Validate 验证配置
// 任何错误都包装ErrInvalidConfig,调用方应在开始爬取前终止。
func (c *ScrapeConfig) Validate() error {
	if err := ValidateURL(c.SeedURL); err != nil {
		return fmt.Errorf("%w: 入口URL: %v", ErrInvalidConfig, err)
	}
	for _, s := range c.ExtraSeeds {
		if err := ValidateURL(s); err != nil {
			return fmt.Errorf("%w: 额外入口URL %q: %v", ErrInvalidConfig, s, err)
		}
	}
	if err := ValidateURL(c.AllowPrefix); err != nil {
		return fmt.Errorf("%w: 范围前缀: %v", ErrInvalidConfig, err)
	}
	if strings.TrimSpace(c.OutDir) == "" {
		return fmt.Errorf("%w: 输出目录不能为空", ErrInvalidConfig)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: 并发数必须为正整数,当前值: %d", ErrInvalidConfig, c.Concurrency)
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		return fmt.Errorf("%w: User-Agent不能为空", ErrInvalidConfig)
	}
	if c.Mode != ModeDynamic && c.Mode != ModeStatic {
		return fmt.Errorf("%w: 无效的渲染模式: %s (有效值: dynamic, static)", ErrInvalidConfig, c.Mode)
	}
	if c.MaxDepth < 0 || c.MaxPages < 0 || c.MaxRetries < 0 {
		return fmt.Errorf("%w: 深度/页面数/重试次数不能为负数", ErrInvalidConfig)
	}
	if c.PageTimeout <= 0 || c.NavTimeout <= 0 {
		return fmt.Errorf("%w: 超时时间必须大于0", ErrInvalidConfig)
	}
	return nil
}

// Seeds 返回全部入口URL(主入口在前)
func (c *ScrapeConfig) Seeds() []string {
	seeds := make([]string, 0, 1+len(c.ExtraSeeds))
	seeds = append(seeds, c.SeedURL)
	return append(seeds, c.ExtraSeeds...)
}
