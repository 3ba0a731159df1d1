package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/RecoveryAshes/mdcrawl/internal/models"
	"github.com/RecoveryAshes/mdcrawl/internal/utils"
)

// Config 应用配置 (config.yaml + 环境变量)
type Config struct {
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Browser BrowserConfig `mapstructure:"browser"`
	Logging LoggingConfig `mapstructure:"logging"`
	Output  OutputConfig  `mapstructure:"output"`
}

// CrawlConfig 爬取配置
type CrawlConfig struct {
	Seed        string        `mapstructure:"seed"`
	Seeds       []string      `mapstructure:"seeds"`
	Allow       string        `mapstructure:"allow"`
	Concurrency int           `mapstructure:"concurrency"`
	UserAgent   string        `mapstructure:"user_agent"`
	Robots      bool          `mapstructure:"robots"`
	Mode        string        `mapstructure:"mode"`
	MaxDepth    int           `mapstructure:"max_depth"`
	MaxPages    int           `mapstructure:"max_pages"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PageTimeout time.Duration `mapstructure:"page_timeout"`
	NavTimeout  time.Duration `mapstructure:"nav_timeout"`
	HeadersFile string        `mapstructure:"headers_file"`
}

// BrowserConfig 浏览器配置
type BrowserConfig struct {
	Headless         bool   `mapstructure:"headless"`
	Bin              string `mapstructure:"bin"`
	IgnoreCertErrors bool   `mapstructure:"ignore_cert_errors"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	Dir       string `mapstructure:"dir"`
	ReportDir string `mapstructure:"report_dir"`
	Progress  bool   `mapstructure:"progress"`
}

// legacyEnv 兼容旧版的环境变量名
var legacyEnv = map[string]string{
	"crawl.seed":        "SEED",
	"crawl.allow":       "ALLOW",
	"output.dir":        "OUT",
	"crawl.concurrency": "CONCURRENCY",
	"crawl.user_agent":  "USER_AGENT",
	"crawl.robots":      "ROBOTS",
}

// LoadConfig 加载配置
// configPath为空时依次在 ./configs, ., ~/.mdcrawl 中查找config.yaml,找不到则只用默认值和环境变量。
// 环境变量 MDCRAWL_<SECTION>_<KEY> 覆盖文件中的值,如 MDCRAWL_CRAWL_SEED。
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".mdcrawl"))
		}
	}

	setDefaults(v)

	v.SetEnvPrefix("MDCRAWL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		envKey := "MDCRAWL_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, fmt.Errorf("绑定环境变量失败: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, &models.ConfigError{FilePath: configPath, Cause: err}
		}
	} else {
		utils.Debugf("使用配置文件: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{FilePath: v.ConfigFileUsed(), Cause: fmt.Errorf("解析配置失败: %w", err)}
	}
	return &config, nil
}

// setDefaults 默认值与models.DefaultScrapeConfig保持一致
func setDefaults(v *viper.Viper) {
	d := models.DefaultScrapeConfig()

	v.SetDefault("crawl.seed", "")
	v.SetDefault("crawl.seeds", []string{})
	v.SetDefault("crawl.allow", "")
	v.SetDefault("crawl.concurrency", d.Concurrency)
	v.SetDefault("crawl.user_agent", d.UserAgent)
	v.SetDefault("crawl.robots", false)
	v.SetDefault("crawl.mode", string(d.Mode))
	v.SetDefault("crawl.max_depth", 0)
	v.SetDefault("crawl.max_pages", 0)
	v.SetDefault("crawl.max_retries", d.MaxRetries)
	v.SetDefault("crawl.page_timeout", d.PageTimeout)
	v.SetDefault("crawl.nav_timeout", d.NavTimeout)
	v.SetDefault("crawl.headers_file", "")

	v.SetDefault("browser.headless", d.Headless)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.ignore_cert_errors", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	v.SetDefault("output.dir", d.OutDir)
	v.SetDefault("output.report_dir", "")
	v.SetDefault("output.progress", false)
}

// ScrapeConfig 转换为爬取配置(未校验)
func (c *Config) ScrapeConfig() models.ScrapeConfig {
	return models.ScrapeConfig{
		SeedURL:          c.Crawl.Seed,
		ExtraSeeds:       append([]string(nil), c.Crawl.Seeds...),
		AllowPrefix:      c.Crawl.Allow,
		OutDir:           c.Output.Dir,
		Concurrency:      c.Crawl.Concurrency,
		UserAgent:        c.Crawl.UserAgent,
		RespectRobots:    c.Crawl.Robots,
		Mode:             models.CrawlMode(c.Crawl.Mode),
		Headless:         c.Browser.Headless,
		MaxDepth:         c.Crawl.MaxDepth,
		MaxPages:         c.Crawl.MaxPages,
		PageTimeout:      c.Crawl.PageTimeout,
		NavTimeout:       c.Crawl.NavTimeout,
		MaxRetries:       c.Crawl.MaxRetries,
		IgnoreCertErrors: c.Browser.IgnoreCertErrors,
		BrowserBin:       c.Browser.Bin,
		ReportDir:        c.Output.ReportDir,
		Progress:         c.Output.Progress,
	}
}

// LogConfig 转换为日志配置
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
	}
}
