package core

import (
	"net/http"
	"sync"

	"github.com/RecoveryAshes/mdcrawl/internal/config"
	"github.com/RecoveryAshes/mdcrawl/internal/models"
	"github.com/RecoveryAshes/mdcrawl/internal/utils"
)

// HeaderManager 合并 默认 < headers.yaml < 命令行 三层请求头部
// 实现 models.HeaderProvider。
type HeaderManager struct {
	defaults http.Header
	file     http.Header
	cli      http.Header

	loader    *config.HeaderConfigLoader
	validator *utils.HeaderValidator
	redactor  *utils.HeaderRedactor

	once    sync.Once
	merged  http.Header
	loadErr error
}

// NewHeaderManager 创建头部管理器
// userAgent作为默认User-Agent,可被配置文件或命令行覆盖。
func NewHeaderManager(configFile, userAgent string, cliHeaders []string) (*HeaderManager, error) {
	cli, err := models.CliHeaders(cliHeaders).Parse()
	if err != nil {
		return nil, err
	}
	if userAgent == "" {
		userAgent = models.DefaultUserAgent
	}

	return &HeaderManager{
		defaults: http.Header{
			"User-Agent":      {userAgent},
			"Accept":          {"text/html,application/xhtml+xml;q=0.9,*/*;q=0.8"},
			"Accept-Encoding": {"gzip, deflate, br"},
		},
		cli:       cli,
		loader:    config.NewHeaderConfigLoader(configFile),
		validator: utils.NewHeaderValidator(),
		redactor:  utils.NewHeaderRedactor(),
	}, nil
}

// load 读取配置文件并校验,只执行一次
func (hm *HeaderManager) load() {
	cfg, err := hm.loader.LoadConfig()
	if err != nil {
		hm.loadErr = err
		return
	}

	hm.file = make(http.Header, len(cfg.Headers))
	for name, value := range cfg.Headers {
		hm.file.Set(name, value)
	}

	for _, layer := range []http.Header{hm.file, hm.cli} {
		if err := hm.validator.Validate(layer); err != nil {
			hm.loadErr = err
			return
		}
	}

	hm.merged = hm.GetMergedHeaders()
	utils.Debugf("请求头部: %s", hm.redactor.RedactToString(hm.merged))
}

// GetMergedHeaders 按优先级合并,不读取配置文件
func (hm *HeaderManager) GetMergedHeaders() http.Header {
	result := make(http.Header)
	for _, layer := range []http.Header{hm.defaults, hm.file, hm.cli} {
		for name, values := range layer {
			result[name] = values
		}
	}
	return result
}

// GetHeaders 实现 models.HeaderProvider
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	hm.once.Do(hm.load)
	if hm.loadErr != nil {
		return nil, hm.loadErr
	}
	return hm.merged.Clone(), nil
}

// UserAgent 合并后的User-Agent
func (hm *HeaderManager) UserAgent() (string, error) {
	h, err := hm.GetHeaders()
	if err != nil {
		return "", err
	}
	return h.Get("User-Agent"), nil
}

// GetSafeHeaders 脱敏后的头部,用于日志和--validate-config输出
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	return hm.redactor.Redact(hm.GetMergedHeaders())
}
