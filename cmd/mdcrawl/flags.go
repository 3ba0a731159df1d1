package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/RecoveryAshes/mdcrawl/internal/models"
)

// registerCrawlFlags 注册爬取参数
// 默认值只用于帮助信息,实际默认值来自配置文件和环境变量,只有显式传入的参数才覆盖。
func registerCrawlFlags(f *pflag.FlagSet) {
	d := models.DefaultScrapeConfig()

	f.String("seed", "", "入口URL (必需, 环境变量 SEED)")
	f.String("allow", "", "范围前缀, 只爬取以此开头的URL (必需, 环境变量 ALLOW)")
	f.String("out", d.OutDir, "输出目录 (环境变量 OUT)")
	f.Int("conc", d.Concurrency, "并发页面数 (环境变量 CONCURRENCY)")
	f.String("user-agent", d.UserAgent, "User-Agent (环境变量 USER_AGENT)")
	f.Bool("robots", false, "遵守robots.txt (暂未实现, 环境变量 ROBOTS=1)")
	f.String("mode", string(d.Mode), "渲染模式 (dynamic|static)")
	f.Bool("headless", d.Headless, "无头浏览器模式")
	f.Int("max-depth", 0, "最大爬取深度, 0表示不限制")
	f.Int("max-pages", 0, "最大页面数, 0表示不限制")
	f.Int("retries", d.MaxRetries, "渲染失败重试次数")
	f.Duration("page-timeout", d.PageTimeout, "单页处理超时")
	f.Duration("nav-timeout", d.NavTimeout, "导航超时")
	f.Bool("ignore-cert-errors", false, "跳过TLS证书校验")
	f.String("browser-bin", "", "浏览器可执行文件路径")
	f.String("report-dir", "", "爬取报告目录, 为空时不生成")
	f.Bool("progress", false, "显示进度条")
}

// applyFlags 用显式传入的命令行参数覆盖配置
func applyFlags(f *pflag.FlagSet, cfg *models.ScrapeConfig) error {
	var err error
	set := func(name string, apply func() error) {
		if err != nil || !f.Changed(name) {
			return
		}
		if e := apply(); e != nil {
			err = fmt.Errorf("%w: 参数 --%s: %w", models.ErrInvalidConfig, name, e)
		}
	}
	str := func(name string, dst *string) {
		set(name, func() (e error) { *dst, e = f.GetString(name); return })
	}
	num := func(name string, dst *int) {
		set(name, func() (e error) { *dst, e = f.GetInt(name); return })
	}
	flag := func(name string, dst *bool) {
		set(name, func() (e error) { *dst, e = f.GetBool(name); return })
	}

	str("seed", &cfg.SeedURL)
	str("allow", &cfg.AllowPrefix)
	str("out", &cfg.OutDir)
	num("conc", &cfg.Concurrency)
	str("user-agent", &cfg.UserAgent)
	flag("robots", &cfg.RespectRobots)
	set("mode", func() error {
		mode, e := f.GetString("mode")
		cfg.Mode = models.CrawlMode(mode)
		return e
	})
	flag("headless", &cfg.Headless)
	num("max-depth", &cfg.MaxDepth)
	num("max-pages", &cfg.MaxPages)
	num("retries", &cfg.MaxRetries)
	set("page-timeout", func() (e error) { cfg.PageTimeout, e = f.GetDuration("page-timeout"); return })
	set("nav-timeout", func() (e error) { cfg.NavTimeout, e = f.GetDuration("nav-timeout"); return })
	flag("ignore-cert-errors", &cfg.IgnoreCertErrors)
	str("browser-bin", &cfg.BrowserBin)
	str("report-dir", &cfg.ReportDir)
	flag("progress", &cfg.Progress)

	return err
}
