package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/mdcrawl/internal/crawlers"
	"github.com/RecoveryAshes/mdcrawl/internal/markdown"
	"github.com/RecoveryAshes/mdcrawl/internal/models"
	"github.com/RecoveryAshes/mdcrawl/internal/utils"
)

// TOCFileName 目录文件名,位于输出目录下
const TOCFileName = "toc.json"

// Crawler 一次爬取的协调器
// 负责创建渲染器、处理流程、队列和引擎,结束后写目录和报告。
type Crawler struct {
	config  models.ScrapeConfig
	headers *HeaderManager

	// 测试时替换渲染器
	newRenderer func() (crawlers.Renderer, error)
}

// NewCrawler 创建协调器,配置无效时返回包装了models.ErrInvalidConfig的错误
func NewCrawler(config models.ScrapeConfig, headers *HeaderManager) (*Crawler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	c := &Crawler{config: config, headers: headers}
	c.newRenderer = c.createRenderer
	return c, nil
}

// Crawl 执行爬取
// 渲染失败的页面只记录在报告里;写入失败或ctx取消时返回错误,
// 此时已转换的页面仍会写入目录。
func (c *Crawler) Crawl(ctx context.Context) (*models.CrawlReport, error) {
	start := time.Now()
	cfg := c.config

	utils.Infof("开始爬取任务")
	utils.Infof("入口URL: %s", cfg.SeedURL)
	utils.Infof("范围前缀: %s", cfg.AllowPrefix)
	utils.Infof("渲染模式: %s, 并发: %d", cfg.Mode, cfg.Concurrency)
	utils.Infof("输出目录: %s", cfg.OutDir)
	if cfg.RespectRobots {
		utils.Warnf("--robots 暂未实现, robots.txt 不会被检查")
	}

	if err := os.MkdirAll(cfg.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: 创建输出目录失败: %w", markdown.ErrWriteFailure, err)
	}

	renderer, err := c.newRenderer()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := renderer.Close(); err != nil {
			utils.Warnf("关闭渲染器失败: %v", err)
		}
	}()

	// 目录只记录写入成功的页面,队列另有自己的去重集合
	toc := crawlers.NewURLSet()
	pipeline, err := markdown.NewPipeline(cfg.OutDir, cfg.AllowPrefix, toc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidConfig, err)
	}
	queue := crawlers.NewURLQueue(crawlers.NewURLSet(), cfg.MaxDepth, cfg.MaxPages)
	engine := crawlers.NewEngine(cfg, renderer, pipeline, queue)

	runErr := engine.Run(ctx, cfg.Seeds())

	tocPath := filepath.Join(cfg.OutDir, TOCFileName)
	if err := toc.WriteTOC(tocPath); err != nil {
		return nil, fmt.Errorf("%w: 写入目录失败: %w", markdown.ErrWriteFailure, err)
	}

	report := &models.CrawlReport{
		RunID:       models.NewRunID(),
		SeedURL:     cfg.SeedURL,
		AllowPrefix: pipeline.AllowPrefix(),
		Mode:        cfg.Mode,
		StartTime:   start,
		EndTime:     time.Now(),
		OutputDir:   cfg.OutDir,
		TOCFile:     tocPath,
		Config:      cfg,
	}
	engine.FillReport(report)
	report.Duration = report.EndTime.Sub(start).Seconds()

	if cfg.ReportDir != "" {
		path, err := utils.NewReporter(cfg.ReportDir).GenerateReport(report)
		if err != nil {
			utils.Warnf("生成报告失败: %v", err)
		} else {
			utils.Infof("爬取报告: %s", path)
		}
	}

	s := report.Stats
	utils.Infof("爬取完成: 转换 %d 页, 失败 %d 页, 重试 %d 次, 共 %s, 耗时 %.2f秒",
		s.ConvertedPages, s.FailedPages, s.Retries, utils.FormatBytes(s.TotalBytes), report.Duration)

	return report, runErr
}

// createRenderer 按模式创建渲染器
func (c *Crawler) createRenderer() (crawlers.Renderer, error) {
	cfg := c.config

	var headers models.HeaderProvider
	userAgent := cfg.UserAgent
	if c.headers != nil {
		ua, err := c.headers.UserAgent()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrInvalidConfig, err)
		}
		if ua != "" {
			userAgent = ua
		}
		headers = c.headers
	}

	switch cfg.Mode {
	case models.ModeStatic:
		return crawlers.NewStaticRenderer(crawlers.StaticConfig{
			UserAgent:        userAgent,
			Timeout:          cfg.NavTimeout,
			IgnoreCertErrors: cfg.IgnoreCertErrors,
			Headers:          headers,
		})
	case models.ModeDynamic:
		return crawlers.NewBrowserRenderer(crawlers.BrowserConfig{
			Headless:         cfg.Headless,
			IgnoreCertErrors: cfg.IgnoreCertErrors,
			BrowserBin:       cfg.BrowserBin,
			MaxPages:         cfg.Concurrency,
			NavTimeout:       cfg.NavTimeout,
			UserAgent:        userAgent,
			Headers:          headers,
		})
	default:
		return nil, fmt.Errorf("%w: 未知渲染模式 %q", models.ErrInvalidConfig, cfg.Mode)
	}
}
