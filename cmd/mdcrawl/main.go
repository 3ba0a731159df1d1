package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RecoveryAshes/mdcrawl/internal/config"
	"github.com/RecoveryAshes/mdcrawl/internal/core"
	"github.com/RecoveryAshes/mdcrawl/internal/models"
	"github.com/RecoveryAshes/mdcrawl/internal/utils"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

const (
	exitFailure       = 1
	exitInvalidConfig = 2
)

// options 命令行参数
type options struct {
	configFile     string
	verbose        bool
	logLevel       string
	headers        []string
	headersFile    string
	validateConfig bool
	seedFile       string

	app *core.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "mdcrawl",
		Short: "把文档站点渲染并转换为Markdown",
		Long: `mdcrawl - 从入口URL开始爬取文档站点,把每个页面的正文转换为Markdown

  • 浏览器渲染(go-rod)或静态抓取(colly)
  • 只跟随范围前缀内的链接,站内链接改写为本地.md相对路径
  • 输出目录结构与URL路径一致,并生成 toc.json

示例:
  mdcrawl --seed https://example.com/docs/ --allow https://example.com/docs/ --out docs
  mdcrawl --seed https://example.com/docs/ --allow https://example.com/docs/ --mode static -H "Accept-Language: zh-CN"
  mdcrawl --validate-config

版本: ` + Version + `
构建时间: ` + BuildTime,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			app, err := core.LoadConfig(opts.configFile)
			if err != nil {
				return fmt.Errorf("加载配置失败: %w", err)
			}
			opts.app = app

			logConfig := app.LogConfig()
			if opts.logLevel != "" {
				logConfig.Level = opts.logLevel
			}
			if opts.verbose {
				logConfig.Level = "debug"
			}
			if err := utils.InitLogger(logConfig); err != nil {
				return fmt.Errorf("初始化日志系统失败: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", models.ErrInvalidConfig, err)
	})

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configFile, "config", "c", "", "配置文件路径")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "详细输出(等同 --log-level debug)")
	pf.StringVar(&opts.logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	f := cmd.Flags()
	f.StringSliceVarP(&opts.headers, "header", "H", nil, "自定义HTTP头部 'Name: Value', 可多次指定")
	f.StringVar(&opts.headersFile, "headers-file", "", "头部配置文件 (默认 "+config.DefaultConfigFile+")")
	f.BoolVar(&opts.validateConfig, "validate-config", false, "只校验配置和头部,不爬取")
	f.StringVar(&opts.seedFile, "seed-file", "", "额外入口URL列表文件,每行一个")
	registerCrawlFlags(f)

	cmd.AddCommand(newVersionCmd(), newHeadersCmd())
	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	scrape := opts.app.ScrapeConfig()
	if err := applyFlags(cmd.Flags(), &scrape); err != nil {
		return err
	}
	if opts.seedFile != "" {
		seeds, err := utils.ReadURLsFromFile(opts.seedFile)
		if err != nil {
			return fmt.Errorf("%w: %w", models.ErrInvalidConfig, err)
		}
		scrape.ExtraSeeds = append(scrape.ExtraSeeds, seeds...)
	}

	if scrape.SeedURL == "" && !opts.validateConfig && cmd.Flags().NFlag() == 0 {
		return cmd.Help()
	}

	headersFile := opts.headersFile
	if headersFile == "" {
		headersFile = opts.app.Crawl.HeadersFile
	}
	headerManager, err := core.NewHeaderManager(headersFile, scrape.UserAgent, opts.headers)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrInvalidConfig, err)
	}

	if opts.validateConfig {
		return printValidation(cmd, scrape, headerManager)
	}

	crawler, err := core.NewCrawler(scrape, headerManager)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := crawler.Crawl(ctx)
	if report != nil {
		printStats(cmd, report)
	}
	if errors.Is(err, context.Canceled) {
		utils.Warnf("爬取被中断, 已转换的页面和目录已保存")
		return nil
	}
	return err
}

// printValidation 输出 --validate-config 的结果
func printValidation(cmd *cobra.Command, scrape models.ScrapeConfig, hm *core.HeaderManager) error {
	if err := scrape.Validate(); err != nil {
		return err
	}
	headers, err := hm.GetHeaders()
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrInvalidConfig, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "配置校验通过")
	fmt.Fprintf(out, "  入口URL:  %s\n", scrape.SeedURL)
	fmt.Fprintf(out, "  范围前缀: %s\n", scrape.AllowPrefix)
	fmt.Fprintf(out, "  输出目录: %s\n", scrape.OutDir)
	fmt.Fprintf(out, "  渲染模式: %s\n", scrape.Mode)
	fmt.Fprintf(out, "  HTTP头部: %s\n", utils.NewHeaderRedactor().RedactToString(headers))
	return nil
}

func printStats(cmd *cobra.Command, report *models.CrawlReport) {
	s := report.Stats
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "==================================================")
	fmt.Fprintln(out, "爬取统计")
	fmt.Fprintln(out, "==================================================")
	fmt.Fprintf(out, "访问URL数:  %d\n", s.VisitedURLs)
	fmt.Fprintf(out, "发现URL数:  %d\n", s.DiscoveredURLs)
	fmt.Fprintf(out, "转换页面:   %d\n", s.ConvertedPages)
	fmt.Fprintf(out, "失败页面:   %d\n", s.FailedPages)
	fmt.Fprintf(out, "重试次数:   %d\n", s.Retries)
	fmt.Fprintf(out, "总大小:     %s\n", utils.FormatBytes(s.TotalBytes))
	fmt.Fprintf(out, "总耗时:     %.2f秒\n", report.Duration)
	fmt.Fprintf(out, "目录文件:   %s\n", report.TOCFile)
	fmt.Fprintln(out, "==================================================")
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mdcrawl %s\n构建时间: %s\n", Version, BuildTime)
		},
	}
}

func newHeadersCmd() *cobra.Command {
	headers := &cobra.Command{
		Use:   "headers",
		Short: "管理请求头部配置",
	}
	headers.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "生成头部配置模板 (默认 " + config.DefaultConfigFile + ")",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigFile
			if len(args) == 1 {
				path = args[0]
			}
			created, err := config.WriteTemplate(path)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "已生成 %s\n", path)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s 已存在, 未修改\n", path)
			}
			return nil
		},
	})
	return headers
}

func exitCode(err error) int {
	if errors.Is(err, models.ErrInvalidConfig) {
		return exitInvalidConfig
	}
	return exitFailure
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(exitCode(err))
	}
}
