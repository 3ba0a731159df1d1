package crawlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"

	"github.com/RecoveryAshes/mdcrawl/internal/markdown"
	"github.com/RecoveryAshes/mdcrawl/internal/models"
	"github.com/RecoveryAshes/mdcrawl/internal/utils"
)

// contentSelector 等待主内容出现的选择器
const contentSelector = "main, article, body"

// extractJS 在打印模式下删除主内容容器内计算样式不可见的节点,返回整页HTML
// 容器按markdown.ContainerSelectors的顺序选择,找不到时用body。
// 框架元素的删除和容器的最终选择交给markdown.Prune,两种渲染模式共用一套规则。
var extractJS = fmt.Sprintf(`() => {
	const hiddenRoot = (selectors) => {
		for (const sel of selectors) {
			const el = document.querySelector(sel);
			if (el) return el;
		}
		return null;
	};
	const removeHidden = (node) => {
		const style = getComputedStyle(node);
		if (style.display === "none" || style.visibility === "hidden") {
			node.remove();
			return;
		}
		for (const child of Array.from(node.children)) removeHidden(child);
	};
	const root = hiddenRoot(%s) || document.body;
	if (root) removeHidden(root);
	const h1 = document.querySelector("h1");
	return {
		html: document.documentElement.outerHTML,
		title: (h1 && h1.textContent.trim()) || document.title || "",
		url: location.href,
	};
}`, containerSelectorsJS())

// containerSelectorsJS 容器选择器的JS数组字面量
func containerSelectorsJS() string {
	quoted := make([]string, 0, len(markdown.ContainerSelectors))
	for _, sel := range markdown.ContainerSelectors {
		quoted = append(quoted, strconv.Quote(sel))
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// BrowserConfig 浏览器渲染器配置
type BrowserConfig struct {
	Headless         bool
	IgnoreCertErrors bool
	BrowserBin       string        // 为空时由launcher查找或下载
	MaxPages         int           // 同时打开的标签页上限
	NavTimeout       time.Duration // 导航和等待load事件的超时
	WaitTimeout      time.Duration // 等待内容出现和提取的超时
	UserAgent        string
	Headers          models.HeaderProvider // 可选
}

// BrowserRenderer 浏览器渲染器(使用Rod)
// 每个标签页在创建时设置打印媒体模拟、UA、自定义头部和资源拦截,之后复用。
type BrowserRenderer struct {
	config   BrowserConfig
	launcher *launcher.Launcher
	browser  *rod.Browser
	pool     *PagePool
	monitor  *ResourceMonitor
	headers  []string
}

// NewBrowserRenderer 启动浏览器并创建渲染器
func NewBrowserRenderer(config BrowserConfig) (*BrowserRenderer, error) {
	if config.NavTimeout <= 0 {
		config.NavTimeout = models.DefaultNavTimeout
	}
	if config.WaitTimeout <= 0 {
		config.WaitTimeout = 60 * time.Second
	}
	if config.MaxPages < 1 {
		config.MaxPages = 1
	}

	headers, err := extraHeaders(config.Headers)
	if err != nil {
		return nil, err
	}

	l := launcher.New().Headless(config.Headless)
	if config.BrowserBin != "" {
		l = l.Bin(config.BrowserBin)
	}
	if config.IgnoreCertErrors {
		l = l.Set("ignore-certificate-errors")
		utils.Debugf("浏览器启动参数: --ignore-certificate-errors (跳过TLS证书验证)")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}
	utils.Debugf("浏览器已启动: %s", controlURL)

	monitor := NewResourceMonitor(DefaultResourceMonitorConfig(config.MaxPages))
	monitor.StartMonitoring(2 * time.Second)

	r := &BrowserRenderer{
		config:   config,
		launcher: l,
		browser:  browser,
		monitor:  monitor,
		headers:  headers,
	}
	r.pool = NewPagePool(browser, monitor, config.MaxPages, r.setupPage)

	utils.Infof("浏览器渲染器就绪,标签页上限: %d", r.pool.Size())
	return r, nil
}

// extraHeaders 把头部提供者的结果展开为SetExtraHeaders需要的键值列表
// User-Agent单独通过SetUserAgent设置,Accept-Encoding由浏览器自己协商。
func extraHeaders(provider models.HeaderProvider) ([]string, error) {
	if provider == nil {
		return nil, nil
	}
	h, err := provider.GetHeaders()
	if err != nil {
		return nil, fmt.Errorf("获取HTTP头部失败: %w", err)
	}

	var dict []string
	for name, values := range h {
		if len(values) == 0 || strings.EqualFold(name, "User-Agent") || strings.EqualFold(name, "Accept-Encoding") {
			continue
		}
		dict = append(dict, http.CanonicalHeaderKey(name), values[0])
	}
	return dict, nil
}

// setupPage 初始化新标签页
func (r *BrowserRenderer) setupPage(page *rod.Page) (func(), error) {
	// 隐藏"仅屏幕显示"的元素
	if err := (proto.EmulationSetEmulatedMedia{Media: "print"}).Call(page); err != nil {
		return nil, fmt.Errorf("设置打印媒体模拟失败: %w", err)
	}

	if r.config.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: r.config.UserAgent}); err != nil {
			return nil, fmt.Errorf("设置User-Agent失败: %w", err)
		}
	}

	restoreHeaders := func() {}
	if len(r.headers) > 0 {
		restore, err := page.SetExtraHeaders(r.headers)
		if err != nil {
			return nil, fmt.Errorf("设置自定义头部失败: %w", err)
		}
		restoreHeaders = restore
	}

	// 图片、媒体和字体对转换没有用处,直接拦截
	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		switch h.Request.Type() {
		case proto.NetworkResourceTypeImage, proto.NetworkResourceTypeMedia, proto.NetworkResourceTypeFont:
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()

	return func() {
		if err := router.Stop(); err != nil {
			log.Debug().Err(err).Msg("停止请求拦截失败")
		}
		restoreHeaders()
	}, nil
}

// Render 渲染单个页面
func (r *BrowserRenderer) Render(ctx context.Context, pageURL string) (res *models.RenderResult, err error) {
	page, err := r.pool.AcquirePage(ctx)
	if err != nil {
		return nil, newRenderError(pageURL, err)
	}

	broken := false
	defer func() {
		if p := recover(); p != nil {
			broken = true
			err = newRenderError(pageURL, fmt.Errorf("浏览器操作panic: %v", p))
		}
		r.pool.ReleasePage(page, broken)
	}()

	if err := r.navigate(ctx, page, pageURL); err != nil {
		broken = true
		return nil, newRenderError(pageURL, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, r.config.WaitTimeout)
	defer cancel()
	p := page.Context(waitCtx)

	if _, err := p.Element(contentSelector); err != nil {
		broken = true
		return nil, newRenderError(pageURL, fmt.Errorf("等待页面内容失败: %w", err))
	}

	obj, err := p.Evaluate(rod.Eval(extractJS))
	if err != nil {
		broken = true
		return nil, newRenderError(pageURL, fmt.Errorf("提取页面内容失败: %w", err))
	}

	result := &models.RenderResult{
		HTML:         obj.Value.Get("html").Str(),
		Title:        obj.Value.Get("title").Str(),
		CanonicalURL: obj.Value.Get("url").Str(),
	}
	if result.CanonicalURL == "" {
		result.CanonicalURL = pageURL
	}

	log.Debug().Str("url", pageURL).Str("final", result.CanonicalURL).Int("bytes", len(result.HTML)).Msg("页面渲染完成")
	return result, nil
}

// navigate 导航并等待load事件
func (r *BrowserRenderer) navigate(ctx context.Context, page *rod.Page, pageURL string) error {
	navCtx, cancel := context.WithTimeout(ctx, r.config.NavTimeout)
	defer cancel()
	p := page.Context(navCtx)

	if err := p.Navigate(pageURL); err != nil {
		var navErr *rod.NavigationError
		if errors.As(err, &navErr) {
			return fmt.Errorf("%w: %s", ErrNavigation, navErr.Reason)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrNavigation, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("等待页面加载失败: %w", err)
	}
	return nil
}

// Close 关闭标签页池和浏览器
func (r *BrowserRenderer) Close() error {
	r.monitor.StopMonitoring()
	_ = r.pool.Close()

	var err error
	if r.browser != nil {
		if cerr := r.browser.Close(); cerr != nil {
			err = fmt.Errorf("关闭浏览器失败: %w", cerr)
		}
	}
	if r.launcher != nil {
		r.launcher.Kill()
	}
	utils.Debugf("浏览器已关闭")
	return err
}
