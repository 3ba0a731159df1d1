package crawlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RecoveryAshes/mdcrawl/internal/markdown"
	"github.com/RecoveryAshes/mdcrawl/internal/models"
)

func init() {
	retryBackoff = time.Millisecond
}

// fakeRenderer 按URL返回预设页面,可以让指定URL先失败若干次
type fakeRenderer struct {
	mu       sync.Mutex
	pages    map[string]string
	failures map[string]int
	calls    map[string]int
	block    bool
}

func (f *fakeRenderer) Render(ctx context.Context, pageURL string) (*models.RenderResult, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[pageURL]++
	if f.failures[pageURL] > 0 {
		f.failures[pageURL]--
		f.mu.Unlock()
		return nil, &RenderError{URL: pageURL, Err: fmt.Errorf("%w: 连接被重置", ErrNavigation)}
	}
	html, ok := f.pages[pageURL]
	block := f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, newRenderError(pageURL, ctx.Err())
	}
	if !ok {
		return nil, &RenderError{URL: pageURL, Err: fmt.Errorf("%w: 404", ErrNavigation)}
	}
	return &models.RenderResult{HTML: html, CanonicalURL: pageURL}, nil
}

func (f *fakeRenderer) Close() error { return nil }

func (f *fakeRenderer) callCount(u string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[u]
}

func testConfig(outDir string) models.ScrapeConfig {
	cfg := models.DefaultScrapeConfig()
	cfg.SeedURL = "https://example.com/docs/"
	cfg.AllowPrefix = "https://example.com/docs/"
	cfg.OutDir = outDir
	cfg.Concurrency = 3
	cfg.MaxRetries = 1
	cfg.PageTimeout = 5 * time.Second
	return cfg
}

func newTestEngine(t *testing.T, cfg models.ScrapeConfig, r Renderer) (*Engine, *URLSet) {
	t.Helper()
	toc := NewURLSet()
	pipeline, err := markdown.NewPipeline(cfg.OutDir, cfg.AllowPrefix, toc)
	if err != nil {
		t.Fatal(err)
	}
	return NewEngine(cfg, r, pipeline, NewURLQueue(nil, cfg.MaxDepth, cfg.MaxPages)), toc
}

func TestEngine_Run(t *testing.T) {
	outDir := t.TempDir()
	cfg := testConfig(outDir)

	r := &fakeRenderer{
		pages: map[string]string{
			"https://example.com/docs/": `<main><h1>首页</h1>
				<a href="guide/intro">入门</a>
				<a href="/docs/api?utm_source=home">API</a>
				<a href="https://external.example/x">外部</a>
				<a href="/other/page">范围外</a></main>`,
			"https://example.com/docs/guide/intro": `<main><h1>入门</h1>
				<a href="../api#section">API小节</a>
				<a href="../">返回</a></main>`,
			"https://example.com/docs/api": `<main><h1>API</h1>
				<a href="/docs/missing">缺失页面</a></main>`,
		},
		failures: map[string]int{"https://example.com/docs/api": 1},
	}

	engine, toc := newTestEngine(t, cfg, r)
	if err := engine.Run(context.Background(), []string{cfg.SeedURL}); err != nil {
		t.Fatalf("Run失败: %v", err)
	}

	wantTOC := []string{
		"https://example.com/docs/",
		"https://example.com/docs/api",
		"https://example.com/docs/guide/intro",
	}
	if got := toc.Sorted(); !reflect.DeepEqual(got, wantTOC) {
		t.Errorf("目录 = %v, want %v", got, wantTOC)
	}

	for _, rel := range []string{"docs.md", "docs/api.md", "docs/guide/intro.md"} {
		if _, err := os.Stat(filepath.Join(outDir, rel)); err != nil {
			t.Errorf("缺少输出文件 %s: %v", rel, err)
		}
	}

	intro, err := os.ReadFile(filepath.Join(outDir, "docs", "guide", "intro.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(intro), "[API小节](../api.md#section)") {
		t.Errorf("内部链接未改写:\n%s", intro)
	}

	if r.callCount("https://example.com/other/page") != 0 {
		t.Error("范围外的页面不应被访问")
	}
	if r.callCount("https://example.com/docs/api") != 2 {
		t.Errorf("失败一次的页面应重试, 调用次数 %d", r.callCount("https://example.com/docs/api"))
	}
	if r.callCount("https://example.com/docs/missing") != 2 {
		t.Errorf("一直失败的页面应尝试MaxRetries+1次, 调用次数 %d", r.callCount("https://example.com/docs/missing"))
	}

	stats := engine.Stats()
	if stats.ConvertedPages != 3 || stats.FailedPages != 1 || stats.VisitedURLs != 4 {
		t.Errorf("统计信息错误: %+v", stats)
	}
	if stats.Retries != 2 {
		t.Errorf("重试次数 = %d, want 2", stats.Retries)
	}

	var report models.CrawlReport
	engine.FillReport(&report)
	if len(report.FailedPages) != 1 || report.FailedPages[0].URL != "https://example.com/docs/missing" {
		t.Fatalf("失败页面记录错误: %+v", report.FailedPages)
	}
	if report.FailedPages[0].ErrorType != "navigation" || report.FailedPages[0].Attempts != 2 {
		t.Errorf("失败页面详情错误: %+v", report.FailedPages[0])
	}
	if len(report.Pages) != 3 || report.Pages[0].URL != "https://example.com/docs/" {
		t.Errorf("页面记录错误: %+v", report.Pages)
	}
}

func TestEngine_MaxPages(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.MaxPages = 1

	r := &fakeRenderer{pages: map[string]string{
		"https://example.com/docs/": `<main><a href="a">A</a><a href="b">B</a></main>`,
	}}
	engine, toc := newTestEngine(t, cfg, r)

	if err := engine.Run(context.Background(), []string{cfg.SeedURL}); err != nil {
		t.Fatal(err)
	}
	if toc.Len() != 1 {
		t.Errorf("页面上限为1时只应转换入口页, 实际 %v", toc.Sorted())
	}
}

func TestEngine_WriteFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "out")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(blocker)
	r := &fakeRenderer{pages: map[string]string{
		"https://example.com/docs/": `<main><p>首页</p></main>`,
	}}
	engine, toc := newTestEngine(t, cfg, r)

	err := engine.Run(context.Background(), []string{cfg.SeedURL})
	if !errors.Is(err, markdown.ErrWriteFailure) {
		t.Fatalf("写入失败应终止爬取, 实际 %v", err)
	}
	if toc.Len() != 0 {
		t.Error("写入失败的页面不应进入目录")
	}
}

func TestEngine_Cancel(t *testing.T) {
	cfg := testConfig(t.TempDir())
	r := &fakeRenderer{block: true}
	engine, _ := newTestEngine(t, cfg, r)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx, []string{cfg.SeedURL}) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("取消后应返回ctx错误, 实际 %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("取消后Run没有退出")
	}
}

func TestEngine_NoValidSeeds(t *testing.T) {
	cfg := testConfig(t.TempDir())
	engine, _ := newTestEngine(t, cfg, &fakeRenderer{})

	if err := engine.Run(context.Background(), []string{"not a url"}); err == nil {
		t.Error("没有有效入口时应返回错误")
	}
}

func TestEngine_StaticEndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/docs/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/docs/":
			fmt.Fprint(w, `<html><head><title>文档</title></head><body>
<nav><a href="/docs/nav-only">导航</a></nav>
<main><article><h1>文档首页</h1><p>见 <a href="page">页面</a>.</p></article></main>
</body></html>`)
		case "/docs/page":
			fmt.Fprint(w, `<html><body><main><h1>页面</h1><pre><code class="language-go">fmt.Println("hi")</code></pre>
<a href="./#top">回到首页</a></main></body></html>`)
		default:
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	outDir := t.TempDir()
	cfg := testConfig(outDir)
	cfg.Mode = models.ModeStatic
	cfg.SeedURL = srv.URL + "/docs/"
	cfg.AllowPrefix = srv.URL + "/docs/"

	renderer, err := NewStaticRenderer(StaticConfig{UserAgent: cfg.UserAgent, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	engine, toc := newTestEngine(t, cfg, renderer)

	if err := engine.Run(context.Background(), []string{cfg.SeedURL}); err != nil {
		t.Fatalf("Run失败: %v", err)
	}

	if toc.Len() != 2 {
		t.Errorf("应转换2个页面, 实际 %v", toc.Sorted())
	}
	if toc.Contains(srv.URL + "/docs/nav-only") {
		t.Error("导航中的链接不应被爬取")
	}

	page, err := os.ReadFile(filepath.Join(outDir, "docs", "page.md"))
	if err != nil {
		t.Fatalf("缺少输出文件: %v", err)
	}
	content := string(page)
	if !strings.HasPrefix(content, "---\ntitle: \"页面\"\nsource: \""+srv.URL+"/docs/page\"\n---\n\n") {
		t.Errorf("frontmatter错误:\n%s", content)
	}
	if !strings.Contains(content, "```go\nfmt.Println(\"hi\")\n```") {
		t.Errorf("代码块错误:\n%s", content)
	}
	if !strings.Contains(content, "[回到首页](../docs.md#top)") {
		t.Errorf("返回首页的链接错误:\n%s", content)
	}
}
