package markdown

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/RecoveryAshes/mdcrawl/internal/models"
	"github.com/RecoveryAshes/mdcrawl/internal/urlpath"
)

// memorySet 测试用的并发安全集合
type memorySet struct {
	mu   sync.Mutex
	urls map[string]bool
}

func (s *memorySet) Add(u string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.urls == nil {
		s.urls = make(map[string]bool)
	}
	if s.urls[u] {
		return false
	}
	s.urls[u] = true
	return true
}

const pipelinePage = `<!DOCTYPE html>
<html><head><title>浏览器标题</title></head>
<body>
<header><a href="/docs/header-link">头部链接</a></header>
<main><article>
<h1>Install "Tool"</h1>
<p>阅读 <a href="../baz/qux?view=x#frag">下一页</a>, 返回 <a href="/docs/">首页</a>,
参见 <a href="https://other.example.org/x">外部</a> 和 <a href="/docs/a?utm_source=feed">A</a>.</p>
<img src="img/shot.png" alt="截图">
</article></main>
</body></html>`

func newTestPipeline(t *testing.T, outDir string, toc URLRecorder) *Pipeline {
	t.Helper()
	p, err := NewPipeline(outDir, "HTTPS://Example.com:443/docs/", toc)
	if err != nil {
		t.Fatalf("创建Pipeline失败: %v", err)
	}
	return p
}

func TestPipeline_Process(t *testing.T) {
	outDir := t.TempDir()
	toc := &memorySet{}
	p := newTestPipeline(t, outDir, toc)

	if p.AllowPrefix() != "https://example.com/docs/" {
		t.Fatalf("范围前缀应规范化, 实际 %q", p.AllowPrefix())
	}

	res, err := p.Process(context.Background(), models.RenderResult{
		HTML:         pipelinePage,
		Title:        "浏览器标题",
		CanonicalURL: "https://example.com/docs/foo/bar/?utm_medium=x#top",
	})
	if err != nil {
		t.Fatalf("Process失败: %v", err)
	}

	wantPath := filepath.Join(outDir, "docs", "foo", "bar.md")
	if res.FilePath != wantPath {
		t.Errorf("FilePath = %q, want %q", res.FilePath, wantPath)
	}
	if res.URL != "https://example.com/docs/foo/bar/" {
		t.Errorf("URL应为规范化结果, 实际 %q", res.URL)
	}

	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("读取输出失败: %v", err)
	}
	content := string(data)
	if content != res.Markdown {
		t.Error("写入内容应与返回的Markdown一致")
	}

	wantPrefix := "---\ntitle: \"Install \\\"Tool\\\"\"\nsource: \"https://example.com/docs/foo/bar/\"\n---\n\n"
	if !strings.HasPrefix(content, wantPrefix) {
		t.Errorf("frontmatter错误:\n%s", content)
	}
	for _, want := range []string{
		"[下一页](../baz/qux.md?view=x#frag)",
		"[首页](../../../docs.md)",
		"[外部](https://other.example.org/x)",
		"[A](../../a.md?utm_source=feed)",
		"https://example.com/docs/foo/bar/img/shot.png",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("输出应包含 %q:\n%s", want, content)
		}
	}
	if strings.Contains(content, "头部链接") {
		t.Error("页面框架不应出现在输出中")
	}

	wantCandidates := []string{
		"https://example.com/docs/",
		"https://example.com/docs/a",
		"https://example.com/docs/foo/baz/qux?view=x",
	}
	if !reflect.DeepEqual(res.Candidates, wantCandidates) {
		t.Errorf("Candidates = %v, want %v", res.Candidates, wantCandidates)
	}
	if len(res.Discovered) != 3 {
		t.Errorf("Discovered = %v", res.Discovered)
	}
	for _, d := range res.Discovered {
		if strings.HasPrefix(d, "https://other.example.org") {
			t.Errorf("外部链接不应被发现: %s", d)
		}
	}

	if !toc.urls["https://example.com/docs/foo/bar/"] || len(toc.urls) != 1 {
		t.Errorf("目录记录错误: %v", toc.urls)
	}

	if len(res.Images) != 1 || res.Images[0].URL != "https://example.com/docs/foo/bar/img/shot.png" {
		t.Errorf("图片收集错误: %+v", res.Images)
	}
}

func TestPipeline_Idempotent(t *testing.T) {
	outDir := t.TempDir()
	p := newTestPipeline(t, outDir, nil)
	render := models.RenderResult{HTML: pipelinePage, CanonicalURL: "https://example.com/docs/foo/bar/"}

	first, err := p.Process(context.Background(), render)
	if err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(first.FilePath)

	second, err := p.Process(context.Background(), render)
	if err != nil {
		t.Fatal(err)
	}
	after, _ := os.ReadFile(second.FilePath)

	if string(before) != string(after) {
		t.Error("重复处理同一页面应生成完全相同的文件")
	}
}

func TestPipeline_TitleFallback(t *testing.T) {
	outDir := t.TempDir()
	p := newTestPipeline(t, outDir, nil)

	res, err := p.Process(context.Background(), models.RenderResult{
		HTML:         `<html><head><title>文档标题</title></head><body><main><p>无标题正文</p></main></body></html>`,
		CanonicalURL: "https://example.com/docs/untitled",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Title != "文档标题" {
		t.Errorf("应回退到<title>, 实际 %q", res.Title)
	}

	res, err = p.Process(context.Background(), models.RenderResult{
		HTML:         `<p>只有段落</p>`,
		CanonicalURL: "https://example.com/docs/bare",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Title != "Untitled" {
		t.Errorf("应回退到Untitled, 实际 %q", res.Title)
	}
}

func TestPipeline_InvalidPageURL(t *testing.T) {
	toc := &memorySet{}
	p := newTestPipeline(t, t.TempDir(), toc)

	_, err := p.Process(context.Background(), models.RenderResult{HTML: "<p>x</p>", CanonicalURL: "/relative/only"})
	if err == nil {
		t.Fatal("相对URL应返回错误")
	}
	if !errors.Is(err, urlpath.ErrInvalidURL) {
		t.Errorf("错误应包装ErrInvalidURL: %v", err)
	}
	if errors.Is(err, ErrWriteFailure) {
		t.Error("URL错误不应视为写入失败")
	}
	if len(toc.urls) != 0 {
		t.Error("失败页面不应进入目录")
	}
}

func TestPipeline_WriteFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "out")
	if err := os.WriteFile(blocker, []byte("not a dir"), 0644); err != nil {
		t.Fatal(err)
	}

	toc := &memorySet{}
	p := newTestPipeline(t, blocker, toc)
	_, err := p.Process(context.Background(), models.RenderResult{
		HTML:         pipelinePage,
		CanonicalURL: "https://example.com/docs/foo",
	})
	if !errors.Is(err, ErrWriteFailure) {
		t.Fatalf("期望ErrWriteFailure, 实际 %v", err)
	}
	if len(toc.urls) != 0 {
		t.Error("写入失败的页面不应进入目录")
	}
}

func TestPipeline_Canceled(t *testing.T) {
	p := newTestPipeline(t, t.TempDir(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Process(ctx, models.RenderResult{HTML: pipelinePage, CanonicalURL: "https://example.com/docs/foo"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("期望context.Canceled, 实际 %v", err)
	}
}

func TestNewPipeline_InvalidPrefix(t *testing.T) {
	if _, err := NewPipeline("docs", "not-absolute", nil); err == nil {
		t.Error("相对前缀应返回错误")
	}
}
