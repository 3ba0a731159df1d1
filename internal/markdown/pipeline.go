package markdown

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/RecoveryAshes/mdcrawl/internal/models"
	"github.com/RecoveryAshes/mdcrawl/internal/urlpath"
	"github.com/RecoveryAshes/mdcrawl/internal/utils"
)

// ErrWriteFailure 输出目录不可写,整个爬取应当终止
var ErrWriteFailure = errors.New("写入输出文件失败")

// URLRecorder 并发安全的只增集合,用于记录已转换页面(目录)
type URLRecorder interface {
	Add(u string) bool
}

// Pipeline 单页处理流程: 裁剪 → 改写 → 转换 → 写入
type Pipeline struct {
	outDir      string
	allowPrefix string // 规范化后的范围前缀
	toc         URLRecorder
}

// NewPipeline 创建处理流程
// allowPrefix会先规范化,toc可以为nil。
func NewPipeline(outDir, allowPrefix string, toc URLRecorder) (*Pipeline, error) {
	prefix, err := urlpath.CanonicalString(allowPrefix)
	if err != nil {
		return nil, fmt.Errorf("范围前缀无效: %w", err)
	}
	return &Pipeline{
		outDir:      outDir,
		allowPrefix: prefix,
		toc:         toc,
	}, nil
}

// AllowPrefix 返回规范化后的范围前缀
func (p *Pipeline) AllowPrefix() string {
	return p.allowPrefix
}

// Process 处理一个渲染结果并写入Markdown文件
//
// 页面URL无效或HTML无法解析时返回普通错误(单页失败);
// 写入失败返回包装了ErrWriteFailure的错误,调用方应终止整个爬取。
func (p *Pipeline) Process(ctx context.Context, res models.RenderResult) (*models.ConvertResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := urlpath.Canonicalize(res.CanonicalURL)
	if err != nil {
		return nil, fmt.Errorf("页面URL无效: %w", err)
	}

	doc, err := p.document(page, res)
	if err != nil {
		return nil, err
	}

	results := RewriteLinks(page, doc.Document, p.allowPrefix, p.outDir)

	body, err := doc.Find("body").First().Html()
	if err != nil {
		return nil, fmt.Errorf("序列化内容失败: %w", err)
	}
	markdown, err := NewConverter().Convert(body)
	if err != nil {
		return nil, err
	}

	content := Frontmatter(doc.title, page.String()) + markdown
	filePath := urlpath.URLToFilePath(p.outDir, page)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := utils.WriteFileAtomic(filePath, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrWriteFailure, filePath, err)
	}

	if p.toc != nil {
		p.toc.Add(page.String())
	}

	discovered := discoveredTargets(results)
	out := &models.ConvertResult{
		URL:        page.String(),
		Title:      doc.title,
		FilePath:   filePath,
		Markdown:   content,
		Discovered: discovered,
		Candidates: p.Candidates(discovered),
		Images:     imageRefs(doc.Document),
	}

	log.Debug().
		Str("url", out.URL).
		Str("file", filePath).
		Int("links", len(results)).
		Int("candidates", len(out.Candidates)).
		Msg("页面已转换")

	return out, nil
}

// pageDocument 裁剪后的页面及其标题
type pageDocument struct {
	*goquery.Document
	title string
}

// document 裁剪渲染结果并解析为可修改的DOM
func (p *Pipeline) document(page *url.URL, res models.RenderResult) (*pageDocument, error) {
	content, err := Prune(res.HTML)
	if err != nil {
		return nil, err
	}

	pd := models.PageDocument{URL: page.String(), ContentHTML: content}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pd.ContentHTML))
	if err != nil {
		return nil, fmt.Errorf("解析内容失败: %w", err)
	}

	// 标题: 内容中的第一个h1 > 渲染器给出的标题 > 原文档的h1/<title>
	pd.Title = firstHeading(doc.Selection)
	if pd.Title == "" {
		pd.Title = strings.TrimSpace(res.Title)
	}
	if pd.Title == "" {
		pd.Title = ExtractTitle(res.HTML)
	}

	return &pageDocument{Document: doc, title: pd.Title}, nil
}

// Candidates 返回可入队的URL: 规范化、按范围前缀过滤、去重并排序
func (p *Pipeline) Candidates(discovered []string) []string {
	seen := make(map[string]struct{}, len(discovered))
	out := make([]string, 0, len(discovered))
	for _, raw := range discovered {
		c, err := urlpath.CanonicalString(raw)
		if err != nil || !strings.HasPrefix(c, p.allowPrefix) {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func discoveredTargets(results []models.LinkRewriteResult) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, r := range results {
		if !r.Internal || r.Target == "" {
			continue
		}
		if _, ok := seen[r.Target]; ok {
			continue
		}
		seen[r.Target] = struct{}{}
		out = append(out, r.Target)
	}
	sort.Strings(out)
	return out
}

// imageRefs 收集页面引用的图片(已改写为绝对URL)
func imageRefs(doc *goquery.Document) []models.ImageRef {
	seen := make(map[string]struct{})
	var refs []models.ImageRef
	doc.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		src := img.AttrOr("src", "")
		if _, ok := seen[src]; ok || !strings.HasPrefix(src, "http") {
			return
		}
		seen[src] = struct{}{}
		name, err := urlpath.DeriveAssetFilename(src)
		if err != nil {
			return
		}
		refs = append(refs, models.ImageRef{URL: src, AssetName: name})
	})
	return refs
}
