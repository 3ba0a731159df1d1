package markdown

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/RecoveryAshes/mdcrawl/internal/models"
	"github.com/RecoveryAshes/mdcrawl/internal/urlpath"
)

// RewriteLinks 改写页面中的图片和链接
//
// img[src] 改写为绝对URL(不下载);a[href] 按范围前缀分为内部/外部链接,
// 内部链接改写为指向目标.md文件的相对路径。返回每个非空href的改写结果。
// allowPrefix必须已经规范化。
func RewriteLinks(pageURL *url.URL, doc *goquery.Document, allowPrefix, outDir string) []models.LinkRewriteResult {
	doc.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if abs, ok := resolve(pageURL, src); ok {
			img.SetAttr("src", abs.String())
		}
	})

	var results []models.LinkRewriteResult
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if strings.TrimSpace(href) == "" {
			return
		}
		res := RewriteHref(pageURL, href, allowPrefix, outDir)
		a.SetAttr("href", res.Href)
		results = append(results, res)
	})
	return results
}

// RewriteHref 改写单个链接
// 解析失败或href为空白时原样返回并视为外部链接。
// 范围前缀比较前主机名转小写并去掉默认端口。
func RewriteHref(pageURL *url.URL, href, allowPrefix, outDir string) models.LinkRewriteResult {
	if strings.TrimSpace(href) == "" {
		return models.LinkRewriteResult{Href: href}
	}

	resolved, ok := resolve(pageURL, href)
	if !ok {
		return models.LinkRewriteResult{Href: href}
	}
	resolved = urlpath.NormalizeAuthority(resolved)

	abs := resolved.String()
	if !strings.HasPrefix(abs, allowPrefix) {
		return models.LinkRewriteResult{Href: abs}
	}

	rel := urlpath.LinkTarget(outDir, pageURL, resolved)
	if resolved.RawQuery != "" || resolved.ForceQuery {
		rel += "?" + resolved.RawQuery
	}
	if resolved.Fragment != "" {
		rel += "#" + resolved.EscapedFragment()
	}

	return models.LinkRewriteResult{
		Href:     rel,
		Internal: true,
		Target:   abs,
	}
}

// resolve 相对pageURL解析引用
// "#frag"形式的引用保留当前页面的路径和查询参数。
func resolve(pageURL *url.URL, ref string) (*url.URL, bool) {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, false
	}
	return pageURL.ResolveReference(parsed), true
}
