// Package markdown 把渲染后的页面转换为Markdown文件
//
// 处理顺序固定为: 裁剪(Prune) → 链接/图片改写(RewriteLinks) → 转换(Converter) → 写入。
// 每个页面的DOM只由处理它的goroutine持有,整个流程不依赖其他页面的结果。
package markdown

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ContainerSelectors 主内容容器选择器,按优先级排列
var ContainerSelectors = []string{"main article", "main", "article"}

// ChromeSelectors 页面框架元素,从整个文档中删除
var ChromeSelectors = []string{
	"nav",
	"header",
	"footer",
	"aside",
	".feedback",
	".rating",
	".toc",
	".metadata",
	"[data-bi-name=breadcrumb]",
}

// HiddenPrintClass 打印模式下隐藏的元素类名
const HiddenPrintClass = "hidden-print"

// hiddenSelectors 容器内静态可判定的隐藏元素
var hiddenSelectors = []string{"." + HiddenPrintClass, "[hidden]"}

// Prune 裁剪渲染后的HTML,返回主内容容器的innerHTML
func Prune(renderedHTML string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(renderedHTML))
	if err != nil {
		return "", fmt.Errorf("解析HTML失败: %w", err)
	}

	// 先删除框架元素,容器内嵌的导航等也一并删除
	doc.Find(strings.Join(ChromeSelectors, ", ")).Remove()

	container := selectContainer(doc)
	removeHidden(container)

	content, err := container.Html()
	if err != nil {
		return "", fmt.Errorf("序列化内容失败: %w", err)
	}
	return content, nil
}

// selectContainer 选择主内容容器,找不到时回退到body
func selectContainer(doc *goquery.Document) *goquery.Selection {
	for _, sel := range ContainerSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s
		}
	}
	return doc.Find("body").First()
}

// removeHidden 删除容器内的隐藏元素
// 计算样式层面的隐藏由浏览器渲染器在打印模式下处理,这里处理标记和内联样式。
func removeHidden(container *goquery.Selection) {
	container.Find(strings.Join(hiddenSelectors, ", ")).Remove()
	container.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		if isInlineHidden(s.AttrOr("style", "")) {
			s.Remove()
		}
	})
}

// isInlineHidden 判断内联样式是否隐藏元素
func isInlineHidden(style string) bool {
	for _, decl := range strings.Split(style, ";") {
		prop, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		value = strings.ToLower(strings.TrimSpace(value))
		value = strings.TrimSpace(strings.TrimSuffix(value, "!important"))
		switch {
		case prop == "display" && value == "none":
			return true
		case prop == "visibility" && value == "hidden":
			return true
		}
	}
	return false
}

// ExtractTitle 提取页面标题
// 依次尝试第一个<h1>、<title>,都为空时返回"Untitled"。
func ExtractTitle(renderedHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(renderedHTML))
	if err != nil {
		return untitled
	}
	if t := firstHeading(doc.Selection); t != "" {
		return t
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return untitled
}

const untitled = "Untitled"

func firstHeading(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Find("h1").First().Text()), " ")
}
