package markdown

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	languageClass   = regexp.MustCompile(`language-([A-Za-z0-9_-]+)`)
	extraBlankLines = regexp.MustCompile(`\n{3,}`)
	emptyHeading    = regexp.MustCompile(`(?m)^#+[ \t]*(\n|$)`)
)

// Converter HTML到Markdown的转换器
// 不在goroutine之间共享,每个页面处理流程各自创建。
type Converter struct {
	conv *md.Converter
}

// NewConverter 创建转换器
func NewConverter() *Converter {
	opts := &md.Options{
		HeadingStyle:     "atx",
		HorizontalRule:   "---",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
		Fence:            "```",
		EmDelimiter:      "*",
		StrongDelimiter:  "**",
		LinkStyle:        "inlined",
	}

	conv := md.NewConverter("", true, opts)
	conv.Use(plugin.GitHubFlavored())
	conv.Keep("kbd", "sup", "sub")
	conv.Remove("script", "style")
	conv.AddRules(fencedCodeRule(), literalTagRule("kbd"))

	return &Converter{conv: conv}
}

// Convert 转换内容HTML并做规范化
func (c *Converter) Convert(contentHTML string) (string, error) {
	out, err := c.conv.ConvertString(contentHTML)
	if err != nil {
		return "", fmt.Errorf("转换Markdown失败: %w", err)
	}
	return Cleanup(out), nil
}

// fencedCodeRule <pre><code class="language-X">渲染为带语言标记的代码块
// 代码文本原样保留,不做转义。pre的第一个子节点不是code时交给默认规则。
func fencedCodeRule() md.Rule {
	return md.Rule{
		Filter: []string{"pre"},
		Replacement: func(_ string, selec *goquery.Selection, opt *md.Options) *string {
			code := firstChildCode(selec)
			if code == nil {
				return nil
			}

			codeSel := goquery.NewDocumentFromNode(code).Selection
			lang := ""
			if m := languageClass.FindStringSubmatch(codeSel.AttrOr("class", "")); m != nil {
				lang = m[1]
			}

			fence := opt.Fence
			if fence == "" {
				fence = "```"
			}
			out := "\n" + fence + lang + "\n" + codeSel.Text() + "\n" + fence + "\n"
			return &out
		},
	}
}

// literalTagRule 元素原样输出为HTML标签
// 内置规则会把kbd转成行内代码,Keep对它不起作用。
func literalTagRule(tags ...string) md.Rule {
	return md.Rule{
		Filter: tags,
		Replacement: func(_ string, selec *goquery.Selection, _ *md.Options) *string {
			out, err := goquery.OuterHtml(selec)
			if err != nil {
				return nil
			}
			return &out
		},
	}
}

func firstChildCode(selec *goquery.Selection) *html.Node {
	if selec.Length() == 0 {
		return nil
	}
	first := selec.Get(0).FirstChild
	if first == nil || first.Type != html.ElementNode || first.DataAtom != atom.Code {
		return nil
	}
	return first
}

// Cleanup Markdown后处理
// 删除只有#和空白的空标题行(包括最后一行),3个以上连续换行折叠为2个,去掉首尾空白并以单个换行结尾。
func Cleanup(markdown string) string {
	out := emptyHeading.ReplaceAllString(markdown, "")
	out = extraBlankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out) + "\n"
}

// Frontmatter 生成文档头
func Frontmatter(title, source string) string {
	escaped := strings.ReplaceAll(title, `"`, `\"`)
	return fmt.Sprintf("---\ntitle: \"%s\"\nsource: \"%s\"\n---\n\n", escaped, source)
}
