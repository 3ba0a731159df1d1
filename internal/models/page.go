package models

// RenderResult 渲染协作方返回的单页结果
type RenderResult struct {
	HTML         string // 渲染后的HTML(完整文档或已裁剪的片段)
	Title        string // 页面标题,可为空
	CanonicalURL string // 页面最终URL(重定向之后)
}

// PageDocument 裁剪后的单页文档,只被转换器消费一次
type PageDocument struct {
	URL         string // 规范化URL
	Title       string // 提取的标题
	ContentHTML string // 主内容区innerHTML
}

// LinkRewriteResult 单个链接的改写结果
type LinkRewriteResult struct {
	Href     string // 改写后的href
	Internal bool   // 是否为范围内链接
	Target   string // 内部链接的绝对目标URL(含查询和fragment)
}

// ImageRef 页面引用的图片
type ImageRef struct {
	URL       string `json:"url"`        // 图片绝对URL
	AssetName string `json:"asset_name"` // 本地化时使用的稳定文件名
}

// ConvertResult 单页转换结果
type ConvertResult struct {
	URL        string     // 页面规范化URL
	Title      string     // 页面标题
	FilePath   string     // 写入的Markdown文件路径
	Markdown   string     // 含frontmatter的完整Markdown
	Discovered []string   // 发现的内部绝对URL(去重,排序)
	Candidates []string   // 规范化并按前缀过滤后的待入队URL
	Images     []ImageRef // 页面引用的图片
}
