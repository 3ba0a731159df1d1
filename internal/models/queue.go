package models

// URLItem 表示队列中的一个URL项
type URLItem struct {
	// URL 规范化后的URL字符串
	URL string

	// Depth URL的深度层级
	//   - 0: 入口URL
	//   - 1: 从入口页面发现的链接
	//   - 以此类推...
	Depth int

	// SourceURL 发现此URL的源页面(可选,用于调试)
	SourceURL string

	// Attempt 已尝试渲染的次数
	Attempt int
}
