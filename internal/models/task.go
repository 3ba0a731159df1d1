package models

// TaskStats 任务统计
type TaskStats struct {
	VisitedURLs    int     `json:"visited_urls"`    // 已访问URL数
	ConvertedPages int     `json:"converted_pages"` // 成功转换的页面数
	FailedPages    int     `json:"failed_pages"`    // 失败页面数
	Retries        int     `json:"retries"`         // 渲染重试次数
	DiscoveredURLs int     `json:"discovered_urls"` // 入队的新URL数
	TotalBytes     int64   `json:"total_bytes"`     // 写入Markdown总字节数
	Duration       float64 `json:"duration"`        // 总耗时(秒)
}
