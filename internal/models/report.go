package models

import (
	"encoding/json"
	"time"
)

// CrawlReport 爬取报告
type CrawlReport struct {
	// 任务信息
	RunID       string    `json:"run_id"`
	SeedURL     string    `json:"seed_url"`
	AllowPrefix string    `json:"allow_prefix"`
	Mode        CrawlMode `json:"mode"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	// 统计信息
	Stats TaskStats `json:"stats"`

	// 页面列表
	Pages       []PageInfo   `json:"pages"`        // 成功转换的页面
	FailedPages []FailedPage `json:"failed_pages"` // 失败页面
	Assets      []ImageRef   `json:"assets"`       // 引用的图片(未下载)

	// 输出路径
	OutputDir string `json:"output_dir"`
	TOCFile   string `json:"toc_file"`

	// 配置快照
	Config ScrapeConfig `json:"config"`
}

// PageInfo 已转换页面信息
type PageInfo struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	FilePath  string    `json:"file_path"`
	Size      int64     `json:"size"`
	Links     int       `json:"links"`
	Converted time.Time `json:"converted_at"`
}

// FailedPage 失败页面信息
type FailedPage struct {
	URL       string `json:"url"`
	ErrorType string `json:"error_type"` // navigation, timeout, render, invalid_url
	ErrorMsg  string `json:"error_msg"`
	Attempts  int    `json:"attempts"`
}

// ToJSON 序列化为JSON
func (r *CrawlReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *CrawlReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}
