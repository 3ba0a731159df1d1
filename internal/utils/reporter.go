package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/mdcrawl/internal/models"
	"github.com/schollz/progressbar/v3"
)

// Reporter 报告生成器
type Reporter struct {
	reportDir string
}

// NewReporter 创建报告生成器
func NewReporter(reportDir string) *Reporter {
	return &Reporter{reportDir: reportDir}
}

// GenerateReport 生成爬取报告
// 主报告按RunID命名,失败页面单独保存一份方便重跑。
func (r *Reporter) GenerateReport(report *models.CrawlReport) (string, error) {
	if err := os.MkdirAll(r.reportDir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	name := "crawl_report.json"
	if report.RunID != "" {
		name = fmt.Sprintf("crawl_report_%s.json", report.RunID)
	}
	mainPath := filepath.Join(r.reportDir, name)
	if err := r.saveJSONReport(mainPath, report); err != nil {
		return "", err
	}

	if len(report.FailedPages) > 0 {
		if err := r.saveJSONReport(filepath.Join(r.reportDir, "failed_pages.json"), report.FailedPages); err != nil {
			return "", err
		}
	}

	Infof("✅ 报告已生成: %s", mainPath)
	return mainPath, nil
}

// saveJSONReport 保存JSON报告
func (r *Reporter) saveJSONReport(path string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	if err := WriteFileAtomic(path, append(jsonData, '\n'), 0644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", path)
	return nil
}

// NewProgressBar 创建进度条
// max为-1时显示为不定长的旋转指示器(总页数在爬取过程中才会知道)。
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("页"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
