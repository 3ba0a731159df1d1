package crawlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/RecoveryAshes/mdcrawl/internal/models"
	"github.com/RecoveryAshes/mdcrawl/internal/urlpath"
)

var (
	// ErrNavigation 页面无法打开(网络错误、HTTP错误状态)
	ErrNavigation = errors.New("页面导航失败")

	// ErrRenderTimeout 页面在规定时间内没有完成渲染
	ErrRenderTimeout = errors.New("页面渲染超时")
)

// Renderer 页面渲染协作方
// Render返回渲染后的HTML、标题和最终URL;失败时返回*RenderError。
type Renderer interface {
	Render(ctx context.Context, pageURL string) (*models.RenderResult, error)
	Close() error
}

// RenderError 带请求URL的渲染错误
type RenderError struct {
	URL string
	Err error
}

// Error 实现error接口
func (e *RenderError) Error() string {
	return fmt.Sprintf("渲染失败 [%s]: %v", e.URL, e.Err)
}

// Unwrap 支持errors.Is/As
func (e *RenderError) Unwrap() error {
	return e.Err
}

// newRenderError 包装错误,超时统一归为ErrRenderTimeout
func newRenderError(pageURL string, err error) *RenderError {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrRenderTimeout) {
		err = fmt.Errorf("%w: %w", ErrRenderTimeout, err)
	}
	return &RenderError{URL: pageURL, Err: err}
}

// ErrorType 失败页面的错误分类,写入报告
func ErrorType(err error) string {
	switch {
	case errors.Is(err, ErrRenderTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrNavigation):
		return "navigation"
	case errors.Is(err, urlpath.ErrInvalidURL):
		return "invalid_url"
	default:
		return "render"
	}
}
