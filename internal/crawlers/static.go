package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"

	"github.com/RecoveryAshes/mdcrawl/internal/models"
	"github.com/RecoveryAshes/mdcrawl/internal/utils"
)

// StaticConfig 静态渲染器配置
type StaticConfig struct {
	UserAgent        string
	Timeout          time.Duration // 单次请求超时
	IgnoreCertErrors bool
	Headers          models.HeaderProvider // 可选
}

// StaticRenderer 静态渲染器(使用Colly)
// 直接抓取服务器返回的HTML,不执行JavaScript,适合离线环境和CI。
type StaticRenderer struct {
	base    *colly.Collector
	headers http.Header
}

// NewStaticRenderer 创建静态渲染器
func NewStaticRenderer(config StaticConfig) (*StaticRenderer, error) {
	if config.Timeout <= 0 {
		config.Timeout = models.DefaultNavTimeout
	}

	var headers http.Header
	if config.Headers != nil {
		h, err := config.Headers.GetHeaders()
		if err != nil {
			return nil, fmt.Errorf("获取HTTP头部失败: %w", err)
		}
		headers = h
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if config.IgnoreCertErrors {
		// 跳过证书验证,允许访问自签名、过期或主机名不匹配的HTTPS站点
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		utils.Debugf("静态渲染器: TLS证书验证已禁用")
	}

	// 去重由URLQueue负责,同一URL重试时需要允许重复访问
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(config.UserAgent),
	)
	c.WithTransport(transport)
	c.SetRequestTimeout(config.Timeout)

	return &StaticRenderer{base: c, headers: headers}, nil
}

// Render 抓取单个页面
// Colly的Visit是同步的,放到goroutine里以便响应ctx取消。
func (r *StaticRenderer) Render(ctx context.Context, pageURL string) (*models.RenderResult, error) {
	c := r.base.Clone()

	var (
		result  *models.RenderResult
		respErr error
	)

	c.OnRequest(func(req *colly.Request) {
		for name, values := range r.headers {
			if len(values) > 0 && !strings.EqualFold(name, "User-Agent") {
				req.Headers.Set(name, values[0])
			}
		}
	})

	c.OnResponse(func(resp *colly.Response) {
		body, err := decompressResponse(resp.Headers.Get("Content-Encoding"), resp.Body)
		if err != nil {
			respErr = fmt.Errorf("解压响应失败: %w", err)
			return
		}
		resp.Body = body
		resp.Headers.Del("Content-Encoding")

		result = &models.RenderResult{
			HTML:         string(body),
			CanonicalURL: resp.Request.URL.String(),
		}
	})

	// OnHTML在OnResponse之后执行,此时Body已解压
	c.OnHTML("html", func(e *colly.HTMLElement) {
		if result == nil {
			return
		}
		title := strings.TrimSpace(e.DOM.Find("h1").First().Text())
		if title == "" {
			title = strings.TrimSpace(e.DOM.Find("title").First().Text())
		}
		result.Title = title
	})

	done := make(chan error, 1)
	go func() {
		done <- c.Visit(pageURL)
	}()

	select {
	case <-ctx.Done():
		return nil, newRenderError(pageURL, ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, newRenderError(pageURL, classifyFetchError(err))
		}
	}

	if respErr != nil {
		return nil, newRenderError(pageURL, respErr)
	}
	if result == nil {
		return nil, newRenderError(pageURL, fmt.Errorf("%w: 没有收到响应", ErrNavigation))
	}

	log.Debug().Str("url", pageURL).Str("final", result.CanonicalURL).Int("bytes", len(result.HTML)).Msg("页面抓取完成")
	return result, nil
}

// classifyFetchError 区分超时和其他网络/HTTP错误
func classifyFetchError(err error) error {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrRenderTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrNavigation, err)
}

// Close 静态渲染器没有需要释放的资源
func (r *StaticRenderer) Close() error {
	return nil
}

// decompressResponse 根据Content-Encoding解压响应体
// Colly已经处理过的gzip响应不再重复解压(检查gzip魔数)。
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip":
		if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
			return body, nil
		}
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		reader := brotli.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "", "identity":
		return body, nil

	default:
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}
