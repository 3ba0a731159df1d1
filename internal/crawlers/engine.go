package crawlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/RecoveryAshes/mdcrawl/internal/markdown"
	"github.com/RecoveryAshes/mdcrawl/internal/models"
	"github.com/RecoveryAshes/mdcrawl/internal/utils"
)

// retryBackoff 第一次重试前的等待时间,之后每次翻倍
var retryBackoff = 500 * time.Millisecond

// Engine 爬取引擎
// 以Concurrency个worker消费URLQueue: 渲染(失败重试) → 处理流程 → 新URL入队。
// 渲染失败只记录不中断;写入失败(markdown.ErrWriteFailure)取消整个爬取。
type Engine struct {
	config   models.ScrapeConfig
	renderer Renderer
	pipeline *markdown.Pipeline
	queue    *URLQueue

	mu     sync.Mutex
	stats  models.TaskStats
	pages  []models.PageInfo
	failed []models.FailedPage
	assets map[string]models.ImageRef

	bar *progressbar.ProgressBar
}

// NewEngine 创建爬取引擎
func NewEngine(config models.ScrapeConfig, renderer Renderer, pipeline *markdown.Pipeline, queue *URLQueue) *Engine {
	return &Engine{
		config:   config,
		renderer: renderer,
		pipeline: pipeline,
		queue:    queue,
		assets:   make(map[string]models.ImageRef),
	}
}

// Run 从入口URL开始爬取,直到队列耗尽、ctx取消或发生致命错误
func (e *Engine) Run(ctx context.Context, seeds []string) error {
	start := time.Now()

	for _, seed := range seeds {
		added, err := e.queue.Push(seed, 0, "")
		if err != nil {
			utils.Warnf("入口URL无效 [%s]: %v", seed, err)
			continue
		}
		if !added {
			utils.Debugf("入口URL重复: %s", seed)
		}
	}
	if e.queue.Accepted() == 0 {
		e.queue.Close()
		return fmt.Errorf("没有可爬取的入口URL")
	}
	e.queue.CloseIfIdle()

	if e.config.Progress {
		e.bar = utils.NewProgressBar(-1, "转换页面")
		defer e.bar.Finish()
	}

	workers := e.config.Concurrency
	if workers < 1 {
		workers = 1
	}
	utils.Infof("开始爬取: %d 个入口, %d 个worker", e.queue.Accepted(), workers)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		workerID := i
		g.Go(func() error {
			return e.worker(gctx, workerID)
		})
	}

	// 致命错误或取消时唤醒阻塞在Pop上的worker
	stop := make(chan struct{})
	go func() {
		select {
		case <-gctx.Done():
			e.queue.Close()
		case <-stop:
		}
	}()

	err := g.Wait()
	close(stop)

	e.mu.Lock()
	e.stats.Duration = time.Since(start).Seconds()
	e.stats.DiscoveredURLs = e.queue.Accepted()
	e.mu.Unlock()

	if err != nil {
		return err
	}
	return ctx.Err()
}

// worker 从队列拉取URL并处理
func (e *Engine) worker(ctx context.Context, workerID int) error {
	for {
		item, ok := e.queue.Pop(ctx)
		if !ok {
			return nil
		}

		err := e.process(ctx, item)
		e.queue.Done()

		if errors.Is(err, markdown.ErrWriteFailure) {
			utils.Errorf("Worker %d 写入失败,终止爬取: %v", workerID, err)
			return err
		}
	}
}

// process 处理单个URL,只有写入失败会返回错误
func (e *Engine) process(ctx context.Context, item models.URLItem) error {
	e.mu.Lock()
	e.stats.VisitedURLs++
	e.mu.Unlock()

	res, attempts, err := e.render(ctx, item)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		utils.Warnf("页面渲染失败 [%s] (尝试%d次): %v", item.URL, attempts, err)
		e.recordFailure(item.URL, err, attempts)
		return nil
	}

	converted, err := e.pipeline.Process(ctx, *res)
	if err != nil {
		if errors.Is(err, markdown.ErrWriteFailure) {
			e.recordFailure(item.URL, err, attempts)
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		utils.Warnf("页面转换失败 [%s]: %v", item.URL, err)
		e.recordFailure(item.URL, err, attempts)
		return nil
	}

	enqueued := 0
	for _, candidate := range converted.Candidates {
		added, err := e.queue.Push(candidate, item.Depth+1, item.URL)
		if err != nil {
			if !errors.Is(err, ErrQueueClosed) {
				log.Debug().Err(err).Str("url", candidate).Msg("跳过候选URL")
			}
			continue
		}
		if added {
			enqueued++
		}
	}

	e.recordPage(converted)
	log.Info().
		Str("url", converted.URL).
		Str("file", converted.FilePath).
		Int("depth", item.Depth).
		Int("new_urls", enqueued).
		Int("pending", e.queue.PendingCount()).
		Int("in_flight", e.queue.InFlight()).
		Msg("页面已转换")

	return nil
}

// render 渲染页面,失败时按指数退避重试MaxRetries次
func (e *Engine) render(ctx context.Context, item models.URLItem) (*models.RenderResult, int, error) {
	var lastErr error
	backoff := retryBackoff

	for attempt := 1; attempt <= e.config.MaxRetries+1; attempt++ {
		if attempt > 1 {
			e.mu.Lock()
			e.stats.Retries++
			e.mu.Unlock()

			log.Debug().Str("url", item.URL).Int("attempt", attempt).Err(lastErr).Msg("重试渲染")
			select {
			case <-ctx.Done():
				return nil, attempt - 1, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		pageCtx, cancel := context.WithTimeout(ctx, e.config.PageTimeout)
		res, err := e.renderer.Render(pageCtx, item.URL)
		cancel()

		if err == nil {
			if res.CanonicalURL == "" {
				res.CanonicalURL = item.URL
			}
			return res, attempt, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, attempt, ctx.Err()
		}
	}
	return nil, e.config.MaxRetries + 1, lastErr
}

func (e *Engine) recordFailure(pageURL string, err error, attempts int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.FailedPages++
	e.failed = append(e.failed, models.FailedPage{
		URL:       pageURL,
		ErrorType: ErrorType(err),
		ErrorMsg:  err.Error(),
		Attempts:  attempts,
	})
}

func (e *Engine) recordPage(res *models.ConvertResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	size := int64(len(res.Markdown))
	e.stats.ConvertedPages++
	e.stats.TotalBytes += size
	e.pages = append(e.pages, models.PageInfo{
		URL:       res.URL,
		Title:     res.Title,
		FilePath:  res.FilePath,
		Size:      size,
		Links:     len(res.Discovered),
		Converted: time.Now(),
	})
	for _, img := range res.Images {
		e.assets[img.URL] = img
	}

	if e.bar != nil {
		_ = e.bar.Add(1)
	}
}

// Stats 返回统计信息快照
func (e *Engine) Stats() models.TaskStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// FillReport 把页面、失败和图片信息写入报告(按URL排序)
func (e *Engine) FillReport(report *models.CrawlReport) {
	e.mu.Lock()
	defer e.mu.Unlock()

	report.Stats = e.stats

	report.Pages = append([]models.PageInfo(nil), e.pages...)
	sort.Slice(report.Pages, func(i, j int) bool { return report.Pages[i].URL < report.Pages[j].URL })

	report.FailedPages = append([]models.FailedPage(nil), e.failed...)
	sort.Slice(report.FailedPages, func(i, j int) bool { return report.FailedPages[i].URL < report.FailedPages[j].URL })

	report.Assets = make([]models.ImageRef, 0, len(e.assets))
	for _, a := range e.assets {
		report.Assets = append(report.Assets, a)
	}
	sort.Slice(report.Assets, func(i, j int) bool { return report.Assets[i].URL < report.Assets[j].URL })
}
