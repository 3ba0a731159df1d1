package crawlers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// ErrPoolClosed 标签页池已关闭
var ErrPoolClosed = errors.New("标签页池已关闭")

// PageSetupFunc 新标签页创建后的初始化(打印模式、请求拦截等)
// 返回的cleanup在标签页销毁时调用,可以为nil。
type PageSetupFunc func(page *rod.Page) (cleanup func(), err error)

// pooledPage 池中的标签页
type pooledPage struct {
	page          *rod.Page
	cleanup       func()
	cleanFailures int
}

// PagePool 标签页池管理器
// 职责: 管理浏览器标签页的生命周期,限制同时打开的标签页数
type PagePool struct {
	browser *rod.Browser
	setup   PageSetupFunc

	// 槽位信号量,容量即标签页上限
	slots chan struct{}

	mu     sync.Mutex
	idle   []*pooledPage
	inUse  map[*rod.Page]*pooledPage
	closed bool
}

// NewPagePool 创建标签页池实例
// 上限取maxPages和资源监控器给出的上限中的较小值。
func NewPagePool(browser *rod.Browser, monitor *ResourceMonitor, maxPages int, setup PageSetupFunc) *PagePool {
	limit := maxPages
	if monitor != nil {
		if m := monitor.CalculateMaxTabs(); m < limit {
			log.Warn().Msgf("受系统资源限制,标签页上限从 %d 调整为 %d", limit, m)
			limit = m
		}
		if ok, reason := monitor.CheckResourceAvailability(); !ok {
			log.Warn().Msgf("系统资源紧张: %s", reason)
		}
	}
	if limit < 1 {
		limit = 1
	}

	return &PagePool{
		browser: browser,
		setup:   setup,
		slots:   make(chan struct{}, limit),
		inUse:   make(map[*rod.Page]*pooledPage),
	}
}

// Size 返回标签页上限
func (pp *PagePool) Size() int {
	return cap(pp.slots)
}

// AcquirePage 获取一个可用的标签页,达到上限时阻塞等待
func (pp *PagePool) AcquirePage(ctx context.Context) (*rod.Page, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case pp.slots <- struct{}{}:
	}

	pp.mu.Lock()
	if pp.closed {
		pp.mu.Unlock()
		<-pp.slots
		return nil, ErrPoolClosed
	}
	if n := len(pp.idle); n > 0 {
		pooled := pp.idle[n-1]
		pp.idle = pp.idle[:n-1]
		pp.inUse[pooled.page] = pooled
		pp.mu.Unlock()
		return pooled.page, nil
	}
	pp.mu.Unlock()

	pooled, err := pp.newPage()
	if err != nil {
		<-pp.slots
		return nil, err
	}

	pp.mu.Lock()
	pp.inUse[pooled.page] = pooled
	pp.mu.Unlock()
	return pooled.page, nil
}

func (pp *PagePool) newPage() (*pooledPage, error) {
	page, err := pp.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		// 浏览器可能已崩溃或连接断开
		return nil, fmt.Errorf("创建标签页失败(浏览器可能已崩溃): %w", err)
	}

	pooled := &pooledPage{page: page}
	if pp.setup != nil {
		cleanup, err := pp.setup(page)
		if err != nil {
			_ = page.Close()
			return nil, fmt.Errorf("初始化标签页失败: %w", err)
		}
		pooled.cleanup = cleanup
	}

	log.Debug().Msg("创建新标签页")
	return pooled, nil
}

// ReleasePage 归还标签页
// broken为true(超时、导航异常)时直接销毁,否则清理状态后放回池中;
// 连续清理失败2次的标签页也会被销毁。
func (pp *PagePool) ReleasePage(page *rod.Page, broken bool) {
	if page == nil {
		return
	}
	defer func() { <-pp.slots }()

	pp.mu.Lock()
	pooled, ok := pp.inUse[page]
	delete(pp.inUse, page)
	closed := pp.closed
	pp.mu.Unlock()

	if !ok {
		log.Warn().Msg("归还的标签页不属于当前池,直接关闭")
		_ = page.Close()
		return
	}
	if broken || closed {
		pp.destroy(pooled)
		return
	}

	if err := cleanPage(page); err != nil {
		pooled.cleanFailures++
		log.Warn().Err(err).Msgf("清理标签页状态失败 (第%d次失败)", pooled.cleanFailures)
		if pooled.cleanFailures >= 2 {
			pp.destroy(pooled)
			return
		}
	} else {
		pooled.cleanFailures = 0
	}

	pp.mu.Lock()
	if pp.closed {
		pp.mu.Unlock()
		pp.destroy(pooled)
		return
	}
	pp.idle = append(pp.idle, pooled)
	pp.mu.Unlock()
}

// cleanPage 清理标签页存储并回到空白页
func cleanPage(page *rod.Page) error {
	_, err := page.Evaluate(&rod.EvalOptions{
		JS: `() => {
			try { localStorage.clear(); } catch (e) {}
			try { sessionStorage.clear(); } catch (e) {}
			return true;
		}`,
	})
	if err != nil {
		return fmt.Errorf("清理存储失败: %w", err)
	}
	if err := page.Navigate("about:blank"); err != nil {
		return fmt.Errorf("重置页面失败: %w", err)
	}
	return nil
}

func (pp *PagePool) destroy(pooled *pooledPage) {
	if pooled.cleanup != nil {
		pooled.cleanup()
	}
	if err := pooled.page.Close(); err != nil {
		log.Debug().Err(err).Msg("关闭标签页失败")
	}
}

// Close 关闭标签页池,空闲标签页立即销毁,使用中的在归还时销毁
func (pp *PagePool) Close() error {
	pp.mu.Lock()
	if pp.closed {
		pp.mu.Unlock()
		return nil
	}
	pp.closed = true
	idle := pp.idle
	pp.idle = nil
	pp.mu.Unlock()

	for _, pooled := range idle {
		pp.destroy(pooled)
	}

	log.Debug().Msg("标签页池已关闭")
	return nil
}
