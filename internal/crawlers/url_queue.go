package crawlers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/RecoveryAshes/mdcrawl/internal/models"
	"github.com/RecoveryAshes/mdcrawl/internal/urlpath"
)

// ErrQueueClosed 队列已关闭
var ErrQueueClosed = errors.New("队列已关闭")

// URLQueue URL队列管理器
// 职责: 按规范化URL去重,管理待爬取URL,支持并发安全的Push/Pop操作。
//
// 待处理列表不设上限,Push永远不会阻塞;Pop阻塞直到有URL、队列关闭或ctx取消。
// 每个Pop出的URL处理完后必须调用Done,没有待处理也没有处理中的URL时队列自动关闭。
type URLQueue struct {
	mu sync.Mutex

	// 待处理URL
	pending []models.URLItem

	// 已入队URL集合(规范化后)
	seen *URLSet

	// 正在处理的URL数
	inFlight int

	// 已接受的URL总数
	accepted int

	// 最大爬取深度,0表示不限制
	maxDepth int

	// 最大页面数,0表示不限制
	maxPages int

	// 队列状态变化时关闭并替换,用于唤醒Pop
	notify chan struct{}

	closed bool
}

// NewURLQueue 创建URL队列实例
// seen为nil时新建一个集合。
func NewURLQueue(seen *URLSet, maxDepth, maxPages int) *URLQueue {
	if seen == nil {
		seen = NewURLSet()
	}
	return &URLQueue{
		seen:     seen,
		maxDepth: maxDepth,
		maxPages: maxPages,
		notify:   make(chan struct{}),
	}
}

// Push 添加URL到待爬队列
// 返回true表示新入队;已见过、超出深度或页面数限制时返回false。
func (q *URLQueue) Push(rawURL string, depth int, source string) (bool, error) {
	canonical, err := urlpath.CanonicalString(rawURL)
	if err != nil {
		return false, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false, ErrQueueClosed
	}
	if q.maxDepth > 0 && depth > q.maxDepth {
		return false, nil
	}
	if q.maxPages > 0 && q.accepted >= q.maxPages {
		return false, nil
	}
	if !q.seen.Add(canonical) {
		return false, nil
	}

	q.pending = append(q.pending, models.URLItem{
		URL:       canonical,
		Depth:     depth,
		SourceURL: source,
	})
	q.accepted++
	q.signal()
	return true, nil
}

// Pop 从队列中取出下一个待爬URL
// 队列关闭或ctx取消时返回false
func (q *URLQueue) Pop(ctx context.Context) (models.URLItem, bool) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return models.URLItem{}, false
		}
		if len(q.pending) > 0 {
			item := q.pending[0]
			q.pending[0] = models.URLItem{}
			q.pending = q.pending[1:]
			q.inFlight++
			q.mu.Unlock()
			return item, true
		}
		wait := q.notify
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return models.URLItem{}, false
		case <-wait:
		}
	}
}

// Done 标记一个Pop出的URL处理完成
func (q *URLQueue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inFlight > 0 {
		q.inFlight--
	}
	q.closeIfIdleLocked()
}

// CloseIfIdle 没有待处理也没有处理中的URL时关闭队列
// 入口URL全部被拒绝时用它避免Pop永久阻塞。
func (q *URLQueue) CloseIfIdle() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closeIfIdleLocked()
}

func (q *URLQueue) closeIfIdleLocked() {
	if q.inFlight == 0 && len(q.pending) == 0 && !q.closed {
		q.closed = true
	}
	q.signal()
}

// Close 关闭队列,后续Push返回ErrQueueClosed,Pop返回false
func (q *URLQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		q.signal()
	}
}

// signal 唤醒所有等待中的Pop,调用方需持有锁
func (q *URLQueue) signal() {
	close(q.notify)
	q.notify = make(chan struct{})
}

// PendingCount 返回当前待处理URL数量
func (q *URLQueue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// InFlight 返回正在处理的URL数量
func (q *URLQueue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

// Accepted 返回已接受的URL总数
func (q *URLQueue) Accepted() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.accepted
}

// String 调试输出
func (q *URLQueue) String() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return fmt.Sprintf("URLQueue{pending=%d, inFlight=%d, accepted=%d, closed=%v}",
		len(q.pending), q.inFlight, q.accepted, q.closed)
}
