package crawlers

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/RecoveryAshes/mdcrawl/internal/utils"
)

// URLSet 并发安全的只增URL集合
// 用于队列去重和已转换页面目录(toc.json),不支持删除。
type URLSet struct {
	mu   sync.RWMutex
	urls map[string]struct{}
}

// NewURLSet 创建URL集合
func NewURLSet() *URLSet {
	return &URLSet{urls: make(map[string]struct{})}
}

// Add 添加URL,已存在时返回false
func (s *URLSet) Add(u string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.urls[u]; ok {
		return false
	}
	s.urls[u] = struct{}{}
	return true
}

// Contains 检查URL是否存在
func (s *URLSet) Contains(u string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.urls[u]
	return ok
}

// Len 返回集合大小
func (s *URLSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.urls)
}

// Sorted 返回按字典序排序的快照
func (s *URLSet) Sorted() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.urls))
	for u := range s.urls {
		out = append(out, u)
	}
	s.mu.RUnlock()

	sort.Strings(out)
	return out
}

// WriteTOC 把集合写成排序后的JSON数组(两空格缩进,换行结尾)
func (s *URLSet) WriteTOC(path string) error {
	data, err := json.MarshalIndent(s.Sorted(), "", "  ")
	if err != nil {
		return fmt.Errorf("序列化目录失败: %w", err)
	}
	return utils.WriteFileAtomic(path, append(data, '\n'), 0644)
}
