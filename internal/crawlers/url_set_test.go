package crawlers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
)

func TestURLSet_ConcurrentAdd(t *testing.T) {
	s := NewURLSet()

	var wg sync.WaitGroup
	var mu sync.Mutex
	added := 0
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if s.Add(fmt.Sprintf("https://example.com/docs/%d", i)) {
					mu.Lock()
					added++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if s.Len() != 100 {
		t.Errorf("集合大小 = %d, want 100", s.Len())
	}
	if added != 100 {
		t.Errorf("每个URL应只被成功添加一次, 实际 %d 次", added)
	}
	if !s.Contains("https://example.com/docs/42") {
		t.Error("应包含已添加的URL")
	}
}

func TestURLSet_WriteTOC(t *testing.T) {
	s := NewURLSet()
	for _, u := range []string{
		"https://example.com/docs/b",
		"https://example.com/docs/",
		"https://example.com/docs/a",
		"https://example.com/docs/a",
	} {
		s.Add(u)
	}

	path := filepath.Join(t.TempDir(), "toc.json")
	if err := s.WriteTOC(path); err != nil {
		t.Fatalf("写入目录失败: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "[\n  \"https://example.com/docs/\",\n  \"https://example.com/docs/a\",\n  \"https://example.com/docs/b\"\n]\n"
	if string(data) != want {
		t.Errorf("toc.json内容错误:\n%s\nwant:\n%s", data, want)
	}

	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		t.Fatalf("toc.json不是有效JSON: %v", err)
	}
	if !reflect.DeepEqual(urls, s.Sorted()) {
		t.Errorf("toc.json与集合快照不一致: %v", urls)
	}
}

func TestURLSet_WriteTOCEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toc.json")
	if err := NewURLSet().WriteTOC(path); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "[]\n" {
		t.Errorf("空目录应为[], 实际 %q", data)
	}
}
