package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadURLsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seeds.txt")
	content := "# 入口列表\nhttps://example.com/docs/a\n\nnot-a-url\nhttps://example.com/docs/b\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	urls, err := ReadURLsFromFile(path)
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("期望2个URL, 实际 %d: %v", len(urls), urls)
	}
	if urls[0] != "https://example.com/docs/a" || urls[1] != "https://example.com/docs/b" {
		t.Errorf("URL顺序或内容错误: %v", urls)
	}
}

func TestReadURLsFromFile_Empty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(path, []byte("# 只有注释\n\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadURLsFromFile(path); err == nil {
		t.Error("没有有效URL时应返回错误")
	}
	if _, err := ReadURLsFromFile(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("文件不存在时应返回错误")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "page.md")

	if err := WriteFileAtomic(path, []byte("第一版\n"), 0644); err != nil {
		t.Fatalf("首次写入失败: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("第二版\n"), 0644); err != nil {
		t.Fatalf("覆盖写入失败: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "第二版\n" {
		t.Errorf("内容应被整体替换, 实际 %q", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("不应残留临时文件, 目录内容: %v", entries)
	}
}

func TestWriteFileAtomic_Unwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	// 父路径是普通文件,无法创建目录
	if err := WriteFileAtomic(filepath.Join(blocker, "page.md"), []byte("x"), 0644); err == nil {
		t.Error("父路径为文件时应返回错误")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
