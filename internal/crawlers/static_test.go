package crawlers

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

// staticHeaders 测试用的头部提供者
type staticHeaders http.Header

func (h staticHeaders) GetHeaders() (http.Header, error) {
	return http.Header(h), nil
}

const staticPage = `<html><head><title>静态标题</title></head><body><main><h1>页面标题</h1><p>正文</p></main></body></html>`

func newStaticServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		if r.UserAgent() != "mdcrawl-test/1.0" {
			http.Error(w, "bad ua", http.StatusForbidden)
			return
		}
		if r.Header.Get("X-Token") != "secret" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(staticPage))
	})

	mux.HandleFunc("/brotli", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		bw.Write([]byte(staticPage))
		bw.Close()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Encoding", "br")
		w.Write(buf.Bytes())
	})

	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestStaticRenderer(t *testing.T) *StaticRenderer {
	t.Helper()
	r, err := NewStaticRenderer(StaticConfig{
		UserAgent: "mdcrawl-test/1.0",
		Timeout:   5 * time.Second,
		Headers:   staticHeaders{"X-Token": []string{"secret"}},
	})
	if err != nil {
		t.Fatalf("创建静态渲染器失败: %v", err)
	}
	return r
}

func TestStaticRenderer_Render(t *testing.T) {
	srv := newStaticServer(t)
	r := newTestStaticRenderer(t)

	for _, path := range []string{"/plain", "/brotli"} {
		t.Run(path, func(t *testing.T) {
			res, err := r.Render(context.Background(), srv.URL+path)
			if err != nil {
				t.Fatalf("Render失败: %v", err)
			}
			if !bytes.Contains([]byte(res.HTML), []byte("<p>正文</p>")) {
				t.Errorf("HTML内容错误: %s", res.HTML)
			}
			if res.Title != "页面标题" {
				t.Errorf("Title = %q, want 页面标题", res.Title)
			}
			if res.CanonicalURL != srv.URL+path {
				t.Errorf("CanonicalURL = %q", res.CanonicalURL)
			}
		})
	}
}

func TestStaticRenderer_NotFound(t *testing.T) {
	srv := newStaticServer(t)
	r := newTestStaticRenderer(t)

	_, err := r.Render(context.Background(), srv.URL+"/missing")
	if err == nil {
		t.Fatal("404页面应返回错误")
	}

	var renderErr *RenderError
	if !errors.As(err, &renderErr) || renderErr.URL != srv.URL+"/missing" {
		t.Errorf("错误应为带URL的RenderError: %v", err)
	}
	if !errors.Is(err, ErrNavigation) {
		t.Errorf("404应归类为导航失败: %v", err)
	}
	if ErrorType(err) != "navigation" {
		t.Errorf("ErrorType = %s", ErrorType(err))
	}
}

func TestStaticRenderer_ContextTimeout(t *testing.T) {
	srv := newStaticServer(t)
	r := newTestStaticRenderer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := r.Render(ctx, srv.URL+"/slow")
	if !errors.Is(err, ErrRenderTimeout) {
		t.Errorf("超时应返回ErrRenderTimeout, 实际 %v", err)
	}
	if ErrorType(err) != "timeout" {
		t.Errorf("ErrorType = %s", ErrorType(err))
	}
}

func TestDecompressResponse(t *testing.T) {
	payload := []byte("<html>内容</html>")

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	gw.Write(payload)
	gw.Close()

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	bw.Write(payload)
	bw.Close()

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"无压缩", "", payload},
		{"gzip", "gzip", gz.Bytes()},
		{"已解压的gzip", "gzip", payload},
		{"brotli", "BR", br.Bytes()},
		{"未知编码", "zstd", payload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decompressResponse(tt.encoding, tt.body)
			if err != nil {
				t.Fatalf("解压失败: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("解压结果错误: %q", got)
			}
		})
	}
}
