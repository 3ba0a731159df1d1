package urlpath

import (
	"errors"
	"net/url"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"主机名转小写", "https://EXAMPLE.com/Docs/Page", "https://example.com/Docs/Page"},
		{"去掉默认https端口", "https://example.com:443/a", "https://example.com/a"},
		{"去掉默认http端口", "http://example.com:80/a", "http://example.com/a"},
		{"保留非默认端口", "https://example.com:8443/a", "https://example.com:8443/a"},
		{"去掉fragment", "https://example.com/a#section", "https://example.com/a"},
		{"去掉跟踪参数", "https://example.com/a?utm_source=x&view=y&gclid=1", "https://example.com/a?view=y"},
		{"跟踪参数大小写不敏感", "https://example.com/a?UTM_Medium=x&WT.mc_id=abc", "https://example.com/a"},
		{"参数按key排序", "https://example.com/a?b=2&a=1&c=3", "https://example.com/a?a=1&b=2&c=3"},
		{"保留重复参数及其顺序", "https://example.com/a?tag=z&id=1&tag=a", "https://example.com/a?id=1&tag=z&tag=a"},
		{"保留参数原始编码", "https://example.com/a?q=a%20b&p=x+y", "https://example.com/a?p=x+y&q=a%20b"},
		{"空路径补斜杠", "https://example.com", "https://example.com/"},
		{"只有跟踪参数时去掉问号", "https://example.com/a?fbclid=abc", "https://example.com/a"},
		{"IPv6地址", "http://[::1]:80/a", "http://[::1]/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalString(tt.raw)
			if err != nil {
				t.Fatalf("CanonicalString(%q) 返回错误: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("CanonicalString(%q) = %q, 期望 %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeAuthority(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"主机名转小写", "https://EXAMPLE.com/Docs/x", "https://example.com/Docs/x"},
		{"去掉默认端口保留查询和fragment", "https://example.com:443/a?b=2&a=1#Top", "https://example.com/a?b=2&a=1#Top"},
		{"保留非默认端口", "http://Example.com:8080/a", "http://example.com:8080/a"},
		{"没有主机时不变", "mailto:Docs@Example.com", "mailto:Docs@Example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.raw)
			if err != nil {
				t.Fatal(err)
			}
			got := NormalizeAuthority(u).String()
			if got != tt.want {
				t.Errorf("NormalizeAuthority(%q) = %q, 期望 %q", tt.raw, got, tt.want)
			}
			if u.String() != tt.raw {
				t.Errorf("原URL被修改: %q", u.String())
			}
		})
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	inputs := []string{
		"https://Learn.Microsoft.com:443/en-us/docs/?view=win-11&utm_campaign=x#top",
		"http://example.com/a/b/?z=1&a=2&a=1",
		"https://example.com",
		"https://example.com/path%20with%20space/?q=%E4%B8%AD",
	}

	for _, in := range inputs {
		first, err := CanonicalString(in)
		if err != nil {
			t.Fatalf("CanonicalString(%q) 返回错误: %v", in, err)
		}
		second, err := CanonicalString(first)
		if err != nil {
			t.Fatalf("CanonicalString(%q) 返回错误: %v", first, err)
		}
		if first != second {
			t.Errorf("规范化不幂等: %q -> %q -> %q", in, first, second)
		}
	}
}

func TestCanonicalizeInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"相对路径", "/docs/page"},
		{"无协议", "example.com/page"},
		{"空字符串", ""},
		{"非法转义", "https://example.com/%zz"},
		{"控制字符", "https://example.com/\x7f"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Canonicalize(tt.raw)
			if err == nil {
				t.Fatalf("Canonicalize(%q) 应该返回错误", tt.raw)
			}
			if !errors.Is(err, ErrInvalidURL) {
				t.Errorf("错误应包装ErrInvalidURL, 得到: %v", err)
			}
		})
	}
}

func TestCanonicalizeDedupContract(t *testing.T) {
	a, _ := CanonicalString("https://Example.com/docs/page?b=2&a=1&utm_source=news#intro")
	b, _ := CanonicalString("https://example.com:443/docs/page?a=1&b=2&fbclid=xyz")
	if a != b {
		t.Errorf("同一页面应得到相同的规范化结果: %q != %q", a, b)
	}
}
