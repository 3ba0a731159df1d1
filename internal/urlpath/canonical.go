// Package urlpath 负责URL规范化以及URL到本地Markdown路径的映射
//
// 这里的函数都是纯函数: 不访问文件系统,不依赖任何可变状态。
// 任意两个并发的页面处理器对同一目标URL计算出的路径一定相同,
// 因此路径分配不需要任何协调或加锁。
package urlpath

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ErrInvalidURL URL无法解析为绝对URL
var ErrInvalidURL = errors.New("无效的URL")

// trackingParams 跟踪参数黑名单(小写比较)
var trackingParams = map[string]bool{
	"gclid":    true,
	"dclid":    true,
	"fbclid":   true,
	"msclkid":  true,
	"yclid":    true,
	"mc_cid":   true,
	"mc_eid":   true,
	"_ga":      true,
	"_gl":      true,
	"igshid":   true,
	"wt.mc_id": true,
}

// defaultPorts 各协议的默认端口
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// IsTrackingParam 判断查询参数名是否为跟踪参数
func IsTrackingParam(key string) bool {
	k := strings.ToLower(key)
	return strings.HasPrefix(k, "utm_") || trackingParams[k]
}

// Canonicalize 规范化URL
// 处理顺序:
//  1. 主机名转小写,去掉默认端口
//  2. 去掉fragment
//  3. 去掉跟踪参数
//  4. 按key稳定排序剩余参数(保留原始值和重复项)
//  5. 使用标准绝对URL形式序列化
//
// 对已规范化的URL再次调用结果不变。
func Canonicalize(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: 不是绝对URL: %q", ErrInvalidURL, raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = normalizeHost(u.Scheme, u.Host)

	u.Fragment = ""
	u.RawFragment = ""

	u.RawQuery = canonicalQuery(u.RawQuery)
	u.ForceQuery = false

	if u.Path == "" && u.Opaque == "" && (u.Scheme == "http" || u.Scheme == "https") {
		u.Path = "/"
		u.RawPath = ""
	}

	return u, nil
}

// NormalizeAuthority 返回主机名小写、去掉默认端口后的副本
// 路径、查询参数和fragment保持不变。
func NormalizeAuthority(u *url.URL) *url.URL {
	c := *u
	if c.Host != "" {
		c.Scheme = strings.ToLower(c.Scheme)
		c.Host = normalizeHost(c.Scheme, c.Host)
	}
	return &c
}

func normalizeHost(scheme, hostport string) string {
	u := url.URL{Host: hostport}
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if port != "" && defaultPorts[scheme] != port {
		return joinHostPort(host, port)
	}
	if strings.Contains(host, ":") {
		// IPv6字面量
		return "[" + host + "]"
	}
	return host
}

// CanonicalString 返回规范化后的URL字符串
func CanonicalString(raw string) (string, error) {
	u, err := Canonicalize(raw)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// canonicalQuery 过滤跟踪参数并按key排序,参数原文不做重新编码
func canonicalQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	type pair struct {
		key string
		raw string
	}

	var pairs []pair
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		rawKey, _, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			key = rawKey
		}
		if IsTrackingParam(key) {
			continue
		}
		pairs = append(pairs, pair{key: key, raw: part})
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].key < pairs[j].key
	})

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.raw)
	}
	return strings.Join(parts, "&")
}

func joinHostPort(host, port string) string {
	if strings.Contains(host, ":") {
		return "[" + host + "]:" + port
	}
	return host + ":" + port
}
