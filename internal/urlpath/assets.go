package urlpath

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"path"
	"strings"
)

// DeriveAssetFilename 为资源URL生成稳定的本地文件名
// 路径basename中含有"."时原样返回; 否则返回
// "<basename或asset>-<12位十六进制哈希>.bin",哈希基于完整URL字符串。
func DeriveAssetFilename(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", ErrInvalidURL
	}

	base := path.Base(u.Path)
	if base == "/" || base == "." {
		base = ""
	}
	if strings.Contains(base, ".") {
		return base, nil
	}
	if base == "" {
		base = "asset"
	}

	sum := sha1.Sum([]byte(rawURL))
	return base + "-" + hex.EncodeToString(sum[:])[:12] + ".bin", nil
}
