package urlpath

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// indexName 没有路径段的URL(如站点根)对应的文件名
const indexName = "index"

// segments 返回URL路径中可用于磁盘路径的段
// 去掉末尾斜杠、空段以及 "." / ".."
func segments(u *url.URL) []string {
	p := strings.TrimSuffix(u.Path, "/")
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s == "" || s == "." || s == ".." {
			continue
		}
		out = append(out, s)
	}
	return out
}

// URLToFilePath 将规范化URL映射为outDir下的Markdown文件路径
// 例如 https://host/a/b/c/ -> outDir/a/b/c.md
// 纯函数,不创建目录。
func URLToFilePath(outDir string, u *url.URL) string {
	segs := segments(u)
	if len(segs) == 0 {
		segs = []string{indexName}
	}
	return filepath.Join(append([]string{outDir}, segs...)...) + ".md"
}

// LinkBaseDir 返回页面内相对链接的基准目录
// 与浏览器解析相对链接的方式一致: 以斜杠结尾的URL本身就是目录,
// 否则取最后一个斜杠之前的部分。
func LinkBaseDir(outDir string, u *url.URL) string {
	dir := u.Path
	if !strings.HasSuffix(dir, "/") {
		dir = path.Dir(dir)
	}
	d := &url.URL{Path: dir}
	return filepath.Join(append([]string{outDir}, segments(d)...)...)
}

// RelativePath 计算从fromFile所在目录到toFile的相对路径
// 无论平台始终使用正斜杠。
func RelativePath(fromFile, toFile string) string {
	return relativeFromDir(filepath.Dir(fromFile), toFile)
}

// relativeFromDir 计算从目录dir到toFile的相对路径(正斜杠)
func relativeFromDir(dir, toFile string) string {
	rel, err := filepath.Rel(dir, toFile)
	if err != nil {
		// 一个是绝对路径一个是相对路径时无法计算,退回目标路径本身
		rel = toFile
	}
	return strings.ReplaceAll(filepath.ToSlash(rel), `\`, "/")
}

// LinkTarget 计算从页面pageURL指向目标targetURL的本地Markdown相对路径
func LinkTarget(outDir string, pageURL, targetURL *url.URL) string {
	return relativeFromDir(LinkBaseDir(outDir, pageURL), URLToFilePath(outDir, targetURL))
}
