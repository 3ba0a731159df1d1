//go:build ignore

// verify_setup 检查运行mdcrawl所需的环境
//
//	go run scripts/verify_setup.go [--launch]
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

func main() {
	fmt.Println("==============================================")
	fmt.Println("  mdcrawl 环境检查")
	fmt.Println("==============================================")

	allOK := true

	fmt.Printf("✅ Go版本: %s\n", runtime.Version())
	fmt.Printf("✅ 操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	// 动态模式需要Chromium,静态模式不需要
	bin, found := launcher.LookPath()
	if found {
		fmt.Printf("✅ 浏览器: %s\n", bin)
	} else {
		fmt.Println("⚠️  未找到本地浏览器, 动态模式首次运行时会自动下载Chromium")
		fmt.Println("   也可以用 --browser-bin 指定, 或使用 --mode static")
	}

	if len(os.Args) > 1 && os.Args[1] == "--launch" {
		if err := tryLaunch(bin); err != nil {
			fmt.Printf("❌ 启动浏览器失败: %v\n", err)
			allOK = false
		} else {
			fmt.Println("✅ 浏览器可以正常启动并渲染页面")
		}
	}

	for _, dir := range []string{"cmd/mdcrawl", "internal/markdown", "internal/crawlers", "configs"} {
		if _, err := os.Stat(dir); err != nil {
			fmt.Printf("❌ %s/ 不存在\n", dir)
			allOK = false
		}
	}

	fmt.Println("==============================================")
	if !allOK {
		fmt.Println("❌ 环境检查未通过")
		os.Exit(1)
	}
	fmt.Println("✅ 环境检查通过")
}

// tryLaunch 启动无头浏览器并打开一个空白页
func tryLaunch(bin string) error {
	l := launcher.New().Headless(true)
	if bin != "" {
		l = l.Bin(bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return err
	}
	defer l.Kill()

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return err
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return err
	}
	return page.Close()
}
