// Package crawlers 提供页面渲染和并发爬取功能
//
// # 概述
//
// crawlers包负责"拿到页面": 按规范化URL去重的队列、两种渲染器和驱动它们的worker池。
// 页面内容的裁剪和转换由markdown包完成。
//
// # 核心组件
//
// ## BrowserRenderer
//
// 基于go-rod的浏览器渲染器。每个标签页创建时设置打印媒体模拟、User-Agent、
// 自定义头部,并拦截图片/媒体/字体请求;渲染时等待主内容出现,删除计算样式不可见的节点。
//
//	r, err := NewBrowserRenderer(BrowserConfig{Headless: true, MaxPages: 6, UserAgent: ua})
//	defer r.Close()
//	res, err := r.Render(ctx, "https://example.com/docs/")
//
// ## StaticRenderer
//
// 基于Colly的静态渲染器,不执行JavaScript。响应体按Content-Encoding解压(gzip/deflate/br)。
//
// ## PagePool (标签页池)
//
// 限制同时打开的标签页数(配置上限与ResourceMonitor给出的上限取小),标签页按需创建、归还后复用;
// 出错的标签页直接销毁,清理连续失败2次的标签页也会被销毁。
//
// ## URLQueue / URLSet
//
// URLQueue按规范化URL去重(通过注入的URLSet),待处理列表不设上限。
// 每个Pop出的URL处理完后调用Done,没有待处理也没有处理中的URL时队列自动关闭,worker随之退出。
// URLSet同时用作toc.json的来源,只增不删,并发安全。
//
//	seen := NewURLSet()
//	q := NewURLQueue(seen, 0, 0)
//	q.Push("https://example.com/docs/", 0, "")
//	item, ok := q.Pop(ctx)
//	// ...处理item...
//	q.Done()
//
// ## Engine
//
// errgroup驱动的worker池。渲染失败按指数退避重试,最终失败的页面记录到报告并跳过;
// markdown.ErrWriteFailure表示输出目录不可用,会取消所有worker并作为Run的返回值。
package crawlers
