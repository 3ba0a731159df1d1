package crawlers

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceMonitor 系统资源监控器
// 职责: 采样系统可用内存和CPU负载,计算浏览器标签页上限
type ResourceMonitor struct {
	config ResourceMonitorConfig

	mu             sync.RWMutex
	availableBytes uint64  // 最近一次采样的系统可用内存
	cpuUsage       float64 // 最近一次采样的CPU使用率(%)

	cancelFunc context.CancelFunc
	isRunning  bool
}

// ResourceMonitorConfig 资源监控器配置
type ResourceMonitorConfig struct {
	SafetyReserveMemory int64 // 为系统保留的内存(字节)
	CPULoadThreshold    int   // CPU负载阈值(%),>=200视为禁用
	MaxTabsLimit        int   // 绝对最大标签页数
	TabMemoryUsage      int64 // 单个标签页平均内存消耗(字节)
}

// DefaultResourceMonitorConfig 默认配置
func DefaultResourceMonitorConfig(maxTabs int) ResourceMonitorConfig {
	return ResourceMonitorConfig{
		SafetyReserveMemory: 512 * 1024 * 1024,
		CPULoadThreshold:    95,
		MaxTabsLimit:        maxTabs,
		TabMemoryUsage:      150 * 1024 * 1024,
	}
}

// NewResourceMonitor 创建资源监控器实例并立即采样一次
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	if config.TabMemoryUsage <= 0 {
		config.TabMemoryUsage = 150 * 1024 * 1024
	}
	if config.MaxTabsLimit <= 0 {
		config.MaxTabsLimit = runtime.NumCPU()
	}

	rm := &ResourceMonitor{config: config}
	rm.sampleMemory()
	return rm
}

// StartMonitoring 启动后台采样,重复调用无副作用
func (rm *ResourceMonitor) StartMonitoring(interval time.Duration) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.isRunning {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rm.cancelFunc = cancel
	rm.isRunning = true

	go rm.monitoringLoop(ctx, interval)
}

func (rm *ResourceMonitor) monitoringLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rm.sampleMemory()
			rm.sampleCPU()
		}
	}
}

// sampleMemory 采样系统可用内存,失败时假定4GB
func (rm *ResourceMonitor) sampleMemory() {
	available := uint64(4 * 1024 * 1024 * 1024)
	if vm, err := mem.VirtualMemory(); err != nil {
		log.Warn().Err(err).Msg("获取系统内存失败,使用默认值")
	} else {
		available = vm.Available
	}

	rm.mu.Lock()
	rm.availableBytes = available
	rm.mu.Unlock()
}

func (rm *ResourceMonitor) sampleCPU() {
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(percentages) == 0 {
		log.Debug().Err(err).Msg("获取CPU使用率失败")
		return
	}

	rm.mu.Lock()
	rm.cpuUsage = percentages[0]
	rm.mu.Unlock()
}

// StopMonitoring 停止后台采样
func (rm *ResourceMonitor) StopMonitoring() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.isRunning && rm.cancelFunc != nil {
		rm.cancelFunc()
		rm.isRunning = false
		rm.cancelFunc = nil
	}
}

// CalculateMaxTabs 计算当前允许的最大标签页数
// 取内存可容纳数、CPU核数和配置上限中的最小值,至少为1。
func (rm *ResourceMonitor) CalculateMaxTabs() int {
	rm.mu.RLock()
	available := int64(rm.availableBytes)
	rm.mu.RUnlock()

	result := 1
	if surplus := available - rm.config.SafetyReserveMemory; surplus > 0 {
		result = int(surplus / rm.config.TabMemoryUsage)
	}
	if n := runtime.NumCPU(); n < result {
		result = n
	}
	if rm.config.MaxTabsLimit < result {
		result = rm.config.MaxTabsLimit
	}
	if result < 1 {
		result = 1
	}
	return result
}

// CheckResourceAvailability 检查当前资源是否允许再打开标签页
func (rm *ResourceMonitor) CheckResourceAvailability() (canCreate bool, reason string) {
	rm.mu.RLock()
	available := int64(rm.availableBytes)
	cpuUsage := rm.cpuUsage
	rm.mu.RUnlock()

	if available-rm.config.SafetyReserveMemory < rm.config.TabMemoryUsage {
		return false, fmt.Sprintf("内存不足(当前可用%dMB)", available/(1024*1024))
	}
	if rm.config.CPULoadThreshold < 200 && cpuUsage > float64(rm.config.CPULoadThreshold) {
		return false, fmt.Sprintf("CPU负载过高(当前%.1f%%)", cpuUsage)
	}
	return true, ""
}

// AvailableMemory 返回最近一次采样的可用内存(字节)
func (rm *ResourceMonitor) AvailableMemory() uint64 {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.availableBytes
}
