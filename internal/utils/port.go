// port.go - 控制接口端口管理
// 首选端口被占用时自动向后探测，并记录实际绑定结果供前端展示

package utils

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// PortManager 端口管理器
// 记录首选端口与实际绑定端口，供状态查询
type PortManager struct {
	mu sync.RWMutex

	preferredPort int
	actualPort    int
	wasOccupied   bool
}

// PortInfo 端口状态信息
type PortInfo struct {
	PreferredPort int  `json:"preferred_port"`
	ActualPort    int  `json:"actual_port"`
	IsDefault     bool `json:"is_default"`
	WasOccupied   bool `json:"was_occupied"`
}

// NewPortManager 创建端口管理器
func NewPortManager(preferred int) *PortManager {
	return &PortManager{preferredPort: preferred}
}

// SetPreferredPort 更新首选端口（热更新后下次启动生效）
func (pm *PortManager) SetPreferredPort(port int) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.preferredPort = port
}

// GetPreferredPort 获取首选端口
func (pm *PortManager) GetPreferredPort() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.preferredPort
}

// SetActualPort 记录实际绑定端口
func (pm *PortManager) SetActualPort(port int) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.actualPort = port
	pm.wasOccupied = port != pm.preferredPort
}

// GetPortInfo 获取端口状态快照
func (pm *PortManager) GetPortInfo(defaultPort int) PortInfo {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return PortInfo{
		PreferredPort: pm.preferredPort,
		ActualPort:    pm.actualPort,
		IsDefault:     pm.preferredPort == defaultPort,
		WasOccupied:   pm.wasOccupied,
	}
}

// IsPortAvailable 检测端口是否可绑定（仅本机回环）
func IsPortAvailable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}

// FindAndBind 从首选端口开始逐个尝试绑定，返回监听器与实际端口
// 最多尝试 maxAttempts 个端口；全部失败时返回最后一次错误
func FindAndBind(host string, preferred int, maxAttempts int) (net.Listener, int, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		port := preferred + i
		if port > 65535 {
			break
		}

		addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln, port, nil
		}
		lastErr = err

		// 避免在端口紧张时空转过快
		time.Sleep(10 * time.Millisecond)
	}

	return nil, 0, fmt.Errorf("端口绑定失败（从 %d 起尝试 %d 个）: %w", preferred, maxAttempts, lastErr)
}
