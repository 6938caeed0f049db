package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// healthResponse 健康检查响应（只解析识别实例所需字段）
type healthResponse struct {
	Status string `json:"status"`
	App    string `json:"app"`
}

// ProbeRunningInstance 探测端口上是否已有本应用实例在运行
// 端口空闲、超时或应答方不是本应用时返回 false
func ProbeRunningInstance(ctx context.Context, host string, port int) bool {
	client := &http.Client{Timeout: 2 * time.Second}

	url := fmt.Sprintf("http://%s:%d/api/health", host, port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false
	}
	return health.App == AppName
}

// RequestShowMain 请求已运行的实例显示主窗口
// 第二个实例启动时调用，随后自行退出
func RequestShowMain(ctx context.Context, host string, port int, token string) error {
	client := &http.Client{Timeout: 3 * time.Second}

	url := fmt.Sprintf("http://%s:%d/api/windows/main/show", host, port)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("通知已运行实例失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("已运行实例返回异常状态: %d", resp.StatusCode)
	}
	return nil
}
