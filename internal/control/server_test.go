package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/milhy545/page-assist/internal/window"
)

// fakeGateway 记录调用的窗口网关
type fakeGateway struct {
	createCalls  int
	toggleMain   int
	toggleFloat  int
	showMain     int
	onTopName    string
	onTopEnabled bool

	createErr error
	onTopErr  error
	states    []WindowStatus
	statesErr error
}

func (f *fakeGateway) CreateFloating() error {
	f.createCalls++
	return f.createErr
}

func (f *fakeGateway) ToggleFloating() error {
	f.toggleFloat++
	return nil
}

func (f *fakeGateway) ToggleMain() error {
	f.toggleMain++
	return nil
}

func (f *fakeGateway) ShowMain() error {
	f.showMain++
	return nil
}

func (f *fakeGateway) SetAlwaysOnTop(name string, enabled bool) error {
	if f.onTopErr != nil {
		return f.onTopErr
	}
	f.onTopName = name
	f.onTopEnabled = enabled
	return nil
}

func (f *fakeGateway) Windows(ctx context.Context) ([]WindowStatus, error) {
	return f.states, f.statesErr
}

func newTestServer(t *testing.T, token string) (*Server, *fakeGateway) {
	t.Helper()
	gw := &fakeGateway{}
	s := NewServer(Options{AuthToken: token, Version: "test"}, gw, nil)
	return s, gw
}

func perform(s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("响应不是合法 JSON: %v, body=%s", err, w.Body.String())
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t, "secret")

	// 健康检查不需要鉴权
	w := perform(s, http.MethodGet, "/api/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("健康检查状态码错误: got %d", w.Code)
	}
	body := decodeJSON(t, w)
	if body["app"] != AppName {
		t.Fatalf("应用标识错误: got %v", body["app"])
	}
	if body["status"] != "ok" {
		t.Fatalf("状态字段错误: got %v", body["status"])
	}
}

func TestRequestIDHeader(t *testing.T) {
	s, _ := newTestServer(t, "")

	w := perform(s, http.MethodGet, "/api/health", "", nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("应自动生成 X-Request-ID")
	}

	w = perform(s, http.MethodGet, "/api/health", "", map[string]string{"X-Request-ID": "req-123"})
	if got := w.Header().Get("X-Request-ID"); got != "req-123" {
		t.Fatalf("客户端提供的请求 ID 应被透传: got %q", got)
	}
}

func TestToggleRoutes(t *testing.T) {
	s, gw := newTestServer(t, "")

	if w := perform(s, http.MethodPost, "/api/windows/main/toggle", "", nil); w.Code != http.StatusOK {
		t.Fatalf("主窗口切换状态码错误: got %d", w.Code)
	}
	if w := perform(s, http.MethodPost, "/api/windows/floating/toggle", "", nil); w.Code != http.StatusOK {
		t.Fatalf("悬浮窗切换状态码错误: got %d", w.Code)
	}
	if w := perform(s, http.MethodPost, "/api/windows/main/show", "", nil); w.Code != http.StatusOK {
		t.Fatalf("显示主窗口状态码错误: got %d", w.Code)
	}

	if gw.toggleMain != 1 || gw.toggleFloat != 1 || gw.showMain != 1 {
		t.Fatalf("网关调用次数错误: main=%d float=%d show=%d", gw.toggleMain, gw.toggleFloat, gw.showMain)
	}
}

func TestCreateFloating(t *testing.T) {
	s, gw := newTestServer(t, "")

	if w := perform(s, http.MethodPost, "/api/windows/floating", "", nil); w.Code != http.StatusCreated {
		t.Fatalf("创建悬浮窗状态码错误: got %d", w.Code)
	}

	// 已存在时返回 409
	gw.createErr = window.ErrFloatingExists
	w := perform(s, http.MethodPost, "/api/windows/floating", "", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("重复创建应返回 409: got %d", w.Code)
	}
	body := decodeJSON(t, w)
	if body["error"] != "Floating window already exists" {
		t.Fatalf("错误消息不符: got %v", body["error"])
	}

	// 其他错误返回 500
	gw.createErr = fmt.Errorf("Failed to create floating window: webview init failed")
	if w := perform(s, http.MethodPost, "/api/windows/floating", "", nil); w.Code != http.StatusInternalServerError {
		t.Fatalf("创建失败应返回 500: got %d", w.Code)
	}
}

func TestSetAlwaysOnTop(t *testing.T) {
	s, gw := newTestServer(t, "")

	w := perform(s, http.MethodPut, "/api/windows/floating/always-on-top",
		`{"enabled": true}`, map[string]string{"Content-Type": "application/json"})
	if w.Code != http.StatusOK {
		t.Fatalf("设置置顶状态码错误: got %d, body=%s", w.Code, w.Body.String())
	}
	if gw.onTopName != "floating" || !gw.onTopEnabled {
		t.Fatalf("网关参数错误: name=%q enabled=%v", gw.onTopName, gw.onTopEnabled)
	}

	// enabled=false 也是合法请求体
	w = perform(s, http.MethodPut, "/api/windows/floating/always-on-top",
		`{"enabled": false}`, map[string]string{"Content-Type": "application/json"})
	if w.Code != http.StatusOK || gw.onTopEnabled {
		t.Fatalf("取消置顶失败: code=%d enabled=%v", w.Code, gw.onTopEnabled)
	}

	// 缺少 enabled 字段返回 400
	w = perform(s, http.MethodPut, "/api/windows/floating/always-on-top",
		`{}`, map[string]string{"Content-Type": "application/json"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("缺少字段应返回 400: got %d", w.Code)
	}

	// 未注册窗口返回 404
	gw.onTopErr = fmt.Errorf("%w: ghost", window.ErrWindowNotFound)
	w = perform(s, http.MethodPut, "/api/windows/ghost/always-on-top",
		`{"enabled": true}`, map[string]string{"Content-Type": "application/json"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("未知窗口应返回 404: got %d", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	s, gw := newTestServer(t, "secret")

	// 无令牌
	if w := perform(s, http.MethodPost, "/api/windows/main/toggle", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("无令牌应返回 401: got %d", w.Code)
	}
	// 错误令牌
	w := perform(s, http.MethodPost, "/api/windows/main/toggle", "",
		map[string]string{"Authorization": "Bearer wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("错误令牌应返回 401: got %d", w.Code)
	}
	if gw.toggleMain != 0 {
		t.Fatalf("鉴权失败不应触发窗口操作")
	}

	// 正确令牌
	w = perform(s, http.MethodPost, "/api/windows/main/toggle", "",
		map[string]string{"Authorization": "Bearer secret"})
	if w.Code != http.StatusOK || gw.toggleMain != 1 {
		t.Fatalf("正确令牌应放行: code=%d calls=%d", w.Code, gw.toggleMain)
	}
}

func TestListWindows(t *testing.T) {
	s, gw := newTestServer(t, "")
	gw.states = []WindowStatus{
		{Name: "floating", Registered: true, Visible: true, AlwaysOnTop: true, Width: 400, Height: 600},
		{Name: "main", Registered: true, Visible: false},
	}

	w := perform(s, http.MethodGet, "/api/windows", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("状态码错误: got %d", w.Code)
	}

	var body struct {
		Windows []WindowStatus `json:"windows"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if len(body.Windows) != 2 || body.Windows[0].Name != "floating" {
		t.Fatalf("窗口列表错误: %+v", body.Windows)
	}
}

func TestServerLifecycleAndInstanceSignal(t *testing.T) {
	gw := &fakeGateway{}
	s := NewServer(Options{PreferredPort: 38765, MaxAttempts: 20, AuthToken: "secret"}, gw, nil)

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("启动控制接口失败: %v", err)
	}
	port := s.Port()
	if port == 0 {
		t.Fatalf("启动后应有实际端口")
	}

	// 第二实例流程: 探测 -> 通知显示主窗口 -> 退出
	if !ProbeRunningInstance(ctx, "127.0.0.1", port) {
		t.Fatalf("探测已运行实例失败")
	}
	if err := RequestShowMain(ctx, "127.0.0.1", port, "secret"); err != nil {
		t.Fatalf("通知显示主窗口失败: %v", err)
	}
	if gw.showMain != 1 {
		t.Fatalf("ShowMain 未被调用: %d", gw.showMain)
	}

	// 令牌错误时应被拒绝
	if err := RequestShowMain(ctx, "127.0.0.1", port, "wrong"); err == nil {
		t.Fatalf("错误令牌应被拒绝")
	}

	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("关闭控制接口失败: %v", err)
	}
	if ProbeRunningInstance(ctx, "127.0.0.1", port) {
		t.Fatalf("关闭后探测应失败")
	}
}
