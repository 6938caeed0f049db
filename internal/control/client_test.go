package control

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// splitHostPort 解析 httptest 服务器的监听地址
func splitHostPort(t *testing.T, url string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(url[len("http://"):])
	require.NoError(t, err, "解析测试服务器地址失败")
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func TestProbeRejectsForeignApp(t *testing.T) {
	// 端口上跑着别的应用：健康检查返回 200 但应用标识不同
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","app":"some-other-tool"}`))
	}))
	defer srv.Close()

	host, port := splitHostPort(t, srv.URL)
	assert.False(t, ProbeRunningInstance(context.Background(), host, port),
		"应用标识不符时不应识别为已运行实例")
}

func TestProbeRejectsNonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>router admin page</html>"))
	}))
	defer srv.Close()

	host, port := splitHostPort(t, srv.URL)
	assert.False(t, ProbeRunningInstance(context.Background(), host, port))
}

func TestProbeRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	host, port := splitHostPort(t, srv.URL)
	assert.False(t, ProbeRunningInstance(context.Background(), host, port))
}

func TestProbeClosedPort(t *testing.T) {
	// 先占住一个端口再释放，保证探测时端口空闲
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	assert.False(t, ProbeRunningInstance(context.Background(), "127.0.0.1", port))
}

func TestRequestShowMainReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	host, port := splitHostPort(t, srv.URL)
	err := RequestShowMain(context.Background(), host, port, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401", "错误信息应包含对端返回的状态码")
}

func TestRequestShowMainSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	host, port := splitHostPort(t, srv.URL)
	require.NoError(t, RequestShowMain(context.Background(), host, port, "tok-123"))
	assert.Equal(t, "Bearer tok-123", gotAuth)

	// 未配置令牌时不应携带 Authorization 头
	require.NoError(t, RequestShowMain(context.Background(), host, port, ""))
	assert.Empty(t, gotAuth)
}
