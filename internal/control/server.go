// Package control 提供本机 HTTP 控制接口
// 供浏览器扩展和第二个应用实例触发窗口操作，仅监听回环地址
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/net/netutil"

	"github.com/milhy545/page-assist/internal/utils"
	"github.com/milhy545/page-assist/internal/window"
)

// AppName 健康检查响应中的应用标识，第二实例用它确认端口上跑的是本应用
const AppName = "page-assist"

// WindowStatus 单个窗口的运行时状态
type WindowStatus struct {
	Name        string `json:"name"`
	Registered  bool   `json:"registered"`
	Visible     bool   `json:"visible"`
	AlwaysOnTop bool   `json:"always_on_top"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

// WindowGateway 控制接口需要的窗口操作集合
// 由应用层适配窗口管理器实现，便于测试替换
type WindowGateway interface {
	CreateFloating() error
	ToggleFloating() error
	ToggleMain() error
	ShowMain() error
	SetAlwaysOnTop(name string, enabled bool) error
	Windows(ctx context.Context) ([]WindowStatus, error)
}

// Options 控制接口配置
type Options struct {
	Host           string        // 监听地址，默认 127.0.0.1
	PreferredPort  int           // 首选端口，被占用时自动递增
	MaxAttempts    int           // 端口递增尝试次数
	AuthToken      string        // Bearer Token，空串表示不鉴权
	MaxConnections int           // 并发连接上限
	ShutdownWait   time.Duration // 优雅关闭等待时间
	Version        string        // 健康检查中回报的版本号
}

func (o *Options) setDefaults() {
	if o.Host == "" {
		o.Host = "127.0.0.1"
	}
	if o.PreferredPort <= 0 {
		o.PreferredPort = 8765
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 10
	}
	if o.MaxConnections <= 0 {
		o.MaxConnections = 32
	}
	if o.ShutdownWait <= 0 {
		o.ShutdownWait = 5 * time.Second
	}
}

// Server 本机控制接口服务器
type Server struct {
	opts    Options
	gateway WindowGateway
	logger  *slog.Logger
	portMgr *utils.PortManager

	engine *gin.Engine
	server *http.Server

	mu        sync.Mutex
	listener  net.Listener
	startedAt time.Time
	running   bool
}

// NewServer 创建控制接口服务器（尚未监听）
func NewServer(opts Options, gateway WindowGateway, logger *slog.Logger) *Server {
	opts.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	s := &Server{
		opts:    opts,
		gateway: gateway,
		logger:  logger,
		portMgr: utils.NewPortManager(opts.PreferredPort),
		engine:  engine,
	}

	engine.Use(gin.Recovery())
	engine.Use(s.requestIDMiddleware())
	engine.Use(s.accessLogMiddleware())

	s.registerRoutes()
	return s
}

// Start 绑定端口并开始服务
// 首选端口被占用时自动向后查找可用端口
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("控制接口已在运行")
	}

	listener, port, err := utils.FindAndBind(s.opts.Host, s.opts.PreferredPort, s.opts.MaxAttempts)
	if err != nil {
		return fmt.Errorf("控制接口绑定端口失败: %w", err)
	}
	s.portMgr.SetActualPort(port)

	// 限制并发连接数，避免异常客户端拖垮桌面应用
	limited := netutil.LimitListener(listener, s.opts.MaxConnections)

	s.listener = limited
	s.server = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.startedAt = time.Now()
	s.running = true

	go func() {
		if err := s.server.Serve(limited); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(fmt.Sprintf("❌ [控制接口] 服务异常退出: %v", err))
		}
	}()

	s.logger.Info(fmt.Sprintf("🌐 [控制接口] 已启动: http://%s:%d (鉴权: %v)",
		s.opts.Host, port, s.opts.AuthToken != ""))
	return nil
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	running := s.running
	s.running = false
	s.mu.Unlock()

	if !running || server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.opts.ShutdownWait)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(fmt.Sprintf("⚠️ [控制接口] 优雅关闭超时: %v", err))
		return err
	}

	s.logger.Info("🛑 [控制接口] 已停止")
	return nil
}

// Port 实际监听的端口（未启动时返回 0）
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return 0
	}
	return s.portMgr.GetPortInfo(s.opts.PreferredPort).ActualPort
}

// PortInfo 端口占用情况（供前端展示）
func (s *Server) PortInfo() utils.PortInfo {
	return s.portMgr.GetPortInfo(s.opts.PreferredPort)
}

// SetPreferredPort 更新首选端口记录（重启后生效，只影响状态展示）
func (s *Server) SetPreferredPort(port int) {
	s.portMgr.SetPreferredPort(port)
}

// registerRoutes 注册全部路由
func (s *Server) registerRoutes() {
	// 健康检查不鉴权，第二实例靠它识别已运行的实例
	s.engine.GET("/api/health", s.handleHealth)

	api := s.engine.Group("/api")
	api.Use(s.authMiddleware())
	{
		api.GET("/windows", s.handleListWindows)
		api.POST("/windows/main/toggle", s.handleToggleMain)
		api.POST("/windows/main/show", s.handleShowMain)
		api.POST("/windows/floating/toggle", s.handleToggleFloating)
		api.POST("/windows/floating", s.handleCreateFloating)
		api.PUT("/windows/:name/always-on-top", s.handleSetAlwaysOnTop)
	}
}

// requestIDMiddleware 为每个请求分配或透传 X-Request-ID
func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}

// accessLogMiddleware 访问日志
func (s *Server) accessLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Debug("🌐 [控制接口] 请求完成",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"request_id", c.GetString("request_id"),
		)
	}
}

// authMiddleware Bearer Token 鉴权（未配置 token 时直接放行）
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.opts.AuthToken == "" {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if auth == "" || token == auth || token != s.opts.AuthToken {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      "未授权",
				"request_id": c.GetString("request_id"),
			})
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	s.mu.Lock()
	uptime := time.Since(s.startedAt)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"app":     AppName,
		"version": s.opts.Version,
		"uptime":  uptime.Round(time.Second).String(),
	})
}

func (s *Server) handleListWindows(c *gin.Context) {
	states, err := s.gateway.Windows(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"windows": states})
}

func (s *Server) handleToggleMain(c *gin.Context) {
	if err := s.gateway.ToggleMain(); err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleShowMain(c *gin.Context) {
	if err := s.gateway.ShowMain(); err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleToggleFloating(c *gin.Context) {
	if err := s.gateway.ToggleFloating(); err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCreateFloating(c *gin.Context) {
	if err := s.gateway.CreateFloating(); err != nil {
		if errors.Is(err, window.ErrFloatingExists) {
			s.fail(c, http.StatusConflict, err)
			return
		}
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "created"})
}

type alwaysOnTopRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (s *Server) handleSetAlwaysOnTop(c *gin.Context) {
	var req alwaysOnTopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, fmt.Errorf("请求体格式错误: %w", err))
		return
	}

	name := c.Param("name")
	if err := s.gateway.SetAlwaysOnTop(name, *req.Enabled); err != nil {
		if errors.Is(err, window.ErrWindowNotFound) {
			s.fail(c, http.StatusNotFound, err)
			return
		}
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail 统一的错误响应
func (s *Server) fail(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{
		"error":      err.Error(),
		"request_id": c.GetString("request_id"),
	})
}
