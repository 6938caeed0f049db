package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogEntry 推送到前端的日志条目
type LogEntry struct {
	Time    string `json:"time"`    // RFC3339 毫秒精度
	Level   string `json:"level"`   // DEBUG/INFO/WARN/ERROR
	Message string `json:"message"` // 已格式化的消息（含附加字段）
}

// broadcastState 广播共享状态
// WithAttrs/WithGroup 派生的 handler 共享同一份环形缓冲与发射器
type broadcastState struct {
	mu      sync.Mutex
	emitter *EventEmitter
	recent  []LogEntry
	maxKeep int
}

// BroadcastHandler 日志广播 handler
// 包装主 handler（文件+控制台），同时保留最近日志并推送到前端
type BroadcastHandler struct {
	inner slog.Handler
	state *broadcastState
	attrs []slog.Attr
	group string
}

// NewBroadcastHandler 创建广播 handler
// maxKeep 为内存中保留的最近日志条数（供前端首次加载）
func NewBroadcastHandler(inner slog.Handler, maxKeep int) *BroadcastHandler {
	if maxKeep <= 0 {
		maxKeep = 500
	}
	return &BroadcastHandler{
		inner: inner,
		state: &broadcastState{maxKeep: maxKeep},
	}
}

// SetEmitter 绑定事件发射器（宿主就绪后调用）
func (h *BroadcastHandler) SetEmitter(emitter *EventEmitter) {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	h.state.emitter = emitter
}

// Recent 返回最近日志快照（时间顺序）
func (h *BroadcastHandler) Recent() []LogEntry {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	out := make([]LogEntry, len(h.state.recent))
	copy(out, h.state.recent)
	return out
}

// Enabled 委托给主 handler
func (h *BroadcastHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle 先写主 handler，再广播
func (h *BroadcastHandler) Handle(ctx context.Context, r slog.Record) error {
	err := h.inner.Handle(ctx, r)

	entry := LogEntry{
		Time:    r.Time.Format(time.RFC3339Nano),
		Level:   levelString(r.Level),
		Message: h.formatMessage(r),
	}

	h.state.mu.Lock()
	h.state.recent = append(h.state.recent, entry)
	if len(h.state.recent) > h.state.maxKeep {
		// 只保留尾部 maxKeep 条
		h.state.recent = h.state.recent[len(h.state.recent)-h.state.maxKeep:]
	}
	emitter := h.state.emitter
	h.state.mu.Unlock()

	if emitter != nil {
		emitter.Emit(entry)
	}

	return err
}

// WithAttrs 派生带固定字段的 handler（共享广播状态）
func (h *BroadcastHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)
	return &BroadcastHandler{
		inner: h.inner.WithAttrs(attrs),
		state: h.state,
		attrs: newAttrs,
		group: h.group,
	}
}

// WithGroup 派生带分组的 handler（共享广播状态）
func (h *BroadcastHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &BroadcastHandler{
		inner: h.inner.WithGroup(name),
		state: h.state,
		attrs: h.attrs,
		group: group,
	}
}

// formatMessage 将消息与附加字段拼成单行文本
func (h *BroadcastHandler) formatMessage(r slog.Record) string {
	var sb strings.Builder
	sb.WriteString(r.Message)

	appendAttr := func(a slog.Attr) {
		if a.Key == "" {
			return
		}
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		sb.WriteString(" ")
		sb.WriteString(key)
		sb.WriteString("=")
		sb.WriteString(fmt.Sprintf("%v", a.Value.Any()))
	}

	for _, a := range h.attrs {
		appendAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(a)
		return true
	})

	return sb.String()
}

// levelString slog 级别转前端标签
func levelString(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
