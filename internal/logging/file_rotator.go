package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
)

// FileRotator 按大小轮转的日志文件写入器
// 超过 maxSize 时把当前文件改名为 <path>.<时间戳>，重新打开新文件；
// 轮转出的历史文件可选用 brotli 压缩，并按 maxFiles 清理最旧的
type FileRotator struct {
	mu sync.Mutex

	path     string
	maxSize  int64
	maxFiles int
	compress bool

	file *os.File
	size int64
}

// NewFileRotator 创建日志轮转器
// maxSize <= 0 时使用 100MB；maxFiles <= 0 时保留 5 个历史文件
func NewFileRotator(path string, maxSize int64, maxFiles int, compress bool) (*FileRotator, error) {
	if maxSize <= 0 {
		maxSize = 100 * 1024 * 1024
	}
	if maxFiles <= 0 {
		maxFiles = 5
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %w", err)
	}

	r := &FileRotator{
		path:     path,
		maxSize:  maxSize,
		maxFiles: maxFiles,
		compress: compress,
	}

	if err := r.open(); err != nil {
		return nil, err
	}

	return r, nil
}

// Write 实现 io.Writer
func (r *FileRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.open(); err != nil {
			return 0, err
		}
	}

	if r.size+int64(len(p)) > r.maxSize {
		if err := r.rotate(); err != nil {
			// 轮转失败继续写当前文件，日志不能丢
			fmt.Fprintf(os.Stderr, "日志轮转失败: %v\n", err)
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// Close 关闭当前日志文件
func (r *FileRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func (r *FileRotator) open() error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("打开日志文件失败: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("读取日志文件信息失败: %w", err)
	}

	r.file = f
	r.size = info.Size()
	return nil
}

// rotate 调用方需持有 r.mu
func (r *FileRotator) rotate() error {
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}

	rotated := fmt.Sprintf("%s.%s", r.path, time.Now().Format("20060102-150405"))
	for i := 1; ; i++ {
		if _, err := os.Stat(rotated); os.IsNotExist(err) {
			break
		}
		rotated = fmt.Sprintf("%s.%s.%d", r.path, time.Now().Format("20060102-150405"), i)
	}

	if err := os.Rename(r.path, rotated); err != nil {
		// 改名失败时重新打开原文件继续写
		openErr := r.open()
		if openErr != nil {
			return fmt.Errorf("轮转改名失败且无法重新打开: %v / %w", err, openErr)
		}
		return fmt.Errorf("轮转改名失败: %w", err)
	}

	// 压缩与清理放后台做，不阻塞日志写入
	compress := r.compress
	go func() {
		if compress {
			compressRotatedFile(rotated)
		}
		pruneRotatedFiles(r.path, r.maxFiles)
	}()

	return r.open()
}

// compressRotatedFile 把轮转文件压缩为 .br 并删除原文件（失败则保留原文件）
func compressRotatedFile(path string) {
	src, err := os.Open(path)
	if err != nil {
		return
	}
	defer src.Close()

	dst, err := os.OpenFile(path+".br", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return
	}

	bw := brotli.NewWriterLevel(dst, brotli.DefaultCompression)
	_, copyErr := io.Copy(bw, src)
	closeErr := bw.Close()
	dst.Close()

	if copyErr != nil || closeErr != nil {
		os.Remove(path + ".br")
		return
	}

	os.Remove(path)
}

// pruneRotatedFiles 按修改时间保留最新的 maxFiles 个历史文件
func pruneRotatedFiles(basePath string, maxFiles int) {
	matches, err := filepath.Glob(basePath + ".*")
	if err != nil || len(matches) <= maxFiles {
		return
	}

	type rotatedFile struct {
		path    string
		modTime time.Time
	}

	files := make([]rotatedFile, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, rotatedFile{path: m, modTime: info.ModTime()})
	}

	if len(files) <= maxFiles {
		return
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})

	for _, f := range files[maxFiles:] {
		os.Remove(f.path)
	}
}

// ParseSize 解析人类可读的大小（"100MB"、"1GB"、"512KB"、"1024"）
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0, fmt.Errorf("大小不能为空")
	}

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		s = strings.TrimSuffix(s, "B")
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("无法解析大小 %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("大小不能为负数: %d", n)
	}

	return n * multiplier, nil
}
