package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Logger 包装 slog.Logger，方便统一关闭资源
type Logger struct {
	*slog.Logger
	RunID   string
	closers []io.Closer
}

// New 创建 Logger，输出到给定 writer，每条日志都带有本次运行的 run 标识
func New(level string, writers ...io.Writer) (*Logger, error) {
	if len(writers) == 0 {
		return nil, fmt.Errorf("必须提供至少一个日志输出")
	}
	var closerList []io.Closer
	var output io.Writer
	if len(writers) == 1 {
		output = writers[0]
	} else {
		output = io.MultiWriter(writers...)
	}
	for _, w := range writers {
		if c, ok := w.(io.Closer); ok && w != os.Stdout && w != os.Stderr {
			closerList = append(closerList, c)
		}
	}
	handler := slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	runID := uuid.NewString()
	return &Logger{
		Logger:  slog.New(handler).With("run", runID[:8]),
		RunID:   runID,
		closers: closerList,
	}, nil
}

// Discard 返回丢弃所有输出的 Logger，测试中使用
func Discard() *Logger {
	l, _ := New("error", io.Discard)
	return l
}

// OpenFile 以追加模式打开日志文件，必要时创建父目录
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// Close 关闭所有 writer
func (l *Logger) Close() error {
	var lastErr error
	for _, c := range l.closers {
		if err := c.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func parseLevel(level string) slog.Leveler {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
