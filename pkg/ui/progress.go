package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Progress 定义镜像过程中的进度更新接口，需支持多个 worker 并发调用
type Progress interface {
	Start(desc string)
	FileDone(path string, size int64, downloaded bool)
	Finish()
}

// BarProgress 基于 progressbar 的单行进度显示，并与日志输出互斥。
// 远端树的总量事先未知，因此以 spinner + 已下载字节数展示
type BarProgress struct {
	mu         sync.Mutex
	writer     io.Writer
	bar        *progressbar.ProgressBar
	desc       string
	files      int
	downloaded int
}

const maxDescLen = 40

// NewBarProgress 创建进度条实例
func NewBarProgress(writer io.Writer) *BarProgress {
	return &BarProgress{writer: writer}
}

func (p *BarProgress) Start(desc string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.desc = desc
	p.files = 0
	p.downloaded = 0
	p.bar = progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(p.writer)
		}),
	)
}

func (p *BarProgress) FileDone(path string, size int64, downloaded bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		return
	}
	p.files++
	if downloaded {
		p.downloaded++
		_ = p.bar.Add64(size)
	}
	p.bar.Describe(fmt.Sprintf("%s %d/%d %s", p.desc, p.downloaded, p.files, shortenPath(path, maxDescLen)))
}

func (p *BarProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		return
	}
	p.bar.Describe(fmt.Sprintf("%s %d/%d", p.desc, p.downloaded, p.files))
	_ = p.bar.Finish()
	p.bar = nil
}

// WrapWriter 返回一个 writer，保证日志输出前清除进度条，结束后重新绘制
func (p *BarProgress) WrapWriter(w io.Writer) io.Writer {
	if p == nil {
		return w
	}
	return &progressAwareWriter{
		progress: p,
		writer:   w,
	}
}

// NoopProgress 在 --no-progress 下使用
type NoopProgress struct{}

func (n NoopProgress) Start(desc string)                                 {}
func (n NoopProgress) FileDone(path string, size int64, downloaded bool) {}
func (n NoopProgress) Finish()                                           {}

type progressAwareWriter struct {
	progress *BarProgress
	writer   io.Writer
}

func (pw *progressAwareWriter) Write(b []byte) (int, error) {
	pw.progress.mu.Lock()
	defer pw.progress.mu.Unlock()
	bar := pw.progress.bar
	if bar != nil {
		_ = bar.Clear()
	}
	n, err := pw.writer.Write(b)
	if bar != nil {
		_ = bar.RenderBlank()
	}
	return n, err
}

func shortenPath(path string, maxLen int) string {
	clean := strings.NewReplacer("\n", " ", "\r", " ").Replace(path)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	keep := maxLen - 3
	head := keep / 2
	tail := keep - head
	return string(runes[:head]) + "..." + string(runes[len(runes)-tail:])
}
