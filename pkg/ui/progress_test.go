package ui

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortenPath(t *testing.T) {
	path := "/很长的目录/包含/很多/层级/以及/特殊/字符/测试/文件.txt"
	short := shortenPath(path, 20)
	assert.LessOrEqual(t, len([]rune(short)), 20)
	assert.NotEqual(t, path, short)
	assert.Contains(t, short, "...")

	orig := "/docs/a.txt"
	assert.Equal(t, orig, shortenPath(orig, 20))
}

func TestBarProgressConcurrentUpdates(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewBarProgress(buf)
	progress.Start("mirror")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			progress.FileDone("/docs/file.txt", 10, i%2 == 0)
		}(i)
	}
	wg.Wait()
	progress.Finish()

	assert.Contains(t, buf.String(), "mirror 4/8")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"), "finish must end the bar line: %q", buf.String())
}

func TestWrapWriterPassesThrough(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewBarProgress(buf)
	w := progress.WrapWriter(buf)
	_, err := w.Write([]byte("log line\n"))
	assert.NoError(t, err)
	assert.Equal(t, "log line\n", buf.String())

	var nilBar *BarProgress
	assert.Equal(t, buf, nilBar.WrapWriter(buf))
}
