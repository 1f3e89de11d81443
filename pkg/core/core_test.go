package core

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbxmirror/pkg/endpoint"
	"dbxmirror/pkg/endpoint/endpointtest"
	"dbxmirror/pkg/logging"
	"dbxmirror/pkg/transfer"
	"dbxmirror/pkg/ui"
)

func newTestSession(t *testing.T, remote endpoint.RemoteClient, cfg *Config) (*Session, afero.Fs, *bytes.Buffer) {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.APIKey = "test"
	cfg.DownloadDir = "/dl"
	require.NoError(t, cfg.Validate())
	afs := afero.NewMemMapFs()
	out := &bytes.Buffer{}
	return &Session{
		Config:   cfg,
		Logger:   logging.Discard(),
		Remote:   remote,
		Local:    endpoint.NewLocalFSWith(afs, cfg.DownloadDir),
		Progress: ui.NoopProgress{},
		Out:      out,
	}, afs, out
}

func sampleTree() *endpointtest.MemoryClient {
	remote := endpointtest.NewMemoryClient()
	remote.AddFile("/Docs/Report.PDF", []byte("report"))
	remote.AddFile("/docs/notes/todo.txt", []byte("todo"))
	remote.AddFile("/photos/cat.jpg", []byte("meow!"))
	remote.AddFile("/readme.md", []byte("hi"))
	return remote
}

func TestRunMirror(t *testing.T) {
	remote := sampleTree()
	metricsFile := filepath.Join(t.TempDir(), "dbxmirror.prom")
	s, afs, _ := newTestSession(t, remote, &Config{MetricsFile: metricsFile})

	require.NoError(t, RunMirror(context.Background(), s))

	data, err := afero.ReadFile(afs, "/dl/docs/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "report", string(data))
	for _, p := range []string{"/dl/docs/notes/todo.txt", "/dl/photos/cat.jpg", "/dl/readme.md"} {
		ok, err := afero.Exists(afs, p)
		require.NoError(t, err)
		assert.True(t, ok, p)
	}

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `dbxmirror_files_total{outcome="downloaded"} 4`)

	// 再次运行不应产生任何下载
	before := remote.Downloads.Load()
	require.NoError(t, RunMirror(context.Background(), s))
	assert.Equal(t, before, remote.Downloads.Load())
}

func TestRunMirrorFilter(t *testing.T) {
	remote := sampleTree()
	s, afs, _ := newTestSession(t, remote, &Config{ToDownload: []string{"docs"}})

	require.NoError(t, RunMirror(context.Background(), s))

	ok, _ := afero.Exists(afs, "/dl/docs/notes/todo.txt")
	assert.True(t, ok)
	ok, _ = afero.Exists(afs, "/dl/photos/cat.jpg")
	assert.False(t, ok)
	ok, _ = afero.Exists(afs, "/dl/readme.md")
	assert.False(t, ok, "根目录下的文件同样受白名单限制")
}

func TestRunMirrorReportsFailures(t *testing.T) {
	remote := sampleTree()
	remote.FailDownload("/photos/cat.jpg", errors.New("boom"))
	s, afs, _ := newTestSession(t, remote, nil)

	err := RunMirror(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 个错误")
	var dlErr *transfer.DownloadFailedError
	require.True(t, errors.As(err, &dlErr))
	assert.Equal(t, "/photos/cat.jpg", dlErr.Path)

	ok, _ := afero.Exists(afs, "/dl/docs/report.pdf")
	assert.True(t, ok, "失败不影响其余文件")
}

func TestRunUsage(t *testing.T) {
	s, _, out := newTestSession(t, sampleTree(), nil)

	require.NoError(t, RunUsage(context.Background(), s, "/"))
	assert.Equal(t, ": 17 bytes (0.00 GB)\n", out.String())

	out.Reset()
	require.NoError(t, RunUsage(context.Background(), s, "/docs/"))
	assert.Equal(t, "/docs: 10 bytes (0.00 GB)\n", out.String())
}

func TestRunList(t *testing.T) {
	remote := sampleTree()
	remote.AddFolder("/empty")
	s, _, out := newTestSession(t, remote, nil)

	require.NoError(t, RunList(context.Background(), s, "docs"))
	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `Listing path "/docs"...`, lines[0])
	assert.True(t, strings.HasSuffix(lines[1], " /docs/notes"), lines[1])
	assert.True(t, strings.HasSuffix(lines[2], " /docs/report.pdf"), lines[2])

	out.Reset()
	require.NoError(t, RunList(context.Background(), s, "/empty"))
	assert.Equal(t, "Listing path \"/empty\"...\n", out.String())

	out.Reset()
	require.Error(t, RunList(context.Background(), s, "/missing"))
	assert.Empty(t, out.String())
}

func TestNormalizeRemotePath(t *testing.T) {
	assert.Equal(t, "", NormalizeRemotePath("/"))
	assert.Equal(t, "", NormalizeRemotePath("  "))
	assert.Equal(t, "/a/b", NormalizeRemotePath("a/b/"))
	assert.Equal(t, "/a", NormalizeRemotePath("/a"))
}
