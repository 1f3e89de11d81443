package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMirrorCounters(t *testing.T) {
	m := NewMirror()
	m.FileDone("downloaded", 100)
	m.FileDone("downloaded", 250)
	m.FileDone("skipped", 0)
	m.FolderListed()
	m.Failure("download")

	assert.Equal(t, float64(350), testutil.ToFloat64(m.bytes))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.files.WithLabelValues("downloaded")))
	assert.Equal(t, Summary{Downloaded: 2, Skipped: 1, Folders: 1, Failures: 1, Bytes: 350}, m.Summary())
}

func TestNilMirrorIsNoop(t *testing.T) {
	var m *Mirror
	m.FileDone("downloaded", 1)
	m.FolderListed()
	m.Failure("list")
	assert.Equal(t, Summary{}, m.Summary())
	assert.NoError(t, m.WriteTextfile("/nonexistent/file.prom"))
}

func TestWriteTextfile(t *testing.T) {
	m := NewMirror()
	m.FileDone("downloaded", 7)
	path := filepath.Join(t.TempDir(), "dbxmirror.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `dbxmirror_files_total{outcome="downloaded"} 1`)
	assert.Contains(t, string(data), "dbxmirror_downloaded_bytes_total 7")
}
