package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvAPIKey, EnvDLDir, EnvToDL} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadConfigINI(t *testing.T) {
	clearEnv(t)
	p := writeFile(t, "dbxmirror.ini", `[main]
api_key = sl.token
dl_dir = /srv/dropbox
to_dl = Photos, docs ,,
workers = 4
timeout = 30
`)
	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, "sl.token", cfg.APIKey)
	assert.Equal(t, "/srv/dropbox", cfg.DownloadDir)
	assert.Equal(t, []string{"Photos", "docs"}, cfg.ToDownload)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestLoadConfigYAML(t *testing.T) {
	clearEnv(t)
	p := writeFile(t, "dbxmirror.yaml", `
refresh_token: r-token
app_key: k
app_secret: s
dl_dir: /data
timeout: 2m
`)
	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, "r-token", cfg.RefreshToken)
	assert.Equal(t, "k", cfg.AppKey)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.Empty(t, cfg.ToDownload)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8, cfg.Workers)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	clearEnv(t)
	p := writeFile(t, "dbxmirror.ini", "[main]\napi_key = file\ndl_dir = /file\nto_dl = a\n")
	t.Setenv(EnvAPIKey, "env")
	t.Setenv(EnvDLDir, "/env")
	t.Setenv(EnvToDL, "")

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, "env", cfg.APIKey)
	assert.Equal(t, "/env", cfg.DownloadDir)
	assert.Empty(t, cfg.ToDownload, "显式设置为空的 DBXMIRROR_TO_DL 会关闭过滤")
}

func TestLoadConfigFailures(t *testing.T) {
	clearEnv(t)
	cases := map[string]string{
		"missing":     filepath.Join(t.TempDir(), "nope.ini"),
		"no section":  writeFile(t, "a.ini", "api_key = x\n"),
		"bad timeout": writeFile(t, "b.ini", "[main]\napi_key = x\ntimeout = soon\n"),
		"bad yaml":    writeFile(t, "c.yaml", "api_key: [\n"),
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(p)
			var cfgErr *ConfigLoadFailedError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
		})
	}
}

func TestValidate(t *testing.T) {
	var cfgErr *ConfigLoadFailedError

	err := (&Config{DownloadDir: "/x"}).Validate()
	assert.True(t, errors.As(err, &cfgErr))

	err = (&Config{RefreshToken: "r", DownloadDir: "/x"}).Validate()
	assert.True(t, errors.As(err, &cfgErr))

	err = (&Config{APIKey: "k"}).Validate()
	assert.True(t, errors.As(err, &cfgErr))

	cfg := &Config{APIKey: "k", DownloadDir: "/x", Workers: -1}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, defaultTimeout, cfg.Timeout)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParseTimeout(t *testing.T) {
	d, err := parseTimeout("")
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = parseTimeout("45")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, d)

	d, err = parseTimeout("1m30s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)
}
