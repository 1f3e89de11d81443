package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"gopkg.in/ini.v1"
)

// DefaultConfigPath 是默认配置文件位置
const DefaultConfigPath = "~/.dbxmirror.ini"

// 环境变量覆盖配置文件中的同名设置
const (
	EnvAPIKey = "DBXMIRROR_API_KEY"
	EnvDLDir  = "DBXMIRROR_DL_DIR"
	EnvToDL   = "DBXMIRROR_TO_DL"
)

// settings 对应配置文件 [main] 段中的键
type settings struct {
	APIKey       string `json:"api_key"`
	RefreshToken string `json:"refresh_token"`
	AppKey       string `json:"app_key"`
	AppSecret    string `json:"app_secret"`
	DLDir        string `json:"dl_dir"`
	ToDL         string `json:"to_dl"`
	Workers      int    `json:"workers"`
	Timeout      string `json:"timeout"`
}

// homedirExpand 在测试中可被替换
var homedirExpand = homedir.Expand

// LoadConfig 读取配置文件并应用环境变量覆盖。
// .ini 文件使用 [main] 段；.yaml/.yml/.json 使用同名顶层键
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}
	expanded, err := homedirExpand(path)
	if err != nil {
		return nil, &ConfigLoadFailedError{Path: path, Err: err}
	}
	var s settings
	switch strings.ToLower(filepath.Ext(expanded)) {
	case ".yaml", ".yml", ".json":
		s, err = parseYAML(expanded)
	default:
		s, err = parseINI(expanded)
	}
	if err != nil {
		return nil, &ConfigLoadFailedError{Path: expanded, Err: err}
	}
	applyEnv(&s)

	cfg, err := s.toConfig()
	if err != nil {
		return nil, &ConfigLoadFailedError{Path: expanded, Err: err}
	}
	return cfg, nil
}

func parseINI(path string) (settings, error) {
	f, err := ini.Load(path)
	if err != nil {
		return settings{}, err
	}
	if !f.HasSection("main") {
		return settings{}, fmt.Errorf("缺少 [main] 段")
	}
	sec := f.Section("main")
	return settings{
		APIKey:       sec.Key("api_key").String(),
		RefreshToken: sec.Key("refresh_token").String(),
		AppKey:       sec.Key("app_key").String(),
		AppSecret:    sec.Key("app_secret").String(),
		DLDir:        sec.Key("dl_dir").String(),
		ToDL:         sec.Key("to_dl").String(),
		Workers:      sec.Key("workers").MustInt(0),
		Timeout:      sec.Key("timeout").String(),
	}, nil
}

func parseYAML(path string) (settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return settings{}, err
	}
	var s settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return settings{}, err
	}
	return s, nil
}

func applyEnv(s *settings) {
	if v := os.Getenv(EnvAPIKey); v != "" {
		s.APIKey = v
	}
	if v := os.Getenv(EnvDLDir); v != "" {
		s.DLDir = v
	}
	if v, ok := os.LookupEnv(EnvToDL); ok {
		s.ToDL = v
	}
}

func (s settings) toConfig() (*Config, error) {
	dlDir, err := homedirExpand(s.DLDir)
	if err != nil {
		return nil, fmt.Errorf("展开 dl_dir: %w", err)
	}
	timeout, err := parseTimeout(s.Timeout)
	if err != nil {
		return nil, err
	}
	return &Config{
		APIKey:       s.APIKey,
		RefreshToken: s.RefreshToken,
		AppKey:       s.AppKey,
		AppSecret:    s.AppSecret,
		DownloadDir:  dlDir,
		ToDownload:   splitList(s.ToDL),
		Workers:      s.Workers,
		Timeout:      timeout,
	}, nil
}

// parseTimeout 支持 "30s" 形式或纯秒数
func parseTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("timeout 格式非法: %q", raw)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
