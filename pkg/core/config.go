package core

import (
	"fmt"
	"time"

	"dbxmirror/pkg/endpoint"
	"dbxmirror/pkg/mirror"
)

const defaultTimeout = 60 * time.Second

// Config 表示一次运行的配置，来自配置文件、环境变量与命令行参数
type Config struct {
	APIKey       string
	RefreshToken string
	AppKey       string
	AppSecret    string
	DownloadDir  string
	// ToDownload 为顶层目录白名单，为空表示全部镜像
	ToDownload  []string
	Workers     int
	Timeout     time.Duration
	LogFile     string
	LogLevel    string
	NoProgress  bool
	MetricsFile string
}

// ConfigLoadFailedError 表示配置缺失或格式错误，在任何遍历开始前即终止
type ConfigLoadFailedError struct {
	Path string
	Err  error
}

func (e *ConfigLoadFailedError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("加载配置失败: %v", e.Err)
	}
	return fmt.Sprintf("加载配置 %s 失败: %v", e.Path, e.Err)
}

func (e *ConfigLoadFailedError) Unwrap() error { return e.Err }

// Validate 进行基础校验并填充默认值
func (c *Config) Validate() error {
	if c.APIKey == "" && c.RefreshToken == "" {
		return &ConfigLoadFailedError{Err: fmt.Errorf("缺少 api_key 或 refresh_token")}
	}
	if c.RefreshToken != "" && c.AppKey == "" {
		return &ConfigLoadFailedError{Err: fmt.Errorf("使用 refresh_token 时必须提供 app_key")}
	}
	if c.DownloadDir == "" {
		return &ConfigLoadFailedError{Err: fmt.Errorf("缺少 dl_dir")}
	}
	if c.Workers <= 0 {
		c.Workers = mirror.DefaultWorkers
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return nil
}

// Filter 返回顶层目录过滤器
func (c *Config) Filter() endpoint.InclusionFilter {
	return endpoint.NewInclusionFilter(c.ToDownload...)
}

// DropboxConfig 构造远端客户端参数
func (c *Config) DropboxConfig() endpoint.DropboxConfig {
	return endpoint.DropboxConfig{
		AccessToken:  c.APIKey,
		RefreshToken: c.RefreshToken,
		AppKey:       c.AppKey,
		AppSecret:    c.AppSecret,
		Timeout:      c.Timeout,
	}
}
