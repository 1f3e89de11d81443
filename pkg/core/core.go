package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/multierr"

	"dbxmirror/pkg/endpoint"
	"dbxmirror/pkg/logging"
	"dbxmirror/pkg/metrics"
	"dbxmirror/pkg/mirror"
	"dbxmirror/pkg/report"
	"dbxmirror/pkg/transfer"
	"dbxmirror/pkg/ui"
)

// Session 持有一次命令运行共享的依赖，由 Open 构造一次后显式传递
type Session struct {
	Config   *Config
	Logger   *logging.Logger
	Remote   endpoint.RemoteClient
	Local    endpoint.FileSystem
	Progress ui.Progress
	// Out 接收 usage / list 的结果输出；日志和进度条写入 Open 的 errOut
	Out io.Writer
}

// Open 校验配置并创建日志、进度条与远端客户端。showProgress 仅对 mirror 有意义
func Open(ctx context.Context, cfg *Config, out, errOut io.Writer, showProgress bool) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var progress ui.Progress = ui.NoopProgress{}
	logOut := errOut
	if showProgress && !cfg.NoProgress {
		bar := ui.NewBarProgress(errOut)
		progress = bar
		logOut = bar.WrapWriter(errOut)
	}
	writers := []io.Writer{logOut}
	if cfg.LogFile != "" {
		f, err := logging.OpenFile(cfg.LogFile)
		if err != nil {
			return nil, fmt.Errorf("打开日志文件失败: %w", err)
		}
		writers = append(writers, f)
	}
	logger, err := logging.New(cfg.LogLevel, writers...)
	if err != nil {
		return nil, err
	}
	remote, err := endpoint.NewDropboxClient(ctx, cfg.DropboxConfig())
	if err != nil {
		logger.Close()
		return nil, err
	}
	return &Session{
		Config:   cfg,
		Logger:   logger,
		Remote:   remote,
		Local:    endpoint.NewLocalFS(cfg.DownloadDir),
		Progress: progress,
		Out:      out,
	}, nil
}

// Close 释放日志输出
func (s *Session) Close() error {
	return s.Logger.Close()
}

// RunMirror 以 worker 池镜像整个账户（受顶层白名单限制）
func RunMirror(ctx context.Context, s *Session) error {
	m := metrics.NewMirror()
	filter := s.Config.Filter()
	engine := &mirror.Engine{
		Remote: s.Remote,
		Materializer: &transfer.Materializer{
			Remote:   s.Remote,
			Local:    s.Local,
			Logger:   s.Logger.Logger,
			Progress: s.Progress,
			Metrics:  m,
		},
		Filter:  filter,
		Logger:  s.Logger.Logger,
		Metrics: m,
		Workers: s.Config.Workers,
	}
	s.Logger.Info("开始镜像", "dl_dir", s.Local.Root(), "workers", s.Config.Workers, "to_dl", strings.Join(filter.Names(), ","))

	s.Progress.Start("mirror")
	err := engine.Mirror(ctx, endpoint.RootPath)
	s.Progress.Finish()

	sum := m.Summary()
	s.Logger.Info("镜像结束",
		"downloaded", sum.Downloaded,
		"skipped", sum.Skipped,
		"raced", sum.Raced,
		"folders", sum.Folders,
		"bytes", sum.Bytes,
		"failures", sum.Failures)
	if s.Config.MetricsFile != "" {
		if werr := m.WriteTextfile(s.Config.MetricsFile); werr != nil {
			s.Logger.Warn("写入指标文件失败", "path", s.Config.MetricsFile, "err", werr)
		}
	}
	if err != nil {
		errs := multierr.Errors(err)
		for _, e := range errs {
			s.Logger.Error("镜像过程中出现错误", "err", e)
		}
		return fmt.Errorf("镜像未完成，%d 个错误: %w", len(errs), err)
	}
	return nil
}

// RunUsage 统计 path 下的总大小并输出
func RunUsage(ctx context.Context, s *Session, path string) error {
	path = NormalizeRemotePath(path)
	total, err := report.Measure(ctx, s.Remote, path)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(s.Out, report.FormatUsage(path, total))
	return err
}

// RunList 列出 path 下的一层条目；空目录只输出标题行
func RunList(ctx context.Context, s *Session, path string) error {
	path = NormalizeRemotePath(path)
	rows, err := report.List(ctx, s.Remote, path)
	if err != nil && !errors.Is(err, report.ErrEmptyFolder) {
		return err
	}
	if errors.Is(err, report.ErrEmptyFolder) {
		s.Logger.Debug("目录为空", "path", path)
	}
	return report.WriteListing(s.Out, path, rows)
}

// NormalizeRemotePath 将 "/" 或空白视为账户根目录，其余路径补齐前导斜杠
func NormalizeRemotePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return endpoint.RootPath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}
