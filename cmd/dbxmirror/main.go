package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dbxmirror/pkg/core"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "dbxmirror error: %v\n", err)
		os.Exit(1)
	}
}

// globalOptions 为所有子命令共享的参数，命令行优先于配置文件
type globalOptions struct {
	configPath  string
	logLevel    string
	logFile     string
	noProgress  bool
	workers     int
	timeout     time.Duration
	metricsFile string
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:           "dbxmirror",
		Short:         "将 Dropbox 账户单向镜像到本地目录",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", core.DefaultConfigPath, "配置文件路径 (.ini / .yaml / .json)")
	pf.StringVar(&opts.logLevel, "log-level", "info", "日志级别：debug / info / warn / error")
	pf.StringVar(&opts.logFile, "log-file", "", "额外写入的日志文件")
	pf.BoolVar(&opts.noProgress, "no-progress", false, "禁用进度条显示")
	pf.IntVarP(&opts.workers, "workers", "w", 0, "并发 worker 数，默认取配置文件或 8")
	pf.DurationVar(&opts.timeout, "timeout", 0, "单次 HTTP 请求超时，默认取配置文件或 60s")
	pf.StringVar(&opts.metricsFile, "metrics-file", "", "镜像结束后写入 Prometheus textfile 指标")

	cmd.AddCommand(
		newMirrorCmd(opts),
		newUsageCmd(opts),
		newListCmd(opts),
	)
	return cmd
}

func newMirrorCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "mirror",
		Aliases: []string{"download-recursive"},
		Short:   "下载账户中的全部文件（受 to_dl 白名单限制）",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts, true)
			if err != nil {
				return err
			}
			defer s.Close()
			return core.RunMirror(cmd.Context(), s)
		},
	}
}

func newUsageCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "usage [path]",
		Aliases: []string{"du"},
		Short:   "统计远端目录的总大小",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts, false)
			if err != nil {
				return err
			}
			defer s.Close()
			return core.RunUsage(cmd.Context(), s, pathArg(args))
		},
	}
}

func newListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list [path]",
		Aliases: []string{"ls"},
		Short:   "列出远端目录的直接子条目",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts, false)
			if err != nil {
				return err
			}
			defer s.Close()
			return core.RunList(cmd.Context(), s, pathArg(args))
		},
	}
}

func pathArg(args []string) string {
	if len(args) == 0 {
		return "/"
	}
	return args[0]
}

func openSession(cmd *cobra.Command, opts *globalOptions, showProgress bool) (*core.Session, error) {
	cfg, err := core.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	opts.apply(cfg)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return core.Open(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), showProgress)
}

func (o *globalOptions) apply(cfg *core.Config) {
	cfg.LogLevel = o.logLevel
	cfg.LogFile = o.logFile
	cfg.NoProgress = o.noProgress
	cfg.MetricsFile = o.metricsFile
	if o.workers > 0 {
		cfg.Workers = o.workers
	}
	if o.timeout > 0 {
		cfg.Timeout = o.timeout
	}
}
