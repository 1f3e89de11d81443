package transfer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"golang.org/x/sync/singleflight"

	"dbxmirror/pkg/endpoint"
	"dbxmirror/pkg/metrics"
	"dbxmirror/pkg/ui"
)

// Outcome 描述一次 Ensure 的结果
type Outcome string

const (
	// OutcomeSkipped 本地文件已存在且大小一致，未发起网络请求
	OutcomeSkipped Outcome = "skipped"
	// OutcomeDownloaded 已下载并写入
	OutcomeDownloaded Outcome = "downloaded"
	// OutcomeRaced 写入前文件已被其他写入者创建，本次不写入
	OutcomeRaced Outcome = "raced"
	// OutcomeShared 同一路径的并发调用，复用了另一调用的下载结果
	OutcomeShared Outcome = "shared"
)

const filePerm fs.FileMode = 0o644

// Materializer 保证远端文件在本地存在且大小一致，只在需要时下载
type Materializer struct {
	Remote   endpoint.RemoteClient
	Local    endpoint.FileSystem
	Logger   *slog.Logger
	Progress ui.Progress
	Metrics  *metrics.Mirror

	group singleflight.Group
}

// Ensure 确保 file 已同步到本地。同一路径的并发调用只会触发一次下载和一次写入
func (m *Materializer) Ensure(ctx context.Context, file endpoint.Entry) (Outcome, error) {
	if !file.IsFile() {
		return "", &endpoint.UnexpectedEntryKindError{Entry: file}
	}
	key := path.Clean("/" + strings.ToLower(file.Path))
	leader := false
	v, err, _ := m.group.Do(key, func() (any, error) {
		leader = true
		return m.ensure(ctx, file)
	})
	outcome, _ := v.(Outcome)
	if err != nil {
		m.Metrics.Failure(failureKind(err))
		return outcome, err
	}
	if !leader && outcome == OutcomeDownloaded {
		outcome = OutcomeShared
	}
	written := int64(0)
	if leader && outcome == OutcomeDownloaded {
		written = file.Size
	}
	m.Metrics.FileDone(string(outcome), written)
	m.progress().FileDone(file.Path, file.Size, written > 0)
	return outcome, nil
}

func (m *Materializer) ensure(ctx context.Context, file endpoint.Entry) (Outcome, error) {
	localPath := endpoint.LocalPath(m.Local.Root(), file.Path)
	stale := false
	info, err := m.Local.Stat(file.Path)
	switch {
	case err == nil && info.Mode().IsRegular() && info.Size() == file.Size:
		m.Logger.Debug("文件已存在，跳过", "path", file.Path)
		return OutcomeSkipped, nil
	case err == nil:
		stale = true
	case !errors.Is(err, fs.ErrNotExist):
		return "", &LocalWriteFailedError{Path: localPath, Err: err}
	}

	data, err := m.Remote.Download(ctx, file.Path)
	if err != nil {
		return "", &DownloadFailedError{Path: file.Path, Err: err}
	}
	if int64(len(data)) != file.Size {
		return "", &DownloadFailedError{
			Path: file.Path,
			Err:  fmt.Errorf("%w: expected %d, got %d", ErrSizeMismatch, file.Size, len(data)),
		}
	}

	dir := path.Dir(path.Clean("/" + file.Path))
	exists, err := m.Local.Exists(dir)
	if err != nil {
		return "", &LocalWriteFailedError{Path: localPath, Err: err}
	}
	if !exists {
		m.Logger.Info("创建目录", "dir", endpoint.LocalPath(m.Local.Root(), dir))
	}
	if err := m.Local.MkdirAll(dir); err != nil {
		return "", &LocalWriteFailedError{Path: localPath, Err: err}
	}

	// 写入前复查：目标在此期间被其他写入者创建时保留对方的结果；
	// 原本就过期的文件只有在大小仍不一致时才替换
	keep := func(cur fs.FileInfo) bool {
		return !stale || cur.Size() == file.Size
	}
	if stale {
		m.Logger.Info("更新文件", "path", localPath, "size", file.Size)
	} else {
		m.Logger.Info("创建文件", "path", localPath, "size", file.Size)
	}
	if err := m.Local.WriteAtomic(file.Path, data, filePerm, keep); err != nil {
		if errors.Is(err, fs.ErrExist) {
			m.Logger.Debug("文件已由其他写入者创建", "path", localPath)
			return OutcomeRaced, nil
		}
		return "", &LocalWriteFailedError{Path: localPath, Err: err}
	}
	return OutcomeDownloaded, nil
}

func (m *Materializer) progress() ui.Progress {
	if m.Progress == nil {
		return ui.NoopProgress{}
	}
	return m.Progress
}

func failureKind(err error) string {
	var (
		dl  *DownloadFailedError
		lw  *LocalWriteFailedError
		unk *endpoint.UnexpectedEntryKindError
	)
	switch {
	case errors.As(err, &dl):
		return "download"
	case errors.As(err, &lw):
		return "local_write"
	case errors.As(err, &unk):
		return "unexpected_entry"
	default:
		return "other"
	}
}
