package transfer

import (
	"errors"
	"fmt"
)

// ErrSizeMismatch 表示下载内容的长度与列举结果不一致，通常是响应被截断
var ErrSizeMismatch = errors.New("下载大小与列举结果不一致")

// DownloadFailedError 表示从远端下载文件失败（网络、鉴权、配额等），不会自动重试
type DownloadFailedError struct {
	Path string
	Err  error
}

func (e *DownloadFailedError) Error() string {
	return fmt.Sprintf("下载失败 %s: %v", e.Path, e.Err)
}

func (e *DownloadFailedError) Unwrap() error { return e.Err }

// LocalWriteFailedError 表示本地写入失败（磁盘已满、权限不足、路径过长等）
type LocalWriteFailedError struct {
	Path string
	Err  error
}

func (e *LocalWriteFailedError) Error() string {
	return fmt.Sprintf("写入本地文件失败 %s: %v", e.Path, e.Err)
}

func (e *LocalWriteFailedError) Unwrap() error { return e.Err }
