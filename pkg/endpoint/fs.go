package endpoint

import (
	"context"
	"io/fs"
)

// RemoteClient 抽象化的远端存储能力，需支持多个 worker 并发调用
type RemoteClient interface {
	ListFolder(ctx context.Context, path string) ([]Entry, error)
	Download(ctx context.Context, path string) ([]byte, error)
}

// FileSystem 抽象化的本地文件系统能力
type FileSystem interface {
	Root() string
	Stat(relPath string) (fs.FileInfo, error)
	Exists(relPath string) (bool, error)
	MkdirAll(relPath string) error
	// WriteAtomic 写入文件；目标已存在且 keep 返回 true（或 keep 为 nil）时不覆盖，返回 fs.ErrExist
	WriteAtomic(relPath string, data []byte, perm fs.FileMode, keep func(fs.FileInfo) bool) error
}
