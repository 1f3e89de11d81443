package endpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// LocalFS 实现 FileSystem 接口，以下载目录为根
type LocalFS struct {
	root string
	fs   afero.Fs
}

// NewLocalFS 创建一个基于真实磁盘的 LocalFS
func NewLocalFS(root string) *LocalFS {
	return NewLocalFSWith(afero.NewOsFs(), root)
}

// NewLocalFSWith 使用指定的 afero.Fs，测试中传入 afero.NewMemMapFs()
func NewLocalFSWith(afs afero.Fs, root string) *LocalFS {
	return &LocalFS{root: root, fs: afs}
}

func (l *LocalFS) Root() string {
	return l.root
}

// Path 返回 relPath 对应的完整本地路径
func (l *LocalFS) Path(relPath string) string {
	return LocalPath(l.root, relPath)
}

func (l *LocalFS) Stat(relPath string) (fs.FileInfo, error) {
	return l.fs.Stat(l.Path(relPath))
}

func (l *LocalFS) Exists(relPath string) (bool, error) {
	return afero.Exists(l.fs, l.Path(relPath))
}

// MkdirAll 递归创建目录，目录已存在（包括并发创建）不视为错误
func (l *LocalFS) MkdirAll(relPath string) error {
	full := l.Path(relPath)
	if err := l.fs.MkdirAll(full, 0o755); err != nil {
		if info, statErr := l.fs.Stat(full); statErr == nil && info.IsDir() {
			return nil
		}
		return err
	}
	return nil
}

// WriteAtomic 先写入同目录下的临时文件再重命名，失败时不会留下残缺文件。
// 目标文件已存在且 keep 为 nil 或 keep 返回 true 时不覆盖，返回 fs.ErrExist
func (l *LocalFS) WriteAtomic(relPath string, data []byte, perm fs.FileMode, keep func(fs.FileInfo) bool) error {
	full := l.Path(relPath)
	dir := filepath.Dir(full)
	tmp, err := afero.TempFile(l.fs, dir, "."+path.Base(strings.ToLower(relPath))+".*.dbxmirror-tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = l.fs.Remove(tmpName) }
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := l.fs.Chmod(tmpName, perm); err != nil {
		cleanup()
		return err
	}
	info, err := l.fs.Stat(full)
	switch {
	case err == nil:
		if keep == nil || keep(info) {
			cleanup()
			return fmt.Errorf("%s: %w", full, fs.ErrExist)
		}
	case !errors.Is(err, fs.ErrNotExist):
		cleanup()
		return err
	}
	if err := l.fs.Rename(tmpName, full); err != nil {
		cleanup()
		return err
	}
	return nil
}
