// Package endpointtest 提供内存中的 RemoteClient，供各包测试使用
package endpointtest

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"dbxmirror/pkg/endpoint"
)

// MemoryClient 以内存树模拟远端存储，并统计调用次数
type MemoryClient struct {
	mu       sync.RWMutex
	children map[string][]endpoint.Entry
	content  map[string][]byte
	failures map[string]error

	Lists     atomic.Int64
	Downloads atomic.Int64
}

// NewMemoryClient 创建空的远端树
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		children: map[string][]endpoint.Entry{endpoint.RootPath: nil},
		content:  make(map[string][]byte),
		failures: make(map[string]error),
	}
}

// AddFile 添加文件，缺失的父目录会自动创建
func (m *MemoryClient) AddFile(p string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = normalize(p)
	parent := m.ensureDirLocked(path.Dir(p))
	e := endpoint.File(p, path.Base(p), int64(len(data)))
	e.ID = "id:" + p
	m.children[parent] = append(m.children[parent], e)
	m.content[p] = append([]byte(nil), data...)
}

// AddFolder 添加（可能为空的）目录
func (m *MemoryClient) AddFolder(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureDirLocked(normalize(p))
}

// AddEntry 在 dir 下直接追加任意条目，用于构造异常数据
func (m *MemoryClient) AddEntry(dir string, e endpoint.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir = m.ensureDirLocked(normalize(dir))
	m.children[dir] = append(m.children[dir], e)
}

// FailDownload 使指定路径的下载返回 err
func (m *MemoryClient) FailDownload(p string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[normalize(p)] = err
}

// ExpectedFiles 返回 dir 子树下的文件总数
func (m *MemoryClient) ExpectedFiles(dir string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countLocked(normalize(dir))
}

func (m *MemoryClient) countLocked(dir string) int {
	n := 0
	for _, e := range m.children[dir] {
		switch e.Kind {
		case endpoint.KindFile:
			n++
		case endpoint.KindFolder:
			n += m.countLocked(e.Path)
		}
	}
	return n
}

func (m *MemoryClient) ListFolder(ctx context.Context, p string) ([]endpoint.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.Lists.Add(1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries, ok := m.children[normalize(p)]
	if !ok {
		return nil, fmt.Errorf("path/not_found/: %q", p)
	}
	return append([]endpoint.Entry(nil), entries...), nil
}

func (m *MemoryClient) Download(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.Downloads.Add(1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	p = normalize(p)
	if err, ok := m.failures[p]; ok {
		return nil, err
	}
	data, ok := m.content[p]
	if !ok {
		return nil, fmt.Errorf("path/not_found/: %q", p)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryClient) ensureDirLocked(dir string) string {
	if dir == "/" || dir == "." {
		dir = endpoint.RootPath
	}
	if _, ok := m.children[dir]; ok {
		return dir
	}
	parent := m.ensureDirLocked(path.Dir(dir))
	e := endpoint.Folder(dir, path.Base(dir))
	e.ID = "id:" + dir
	m.children[parent] = append(m.children[parent], e)
	m.children[dir] = nil
	sort.SliceStable(m.children[parent], func(i, j int) bool {
		return m.children[parent][i].Path < m.children[parent][j].Path
	})
	return dir
}

func normalize(p string) string {
	if p == "" || p == "/" {
		return endpoint.RootPath
	}
	return path.Clean("/" + strings.ToLower(p))
}
