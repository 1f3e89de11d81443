package endpoint

import (
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// EntryKind 表示远端条目的类型：目录或文件
type EntryKind int

const (
	KindUnknown EntryKind = iota
	KindFolder
	KindFile
)

func (k EntryKind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// RootPath 表示账户根目录
const RootPath = ""

// Entry 描述一次目录列举返回的单个条目，类型在列举边界处确定
type Entry struct {
	Kind EntryKind
	ID   string
	Name string
	// Path 为远端返回的小写路径，例如 /docs/report.pdf
	Path string
	Size int64
	// Raw 保存无法识别的原始条目，便于诊断
	Raw json.RawMessage
}

// Folder 构造目录条目
func Folder(p, name string) Entry {
	return Entry{Kind: KindFolder, Name: name, Path: p}
}

// File 构造文件条目
func File(p, name string, size int64) Entry {
	return Entry{Kind: KindFile, Name: name, Path: p, Size: size}
}

func (e Entry) IsFolder() bool { return e.Kind == KindFolder }

func (e Entry) IsFile() bool { return e.Kind == KindFile }

// UnexpectedEntryKindError 表示列举结果中出现了既不是目录也不是文件的条目
type UnexpectedEntryKindError struct {
	Entry Entry
}

func (e *UnexpectedEntryKindError) Error() string {
	raw := string(e.Entry.Raw)
	if raw == "" {
		raw = fmt.Sprintf("%+v", e.Entry)
	}
	return fmt.Sprintf("unexpected folder entry %q (expected folder or file): %s", e.Entry.Path, raw)
}

// LocalPath 将远端路径映射到下载目录下的本地路径。映射是纯函数，不需要任何清单
func LocalPath(dlDir, remotePath string) string {
	clean := path.Clean("/" + strings.ToLower(remotePath))
	return filepath.Join(dlDir, filepath.FromSlash(clean))
}
