package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"dbxmirror/pkg/endpoint"
)

// ErrEmptyFolder 表示被列举的目录没有任何条目，不视为失败
var ErrEmptyFolder = errors.New("目录为空")

// Row 是 list 输出的一行
type Row struct {
	ID   string
	Name string
	Path string
}

// List 单层列举 path，不递归
func List(ctx context.Context, remote endpoint.RemoteClient, path string) ([]Row, error) {
	entries, err := remote.ListFolder(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("列举目录 %q 失败: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, ErrEmptyFolder
	}
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, Row{ID: e.ID, Name: e.Name, Path: e.Path})
	}
	return rows, nil
}

// WriteListing 输出标题行和右对齐的 id / name / path 三列，列宽取该列最长值。
// rows 为空时只输出标题行
func WriteListing(w io.Writer, path string, rows []Row) error {
	if _, err := fmt.Fprintf(w, "Listing path \"%s\"...\n", path); err != nil {
		return err
	}
	var idW, nameW, pathW int
	for _, r := range rows {
		idW = max(idW, utf8.RuneCountInString(r.ID))
		nameW = max(nameW, utf8.RuneCountInString(r.Name))
		pathW = max(pathW, utf8.RuneCountInString(r.Path))
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%*s %*s %*s\n", idW, r.ID, nameW, r.Name, pathW, r.Path); err != nil {
			return err
		}
	}
	return nil
}
