// Package report 实现只读的统计与列举：usage 递归汇总文件大小，list 列出单层目录
package report

import (
	"context"
	"fmt"

	"dbxmirror/pkg/endpoint"
)

// Measure 顺序深度优先地汇总 path 下所有文件的字节数，不做任何写入。
// 累加器只属于本次调用
func Measure(ctx context.Context, remote endpoint.RemoteClient, path string) (int64, error) {
	var total int64
	stack := []string{path}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		entries, err := remote.ListFolder(ctx, dir)
		if err != nil {
			return total, fmt.Errorf("列举目录 %q 失败: %w", dir, err)
		}
		// 逆序压栈，保持与列举顺序一致的深度优先访问
		for i := len(entries) - 1; i >= 0; i-- {
			e := entries[i]
			switch e.Kind {
			case endpoint.KindFolder:
				stack = append(stack, e.Path)
			case endpoint.KindFile:
				total += e.Size
			default:
				return total, &endpoint.UnexpectedEntryKindError{Entry: e}
			}
		}
	}
	return total, nil
}

// FormatUsage 按 "<path>: <bytes> bytes (<GB> GB)" 输出，GB 为十进制
func FormatUsage(path string, total int64) string {
	return fmt.Sprintf("%s: %d bytes (%0.2f GB)", path, total, float64(total)/1e9)
}
