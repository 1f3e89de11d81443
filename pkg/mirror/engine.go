package mirror

import (
	"context"
	"fmt"
	"log/slog"

	"go.uber.org/multierr"

	"dbxmirror/pkg/endpoint"
	"dbxmirror/pkg/metrics"
	"dbxmirror/pkg/transfer"
)

// Engine 自顶向下遍历远端目录树：文件交给 Materializer，目录继续遍历
type Engine struct {
	Remote       endpoint.RemoteClient
	Materializer *transfer.Materializer
	Filter       endpoint.InclusionFilter
	Logger       *slog.Logger
	Metrics      *metrics.Mirror
	// Workers 为池化模式的 worker 数，<=0 时使用 DefaultWorkers
	Workers int
}

// Mirror 以 worker 池并行遍历 root 下的子树，直到所有派生任务完成才返回
func (e *Engine) Mirror(ctx context.Context, root string) error {
	var pool *Pool
	pool = NewPool(ctx, e.Workers, func(ctx context.Context, dir string) error {
		return e.visit(ctx, dir, pool.Submit)
	}, e.Logger)

	rootErr := e.visit(ctx, root, pool.Submit)
	waitErr := pool.Wait()
	closeErr := pool.Close()
	return multierr.Combine(rootErr, waitErr, closeErr)
}

// Walk 单线程遍历 root 子树。使用显式栈而不是递归，深层目录不会导致栈增长
func (e *Engine) Walk(ctx context.Context, root string) error {
	stack := []string{root}
	push := func(dir string) error {
		stack = append(stack, dir)
		return nil
	}
	var errs error
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		errs = multierr.Append(errs, e.visit(ctx, dir, push))
	}
	return errs
}

// visit 列举 dir 一层：文件立即同步，子目录交给 push。
// 单个文件失败不影响同级条目；未知类型的条目终止当前目录的处理
func (e *Engine) visit(ctx context.Context, dir string, push func(string) error) error {
	entries, err := e.Remote.ListFolder(ctx, dir)
	if err != nil {
		e.Metrics.Failure("list")
		return fmt.Errorf("列举目录 %q 失败: %w", dir, err)
	}
	e.Metrics.FolderListed()

	var errs error
	for _, entry := range entries {
		if !e.Filter.Allows(dir, entry) {
			e.Logger.Debug("不在下载列表中，跳过", "name", entry.Name)
			continue
		}
		switch entry.Kind {
		case endpoint.KindFolder:
			if err := push(entry.Path); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("提交目录 %q 失败: %w", entry.Path, err))
			}
		case endpoint.KindFile:
			if _, err := e.Materializer.Ensure(ctx, entry); err != nil {
				e.Logger.Error("同步文件失败", "path", entry.Path, "err", err)
				errs = multierr.Append(errs, err)
			}
		default:
			e.Metrics.Failure("unexpected_entry")
			return multierr.Append(errs, &endpoint.UnexpectedEntryKindError{Entry: entry})
		}
	}
	return errs
}
