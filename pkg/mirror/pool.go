package mirror

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers 是默认的 worker 数量
const DefaultWorkers = 8

// ErrPoolClosed 表示向已关闭的 Pool 提交任务
var ErrPoolClosed = errors.New("pool 已关闭")

// Handler 处理一个待遍历的目录路径，处理过程中可以继续向 Pool 提交新路径
type Handler func(ctx context.Context, path string) error

// Pool 是固定大小的 worker 池，共享一个线程安全的队列。
// Wait 会阻塞到队列为空且所有已取出的任务都处理完毕
type Pool struct {
	mu      sync.Mutex
	ready   *sync.Cond
	idle    *sync.Cond
	queue   []string
	pending int
	closed  bool
	skipped bool
	errs    error

	ctx     context.Context
	handler Handler
	logger  *slog.Logger
	group   errgroup.Group
}

// NewPool 创建并启动 workers 个 worker
func NewPool(ctx context.Context, workers int, handler Handler, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	p := &Pool{ctx: ctx, handler: handler, logger: logger}
	p.ready = sync.NewCond(&p.mu)
	p.idle = sync.NewCond(&p.mu)
	for i := 0; i < workers; i++ {
		id := uuid.NewString()[:8]
		p.group.Go(func() error {
			p.work(id)
			return nil
		})
	}
	return p
}

// Submit 提交一个目录路径
func (p *Pool) Submit(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.queue = append(p.queue, path)
	p.pending++
	p.ready.Signal()
	return nil
}

// Wait 阻塞到所有已提交（包括处理过程中派生）的任务完成，返回期间累计的错误
func (p *Pool) Wait() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.pending > 0 {
		p.idle.Wait()
	}
	err := p.errs
	if p.skipped {
		err = multierr.Append(err, p.ctx.Err())
	}
	p.errs = nil
	p.skipped = false
	return err
}

// Close 停止接收新任务，等待队列中和处理中的任务结束后回收全部 worker
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.ready.Broadcast()
	p.mu.Unlock()
	return p.group.Wait()
}

func (p *Pool) work(id string) {
	log := p.logger.With("worker", id)
	log.Debug("worker 启动")
	defer log.Debug("worker 退出")
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.ready.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		path := p.queue[0]
		p.queue[0] = ""
		p.queue = p.queue[1:]
		p.mu.Unlock()

		var err error
		canceled := p.ctx.Err() != nil
		if !canceled {
			log.Debug("处理目录", "path", path)
			err = p.handler(p.ctx, path)
		}
		p.done(err, canceled)
	}
}

func (p *Pool) done(err error, canceled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if canceled {
		p.skipped = true
	}
	if err != nil {
		p.errs = multierr.Append(p.errs, err)
	}
	p.pending--
	if p.pending == 0 {
		p.idle.Broadcast()
	}
}
