// Package workerpool 提供在作业规划时确定大小的共享工作池
package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pool 固定并发度的工作池，任一任务失败会取消其余任务的上下文
type Pool struct {
	size  int
	group *errgroup.Group
	ctx   context.Context
}

// New 创建工作池，size 小于1时按1处理
func New(ctx context.Context, size int) *Pool {
	if size < 1 {
		size = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(size)
	return &Pool{size: size, group: g, ctx: gctx}
}

// Size 并发度
func (p *Pool) Size() int {
	return p.size
}

// Go 提交任务，池满时阻塞
func (p *Pool) Go(fn func(ctx context.Context) error) {
	p.group.Go(func() error {
		return fn(p.ctx)
	})
}

// Wait 等待所有任务结束，返回第一个错误
func (p *Pool) Wait() error {
	return p.group.Wait()
}
