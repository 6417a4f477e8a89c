package core

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"datasync/internal/element"
	"datasync/internal/pkg/errs"
	"datasync/internal/plugin/common"
)

// DefaultChannelCapacity 通道默认容量
const DefaultChannelCapacity = 512

// Channel 一个读任务与一个写任务之间的有界通道
type Channel struct {
	records chan *element.Record
	once    sync.Once
	closed  atomic.Bool

	byteLimiter   *rate.Limiter
	recordLimiter *rate.Limiter

	sentRecords atomic.Int64
	sentBytes   atomic.Int64
}

var (
	_ common.RecordSender   = (*Channel)(nil)
	_ common.RecordReceiver = (*Channel)(nil)
)

// NewChannel 创建通道，capacity 小于1时使用默认容量
func NewChannel(capacity int) *Channel {
	if capacity < 1 {
		capacity = DefaultChannelCapacity
	}
	return &Channel{records: make(chan *element.Record, capacity)}
}

// WithRateLimit 设置每秒字节数与记录数上限，小于等于0表示不限速；须在使用前调用
func (c *Channel) WithRateLimit(bytesPerSecond, recordsPerSecond int) *Channel {
	if bytesPerSecond > 0 {
		c.byteLimiter = rate.NewLimiter(rate.Limit(bytesPerSecond), bytesPerSecond)
	}
	if recordsPerSecond > 0 {
		c.recordLimiter = rate.NewLimiter(rate.Limit(recordsPerSecond), recordsPerSecond)
	}
	return c
}

// SendToWriter 发送记录，通道满时阻塞直到有空位或上下文结束
func (c *Channel) SendToWriter(ctx context.Context, record *element.Record) error {
	if c.closed.Load() {
		return errs.New(errs.Runtime, "通道已关闭，不能继续发送记录")
	}
	if err := c.throttle(ctx, record); err != nil {
		return err
	}
	select {
	case c.records <- record:
		c.sentRecords.Add(1)
		c.sentBytes.Add(int64(record.ByteSize()))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channel) throttle(ctx context.Context, record *element.Record) error {
	if c.recordLimiter != nil {
		if err := c.recordLimiter.Wait(ctx); err != nil {
			return err
		}
	}
	if c.byteLimiter != nil {
		n := min(record.ByteSize(), c.byteLimiter.Burst())
		if n > 0 {
			if err := c.byteLimiter.WaitN(ctx, n); err != nil {
				return err
			}
		}
	}
	return nil
}

// Terminate 发送结束标记
func (c *Channel) Terminate() {
	c.once.Do(func() {
		c.closed.Store(true)
		close(c.records)
	})
}

// GetFromReader 接收记录；流结束或上下文结束时返回 (nil, false)
func (c *Channel) GetFromReader(ctx context.Context) (*element.Record, bool) {
	select {
	case record, ok := <-c.records:
		if !ok {
			return nil, false
		}
		return record, true
	case <-ctx.Done():
		return nil, false
	}
}

// Records 已发送记录数
func (c *Channel) Records() int64 {
	return c.sentRecords.Load()
}

// Bytes 已发送字节数
func (c *Channel) Bytes() int64 {
	return c.sentBytes.Load()
}
