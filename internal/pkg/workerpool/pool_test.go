package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_LimitsConcurrency(t *testing.T) {
	p := New(context.Background(), 2)
	var running, peak int32
	for i := 0; i < 8; i++ {
		p.Go(func(ctx context.Context) error {
			n := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if peak > 2 {
		t.Errorf("并发峰值 = %d, 不应超过 2", peak)
	}
}

func TestPool_FirstErrorCancels(t *testing.T) {
	p := New(context.Background(), 2)
	boom := errors.New("boom")
	p.Go(func(ctx context.Context) error { return boom })
	p.Go(func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
			return errors.New("未被取消")
		}
	})
	if err := p.Wait(); !errors.Is(err, boom) {
		t.Errorf("Wait() = %v, want boom", err)
	}
}

func TestPool_MinimumSize(t *testing.T) {
	if New(context.Background(), 0).Size() != 1 {
		t.Error("并发度小于1时应按1处理")
	}
}
