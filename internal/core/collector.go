package core

import (
	"sync"

	"datasync/internal/element"
	"datasync/internal/pkg/logger"
	"datasync/internal/pkg/metrics"
	"datasync/internal/plugin/common"
)

// maxKeptCauses 每个收集器保留的脏数据原因条数
const maxKeptCauses = 20

// TaskCollector 任务级收集器，统计脏数据与已提交条数，保留前若干条脏数据
type TaskCollector struct {
	jobID  string
	logger *logger.Logger

	mu      sync.Mutex
	count   int64
	written int64
	samples []common.DirtyRecord
}

var (
	_ common.TaskCollector = (*TaskCollector)(nil)
	_ common.WriteCounter  = (*TaskCollector)(nil)
)

// NewTaskCollector 创建脏数据收集器
func NewTaskCollector(jobID string, l *logger.Logger) *TaskCollector {
	if l == nil {
		l = logger.Nop()
	}
	return &TaskCollector{jobID: jobID, logger: l}
}

// CollectDirtyRecord 收集一条脏数据
func (c *TaskCollector) CollectDirtyRecord(record *element.Record, cause error) {
	msg := "未知原因"
	if cause != nil {
		msg = cause.Error()
	}

	c.mu.Lock()
	c.count++
	n := c.count
	if len(c.samples) < maxKeptCauses {
		c.samples = append(c.samples, common.DirtyRecord{Record: record, Cause: cause})
	}
	c.mu.Unlock()

	metrics.DirtyRecords.WithLabelValues(c.jobID).Inc()
	if n <= maxKeptCauses {
		c.logger.Warn("脏数据: %s, 原因: %s", record, msg)
	} else {
		c.logger.Debug("脏数据: %s, 原因: %s", record, msg)
	}
}

// Count 脏数据条数
func (c *TaskCollector) Count() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// CollectWritten 累加已提交条数
func (c *TaskCollector) CollectWritten(n int64) {
	c.mu.Lock()
	c.written += n
	c.mu.Unlock()
}

// Written 已提交条数
func (c *TaskCollector) Written() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written
}

// Samples 保留的脏数据
func (c *TaskCollector) Samples() []common.DirtyRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]common.DirtyRecord, len(c.samples))
	copy(out, c.samples)
	return out
}

// Causes 保留的脏数据原因
func (c *TaskCollector) Causes() []string {
	samples := c.Samples()
	out := make([]string, len(samples))
	for i, d := range samples {
		out[i] = "未知原因"
		if d.Cause != nil {
			out[i] = d.Cause.Error()
		}
	}
	return out
}
