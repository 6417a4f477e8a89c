// Package metrics 同步过程的Prometheus指标
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "datasync"

var (
	// Registry 进程内指标注册表
	Registry = prometheus.NewRegistry()

	RecordsRead = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_read_total",
		Help:      "读任务发送到通道的记录数",
	}, []string{"job"})

	RecordsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_written_total",
		Help:      "成功写入目标端的记录数",
	}, []string{"job"})

	DirtyRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dirty_records_total",
		Help:      "进入脏数据收集器的记录数",
	}, []string{"job"})

	Flushes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "flush_total",
		Help:      "批量提交次数",
	}, []string{"job"})

	Degrades = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "degrade_total",
		Help:      "批量失败后降级为逐条提交的次数",
	}, []string{"job"})
)

func init() {
	Registry.MustRegister(RecordsRead, RecordsWritten, DirtyRecords, Flushes, Degrades)
}

// Handler 指标HTTP处理器
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
