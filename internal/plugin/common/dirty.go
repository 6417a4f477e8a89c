package common

import "datasync/internal/element"

// DirtyRecord 脏数据：记录与失败原因
type DirtyRecord struct {
	Record *element.Record
	Cause  error
}

// DiscardCollector 丢弃所有脏数据的收集器
type DiscardCollector struct{}

// CollectDirtyRecord 实现 TaskCollector
func (DiscardCollector) CollectDirtyRecord(*element.Record, error) {}

// WriteCounter 可记录已提交条数的收集器，写入引擎每次提交后调用
type WriteCounter interface {
	CollectWritten(n int64)
}
