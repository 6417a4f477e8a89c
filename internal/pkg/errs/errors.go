// Package errs 定义同步过程中的错误分类
package errs

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Category 错误类别
type Category int

const (
	// CategoryConfig 配置错误，任务立即终止
	CategoryConfig Category = iota
	// CategoryConnect 连接错误，任务终止且不重试
	CategoryConnect
	// CategoryBatch 批量写入错误，由逐条降级吸收
	CategoryBatch
	// CategoryRow 单行错误，进入脏数据
	CategoryRow
	// CategoryRuntime 其他运行时错误
	CategoryRuntime
)

// Code 错误码
type Code struct {
	Name        string
	Description string
	Category    Category
}

func (c Code) String() string {
	return fmt.Sprintf("Code:[%s], Description:[%s]", c.Name, c.Description)
}

var (
	Config          = Code{"Common-00", "配置错误", CategoryConfig}
	RequiredValue   = Code{"Common-01", "缺少必填参数", CategoryConfig}
	IllegalValue    = Code{"Common-02", "参数值不合法", CategoryConfig}
	ColumnMismatch  = Code{"Common-03", "列数不匹配", CategoryConfig}
	SplitMismatch   = Code{"Common-04", "切分数量不匹配", CategoryConfig}
	UnsupportedType = Code{"Common-05", "不支持的字段类型", CategoryConfig}
	Connect         = Code{"Common-10", "数据库连接失败", CategoryConnect}
	ExecSQL         = Code{"Common-11", "执行SQL失败", CategoryConnect}
	WriteBatch      = Code{"Common-20", "批量写入失败", CategoryBatch}
	WriteRow        = Code{"Common-21", "单条写入失败", CategoryRow}
	Convert         = Code{"Common-22", "类型转换失败", CategoryRow}
	Runtime         = Code{"Common-30", "运行时错误", CategoryRuntime}
)

// SyncError 带错误码的错误
type SyncError struct {
	Code    Code
	Message string
	cause   error
}

func (e *SyncError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code.Description, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code.Description, e.Message)
}

// Unwrap 返回原始错误
func (e *SyncError) Unwrap() error {
	return e.cause
}

// Cause 兼容 pkg/errors 的 Cause 链
func (e *SyncError) Cause() error {
	return e.cause
}

// New 创建带错误码的错误
func New(code Code, format string, args ...any) error {
	return errors.WithStack(&SyncError{Code: code, Message: fmt.Sprintf(format, args...)})
}

// Wrap 使用错误码包装已有错误
func Wrap(code Code, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&SyncError{Code: code, Message: fmt.Sprintf(format, args...), cause: err})
}

// CodeOf 获取错误链上第一个错误码
func CodeOf(err error) (Code, bool) {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return Code{}, false
}

// Is 判断错误链中是否包含指定错误码
func Is(err error, code Code) bool {
	var se *SyncError
	for err != nil {
		if !errors.As(err, &se) {
			return false
		}
		if se.Code.Name == code.Name {
			return true
		}
		err = se.cause
	}
	return false
}

// IsFatal 配置错误与连接错误对任务是致命的
func IsFatal(err error) bool {
	c, ok := CodeOf(err)
	if !ok {
		return false
	}
	return c.Category == CategoryConfig || c.Category == CategoryConnect
}

// IsCanceled 判断错误是否由上下文取消引起
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
