package common

// 切片配置中的通用键
const (
	KeyUsername      = "username"
	KeyPassword      = "password"
	KeyConnection    = "connection"
	KeyURL           = "url"
	KeyTable         = "table"
	KeyColumn        = "column"
	KeyWhere         = "where"
	KeySplitPk       = "splitPk"
	KeyQuerySQL      = "querySql"
	KeyPreSQL        = "preSql"
	KeyPostSQL       = "postSql"
	KeySession       = "session"
	KeyBatchSize     = "batchSize"
	KeyBatchByteSize = "batchByteSize"
	KeyWriteMode     = "writeMode"
	KeyNullMode      = "nullMode"
	KeyEmptyAsNull   = "emptyAsNull"
	KeyTableNumber   = "tableNumber"
	KeyTaskID        = "taskId"
	KeyJobID         = "jobId"
)

const (
	// DefaultBatchSize 默认批次行数
	DefaultBatchSize = 2048
	// DefaultBatchByteSize 默认批次字节数
	DefaultBatchByteSize = 32 * 1024 * 1024
	// TablePlaceholder 前后置SQL中的表名占位符
	TablePlaceholder = "@table"
)
