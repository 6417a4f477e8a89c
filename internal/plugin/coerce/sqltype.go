// Package coerce 把列值转换为目标端驱动接受的绑定参数
package coerce

import (
	"fmt"
	"strings"
)

// SQLType 目标端声明的字段类型码
type SQLType int

const (
	TypeUnknown SQLType = iota
	TypeChar
	TypeNChar
	TypeVarchar
	TypeNVarchar
	TypeLongVarchar
	TypeLongNVarchar
	TypeClob
	TypeNClob
	TypeBoolean
	TypeSQLXML
	TypeArray
	TypeTinyInt
	TypeSmallInt
	TypeInteger
	TypeBigInt
	TypeNumeric
	TypeDecimal
	TypeFloat
	TypeReal
	TypeDouble
	TypeDate
	TypeTime
	TypeTimestamp
	TypeBinary
	TypeVarbinary
	TypeBlob
	TypeLongVarbinary
	TypeBit
	TypeOther
	TypeStruct
	TypeRef
	TypeRowID
	TypeDistinct
)

var typeNames = map[SQLType]string{
	TypeUnknown:       "UNKNOWN",
	TypeChar:          "CHAR",
	TypeNChar:         "NCHAR",
	TypeVarchar:       "VARCHAR",
	TypeNVarchar:      "NVARCHAR",
	TypeLongVarchar:   "LONGVARCHAR",
	TypeLongNVarchar:  "LONGNVARCHAR",
	TypeClob:          "CLOB",
	TypeNClob:         "NCLOB",
	TypeBoolean:       "BOOLEAN",
	TypeSQLXML:        "SQLXML",
	TypeArray:         "ARRAY",
	TypeTinyInt:       "TINYINT",
	TypeSmallInt:      "SMALLINT",
	TypeInteger:       "INTEGER",
	TypeBigInt:        "BIGINT",
	TypeNumeric:       "NUMERIC",
	TypeDecimal:       "DECIMAL",
	TypeFloat:         "FLOAT",
	TypeReal:          "REAL",
	TypeDouble:        "DOUBLE",
	TypeDate:          "DATE",
	TypeTime:          "TIME",
	TypeTimestamp:     "TIMESTAMP",
	TypeBinary:        "BINARY",
	TypeVarbinary:     "VARBINARY",
	TypeBlob:          "BLOB",
	TypeLongVarbinary: "LONGVARBINARY",
	TypeBit:           "BIT",
	TypeOther:         "OTHER",
	TypeStruct:        "STRUCT",
	TypeRef:           "REF",
	TypeRowID:         "ROWID",
	TypeDistinct:      "DISTINCT",
}

func (t SQLType) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("SQLType(%d)", int(t))
}

// ColumnMeta 目标端字段描述：列名、类型码、驱动报告的原生类型名
type ColumnMeta struct {
	Name       string
	Type       SQLType
	NativeName string
}

// nativeTypes 常见数据库原生类型名到类型码的映射，键为去掉参数后的大写名
var nativeTypes = map[string]SQLType{
	"CHAR": TypeChar, "CHARACTER": TypeChar, "BPCHAR": TypeChar, "NCHAR": TypeNChar,
	"VARCHAR": TypeVarchar, "VARCHAR2": TypeVarchar, "CHARACTER VARYING": TypeVarchar,
	"TEXT": TypeVarchar, "TINYTEXT": TypeVarchar, "MEDIUMTEXT": TypeLongVarchar,
	"LONGTEXT": TypeLongVarchar, "STRING": TypeVarchar, "ENUM": TypeVarchar, "SET": TypeVarchar,
	"JSON": TypeVarchar, "NAME": TypeVarchar, "CITEXT": TypeVarchar,
	"NVARCHAR": TypeNVarchar, "NVARCHAR2": TypeNVarchar, "NTEXT": TypeLongNVarchar,
	"LONG": TypeLongVarchar, "CLOB": TypeClob, "NCLOB": TypeNClob,
	"BOOL": TypeBoolean, "BOOLEAN": TypeBoolean,
	"XML": TypeSQLXML, "XMLTYPE": TypeSQLXML, "ARRAY": TypeArray,
	"TINYINT": TypeTinyInt, "UNSIGNED_TINYINT": TypeTinyInt, "INT1": TypeTinyInt, "UINT8": TypeTinyInt,
	"SMALLINT": TypeSmallInt, "INT2": TypeSmallInt, "UNSIGNED_SMALLINT": TypeSmallInt, "SMALLSERIAL": TypeSmallInt,
	"MEDIUMINT": TypeInteger, "INT": TypeInteger, "INTEGER": TypeInteger, "INT4": TypeInteger,
	"UNSIGNED_INT": TypeInteger, "SERIAL": TypeInteger, "INT16": TypeSmallInt, "INT32": TypeInteger,
	"UNSIGNED INT": TypeInteger, "UNSIGNED TINYINT": TypeTinyInt, "UNSIGNED SMALLINT": TypeSmallInt,
	"BIGINT": TypeBigInt, "INT8": TypeBigInt, "BIGSERIAL": TypeBigInt, "UNSIGNED_LONG": TypeBigInt,
	"INT64": TypeBigInt, "UNSIGNED BIGINT": TypeBigInt, "UINT64": TypeBigInt,
	"NUMERIC": TypeNumeric, "NUMBER": TypeNumeric, "DECIMAL": TypeDecimal, "DEC": TypeDecimal,
	"MONEY": TypeDecimal, "SMALLMONEY": TypeDecimal, "DECIMAL128": TypeDecimal,
	"FLOAT": TypeFloat, "FLOAT4": TypeReal, "UNSIGNED_FLOAT": TypeFloat, "FLOAT32": TypeFloat,
	"REAL": TypeReal, "BINARY_FLOAT": TypeReal,
	"DOUBLE": TypeDouble, "FLOAT8": TypeDouble, "DOUBLE PRECISION": TypeDouble,
	"UNSIGNED_DOUBLE": TypeDouble, "BINARY_DOUBLE": TypeDouble, "FLOAT64": TypeDouble,
	"DATE": TypeDate, "YEAR": TypeDate, "UNSIGNED_DATE": TypeDate, "DATE32": TypeDate,
	"TIME": TypeTime, "TIMETZ": TypeTime, "UNSIGNED_TIME": TypeTime,
	"DATETIME": TypeTimestamp, "DATETIME2": TypeTimestamp, "SMALLDATETIME": TypeTimestamp,
	"DATETIMEOFFSET": TypeTimestamp, "TIMESTAMP": TypeTimestamp, "TIMESTAMPTZ": TypeTimestamp,
	"UNSIGNED_TIMESTAMP": TypeTimestamp, "TIMESTAMP WITH TIME ZONE": TypeTimestamp,
	"TIMESTAMP WITH LOCAL TIME ZONE": TypeTimestamp,
	"BINARY": TypeBinary, "VARBINARY": TypeVarbinary, "RAW": TypeVarbinary, "BYTEA": TypeVarbinary,
	"BLOB": TypeBlob, "TINYBLOB": TypeBlob, "MEDIUMBLOB": TypeBlob, "LONGBLOB": TypeLongVarbinary,
	"LONG RAW": TypeLongVarbinary, "BFILE": TypeRef,
	"BIT": TypeBit,
	"IMAGE": TypeOther, "UUID": TypeOther, "UNIQUEIDENTIFIER": TypeOther, "JSONB": TypeOther,
	"INET": TypeOther, "CIDR": TypeOther, "MACADDR": TypeOther, "INTERVAL": TypeOther,
	"GEOMETRY": TypeStruct, "GEOGRAPHY": TypeStruct, "SDO_GEOMETRY": TypeStruct,
	"POINT": TypeStruct, "OBJECT": TypeStruct, "STRUCT": TypeStruct,
	"REF": TypeRef, "ROWID": TypeRowID, "UROWID": TypeRowID, "DISTINCT": TypeDistinct,
}

// BaseTypeName 去掉长度精度等参数后的大写类型名，如 VARCHAR(32) -> VARCHAR
func BaseTypeName(native string) string {
	name := strings.ToUpper(strings.TrimSpace(native))
	if i := strings.IndexByte(name, '('); i >= 0 {
		tail := ""
		if j := strings.LastIndexByte(name, ')'); j > i && j+1 < len(name) {
			tail = strings.TrimSpace(name[j+1:])
		}
		name = strings.TrimSpace(name[:i])
		if tail != "" {
			name = name + " " + tail
		}
	}
	return name
}

// LookupNativeType 按通用映射查找类型码，找不到时返回 TypeUnknown
func LookupNativeType(native string) SQLType {
	raw := strings.TrimSpace(native)
	// 带时区或精度的 DateTime 变体需保留原名参与判断
	if strings.HasPrefix(raw, "DateTime64(") {
		return TypeOther
	}
	if strings.HasPrefix(raw, "DateTime(") {
		return TypeTimestamp
	}
	name := BaseTypeName(raw)
	if strings.HasPrefix(name, "_") {
		return TypeArray
	}
	if strings.HasSuffix(name, "[]") {
		return TypeArray
	}
	if strings.HasPrefix(name, "NULLABLE") || strings.HasPrefix(name, "LOWCARDINALITY") {
		if i := strings.IndexByte(raw, '('); i >= 0 && strings.HasSuffix(raw, ")") {
			return LookupNativeType(raw[i+1 : len(raw)-1])
		}
	}
	if t, ok := nativeTypes[name]; ok {
		return t
	}
	if strings.Contains(name, "UNSIGNED") || strings.Contains(name, "ZEROFILL") {
		stripped := strings.Join(strings.Fields(strings.NewReplacer("UNSIGNED", "", "ZEROFILL", "").Replace(name)), " ")
		if t, ok := nativeTypes[stripped]; ok {
			return t
		}
	}
	if strings.HasPrefix(name, "TIMESTAMP") {
		return TypeTimestamp
	}
	if strings.HasPrefix(name, "INTERVAL") {
		return TypeOther
	}
	return TypeUnknown
}
