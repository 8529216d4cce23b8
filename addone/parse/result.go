package parse

import (
	"encoding/json"
)

// RawOutputKey 兜底结果中保存原始回显的字段名
const RawOutputKey = "raw_output"

// Kind 解析结果形态
type Kind int

const (
	// KindRecord 单条映射（如版本横幅）
	KindRecord Kind = iota
	// KindTable 有序多行映射（如接口列表）
	KindTable
	// KindRaw 未命中任何模板，原样返回
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindTable:
		return "table"
	case KindRaw:
		return "raw"
	}
	return "unknown"
}

// Record 单条结构化数据
type Record map[string]string

// Result 解析结果：单条映射 / 有序映射序列 / 原始回显兜底
// 调用方应把它视为半结构化数据，而非固定模式
type Result struct {
	kind   Kind
	record Record
	table  []Record
}

// NewRecord 单条映射结果
func NewRecord(r Record) Result {
	if r == nil {
		r = Record{}
	}
	return Result{kind: KindRecord, record: r}
}

// NewTable 表格结果，rows 为空时序列化为 []
func NewTable(rows []Record) Result {
	if rows == nil {
		rows = []Record{}
	}
	return Result{kind: KindTable, table: rows}
}

// RawOutput 兜底结果：{"raw_output": <原文>}
func RawOutput(text string) Result {
	return Result{kind: KindRaw, record: Record{RawOutputKey: text}}
}

func (r Result) Kind() Kind { return r.kind }

// Record 单条映射（KindRecord 与 KindRaw 有效）
func (r Result) Record() Record { return r.record }

// Table 表格行（仅 KindTable 有效）
func (r Result) Table() []Record { return r.table }

// Raw 兜底结果中的原文
func (r Result) Raw() (string, bool) {
	if r.kind != KindRaw {
		return "", false
	}
	s, ok := r.record[RawOutputKey]
	return s, ok
}

// Value 返回可直接序列化的值：map 或 []map
func (r Result) Value() interface{} {
	if r.kind == KindTable {
		return r.table
	}
	if r.record == nil {
		return Record{}
	}
	return r.record
}

func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Value())
}
