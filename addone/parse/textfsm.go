package parse

import (
	"fmt"
	"strings"

	"github.com/netxops/gotextfsm"
)

// TextFSM 表格模板：回显同时包含全部 markers 时，按 TextFSM 模板逐行提取记录
// 每条记录的字段集合一致（取模板中声明的全部 Value，名称转小写）
type TextFSM struct {
	name    string
	markers []string
	text    string
	values  []string
}

// NewTextFSM 编译并校验模板
func NewTextFSM(name, text string, markers ...string) (*TextFSM, error) {
	fsm := gotextfsm.TextFSM{}
	if err := fsm.ParseString(text); err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}
	values := valueNames(text)
	if len(values) == 0 {
		return nil, fmt.Errorf("template %s: no Value declared", name)
	}
	return &TextFSM{name: name, markers: markers, text: text, values: values}, nil
}

// MustTextFSM 用于包级模板定义，模板错误属于编码错误
func MustTextFSM(name, text string, markers ...string) *TextFSM {
	t, err := NewTextFSM(name, text, markers...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *TextFSM) Name() string { return t.name }

// Fields 输出字段名（按模板声明顺序）
func (t *TextFSM) Fields() []string {
	out := make([]string, 0, len(t.values))
	for _, v := range t.values {
		out = append(out, fieldName(v))
	}
	return out
}

func (t *TextFSM) Match(raw string) bool {
	for _, m := range t.markers {
		if !strings.Contains(raw, m) {
			return false
		}
	}
	return len(t.markers) > 0
}

func (t *TextFSM) Extract(raw string) (Result, bool) {
	// 每次解析使用独立的状态机，模板本身只读
	fsm := gotextfsm.TextFSM{}
	if err := fsm.ParseString(t.text); err != nil {
		return Result{}, false
	}
	out := gotextfsm.ParserOutput{}
	if err := out.ParseTextString(raw, fsm, true); err != nil {
		return Result{}, false
	}
	rows := make([]Record, 0, len(out.Dict))
	for _, rec := range out.Dict {
		row := make(Record, len(t.values))
		for _, v := range t.values {
			row[fieldName(v)] = stringValue(rec[v])
		}
		rows = append(rows, row)
	}
	return NewTable(rows), true
}

// valueNames 读取 "Value [Options] NAME (regex)" 声明中的名称
func valueNames(text string) []string {
	var names []string
	for _, ln := range splitLines(text) {
		ln = strings.TrimSpace(ln)
		if !strings.HasPrefix(ln, "Value ") {
			continue
		}
		idx := strings.Index(ln, "(")
		if idx < 0 {
			continue
		}
		parts := strings.Fields(ln[:idx])
		if len(parts) < 2 {
			continue
		}
		names = append(names, parts[len(parts)-1])
	}
	return names
}

func fieldName(v string) string { return strings.ToLower(v) }

func stringValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []string:
		return strings.Join(x, ",")
	case []interface{}:
		parts := make([]string, 0, len(x))
		for _, p := range x {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(x)
	}
}
