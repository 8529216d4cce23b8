package parse

import (
	"strings"

	"github.com/sshcollectorpro/devextract/pkg/logger"
)

// Parser 将单条命令的原始回显转换为结构化数据
// 对任何合法 UTF-8 输入都不能失败：未识别时返回 RawOutput 兜底
type Parser interface {
	Parse(raw string) Result
}

// ParserFunc 函数适配
type ParserFunc func(raw string) Result

func (f ParserFunc) Parse(raw string) Result { return f(raw) }

// Raw 仅做兜底的解析器（用于无专用解析器时的降级）
var Raw Parser = ParserFunc(RawOutput)

// Template 某平台的一种已知输出模板
type Template interface {
	Name() string
	// Match 通过特征子串判断回显是否属于该模板
	Match(raw string) bool
	// Extract 提取结构化数据；ok=false 表示模板引擎无法处理该回显
	Extract(raw string) (res Result, ok bool)
}

// Chain 按固定顺序尝试模板，首个命中者胜出，全部未命中时返回原文兜底
// 模板顺序在构造时确定，与进程历史无关
type Chain struct {
	name      string
	templates []Template
}

// NewChain 创建模板链
func NewChain(name string, templates ...Template) *Chain {
	ts := make([]Template, len(templates))
	copy(ts, templates)
	return &Chain{name: name, templates: ts}
}

func (c *Chain) Name() string { return c.name }

// Templates 模板名称（按尝试顺序）
func (c *Chain) Templates() []string {
	names := make([]string, 0, len(c.templates))
	for _, t := range c.templates {
		names = append(names, t.Name())
	}
	return names
}

func (c *Chain) Parse(raw string) Result {
	for _, t := range c.templates {
		if !t.Match(raw) {
			continue
		}
		res, ok := t.Extract(raw)
		if ok {
			logger.Debugf("Parser %s: template %s matched (%s)", c.name, t.Name(), res.Kind())
			return res
		}
		logger.Debugf("Parser %s: template %s matched markers but extraction failed", c.name, t.Name())
	}
	return RawOutput(raw)
}

// Marker 单行特征模板：取首个包含 marker 的行（去除首尾空白）写入 field
type Marker struct {
	name   string
	marker string
	field  string
}

// NewMarker 创建单行特征模板
func NewMarker(name, marker, field string) *Marker {
	return &Marker{name: name, marker: marker, field: field}
}

func (m *Marker) Name() string { return m.name }

func (m *Marker) Match(raw string) bool { return strings.Contains(raw, m.marker) }

func (m *Marker) Extract(raw string) (Result, bool) {
	for _, ln := range splitLines(raw) {
		if strings.Contains(ln, m.marker) {
			return NewRecord(Record{m.field: strings.TrimSpace(ln)}), true
		}
	}
	return Result{}, false
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Split(s, "\n")
}
