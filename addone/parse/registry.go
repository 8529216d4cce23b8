package parse

import (
	"fmt"
	"sort"

	"github.com/sshcollectorpro/devextract/addone/dialect"
)

// Binding 平台与解析器实例的绑定
type Binding struct {
	Dialect dialect.Dialect
	Parser  Parser
}

// Registry 平台 -> 解析器的只读注册表
// 在启动时显式构造并注入使用方，不提供运行期注册
type Registry struct {
	parsers map[dialect.Dialect]Parser
}

// NewRegistry 每个平台只能绑定一个解析器
func NewRegistry(bindings ...Binding) (*Registry, error) {
	r := &Registry{parsers: make(map[dialect.Dialect]Parser, len(bindings))}
	for _, b := range bindings {
		d := dialect.Normalize(string(b.Dialect))
		if d.IsZero() {
			return nil, fmt.Errorf("parser registry: empty dialect")
		}
		if b.Parser == nil {
			return nil, fmt.Errorf("parser registry: nil parser for %s", d)
		}
		if _, dup := r.parsers[d]; dup {
			return nil, fmt.Errorf("parser registry: %s bound twice", d)
		}
		r.parsers[d] = b.Parser
	}
	return r, nil
}

// MustRegistry 同 NewRegistry，失败时 panic
func MustRegistry(bindings ...Binding) *Registry {
	r, err := NewRegistry(bindings...)
	if err != nil {
		panic(err)
	}
	return r
}

// ParserFor 查找平台解析器
func (r *Registry) ParserFor(d dialect.Dialect) (Parser, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.parsers[d]
	return p, ok
}

// Dialects 已注册的平台（字典序）
func (r *Registry) Dialects() []dialect.Dialect {
	if r == nil {
		return nil
	}
	out := make([]dialect.Dialect, 0, len(r.parsers))
	for d := range r.parsers {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
