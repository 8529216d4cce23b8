package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sshcollectorpro/devextract/addone/dialect"
)

// Entry 单条目录项：逻辑键 -> 实际命令
type Entry struct {
	Key     string `json:"key"`
	Command string `json:"command"`
}

// Commands 某个平台的命令集合，保持文档中的书写顺序
type Commands []Entry

// Keys 返回全部逻辑键（按顺序）
func (c Commands) Keys() []string {
	keys := make([]string, 0, len(c))
	for _, e := range c {
		keys = append(keys, e.Key)
	}
	return keys
}

// Catalog 平台 -> 命令集合的只读表
// 构造完成后不再修改，可被多个 goroutine 无锁并发读取
type Catalog struct {
	entries map[dialect.Dialect]Commands
}

// Load 从 YAML 文件加载命令目录
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read command catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse 解析 YAML 文档，形如：
//
//	cisco_ios:
//	  version: show version
//	  interfaces: show ip interface brief
//
// 使用 yaml.Node 保留映射键顺序，保证输出稳定
func Parse(data []byte) (*Catalog, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse command catalog: %w", err)
	}
	c := &Catalog{entries: make(map[dialect.Dialect]Commands)}
	if len(doc.Content) == 0 {
		return c, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("command catalog: line %d: expected mapping of dialects", root.Line)
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		name, body := root.Content[i], root.Content[i+1]
		d := dialect.Normalize(name.Value)
		if d.IsZero() {
			return nil, fmt.Errorf("command catalog: line %d: empty dialect name", name.Line)
		}
		if _, dup := c.entries[d]; dup {
			return nil, fmt.Errorf("command catalog: line %d: duplicate dialect %q", name.Line, d)
		}
		if body.Kind == yaml.ScalarNode && body.Tag == "!!null" {
			c.entries[d] = Commands{}
			continue
		}
		if body.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("command catalog: line %d: commands of %q must be a mapping", body.Line, d)
		}
		cmds := make(Commands, 0, len(body.Content)/2)
		seen := make(map[string]bool)
		for j := 0; j+1 < len(body.Content); j += 2 {
			k, v := body.Content[j], body.Content[j+1]
			if v.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("command catalog: line %d: command %q of %q must be a string", v.Line, k.Value, d)
			}
			key := strings.TrimSpace(k.Value)
			if seen[key] {
				return nil, fmt.Errorf("command catalog: line %d: duplicate key %q in %q", k.Line, key, d)
			}
			seen[key] = true
			cmds = append(cmds, Entry{Key: key, Command: strings.TrimSpace(v.Value)})
		}
		c.entries[d] = cmds
	}
	return c, nil
}

// FromMap 由内存映射构造目录，键按字典序排列（map 本身无序）
func FromMap(m map[dialect.Dialect]map[string]string) *Catalog {
	c := &Catalog{entries: make(map[dialect.Dialect]Commands, len(m))}
	for d, kv := range m {
		keys := make([]string, 0, len(kv))
		for k := range kv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		cmds := make(Commands, 0, len(keys))
		for _, k := range keys {
			cmds = append(cmds, Entry{Key: k, Command: kv[k]})
		}
		c.entries[dialect.Normalize(string(d))] = cmds
	}
	return c
}

// CommandsFor 返回平台对应的命令集合；不存在或为空时 ok=false
func (c *Catalog) CommandsFor(d dialect.Dialect) (Commands, bool) {
	if c == nil {
		return nil, false
	}
	cmds, ok := c.entries[d]
	if !ok || len(cmds) == 0 {
		return nil, false
	}
	out := make(Commands, len(cmds))
	copy(out, cmds)
	return out, true
}

// Dialects 已登记的平台（字典序）
func (c *Catalog) Dialects() []dialect.Dialect {
	if c == nil {
		return nil
	}
	out := make([]dialect.Dialect, 0, len(c.entries))
	for d := range c.entries {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
