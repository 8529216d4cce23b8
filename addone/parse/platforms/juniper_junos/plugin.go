package juniper_junos

import (
	"github.com/sshcollectorpro/devextract/addone/dialect"
	"github.com/sshcollectorpro/devextract/addone/parse"
)

// New 返回 juniper_junos 解析器
// 模板尝试顺序：
//  1. show interfaces terse（表格，含 "Interface" "Admin" "Link" 表头）
//  2. show version（"Junos:" 行）
//  3. show version（旧版 "JUNOS Software Release" 行）
func New() *parse.Chain {
	return parse.NewChain(string(dialect.JuniperJunos),
		showInterfacesTerse,
		parse.NewMarker("show_version", "Junos:", "version"),
		parse.NewMarker("show_version_legacy", "JUNOS Software Release", "version"),
	)
}
