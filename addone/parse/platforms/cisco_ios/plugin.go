package cisco_ios

import (
	"github.com/sshcollectorpro/devextract/addone/dialect"
	"github.com/sshcollectorpro/devextract/addone/parse"
)

// New 返回 cisco_ios 解析器
// 模板尝试顺序：
//  1. show ip interface brief（表格，含 "Interface" 与 "IP-Address" 表头）
//  2. show version（"Cisco IOS Software" 横幅行）
//  3. show version（"Cisco IOS XE Software" 横幅行）
//  4. show version（旧版 "Cisco Internetwork Operating System Software" 后的 "IOS (tm)" 行）
func New() *parse.Chain {
	return parse.NewChain(string(dialect.CiscoIOS),
		showIPInterfaceBrief,
		parse.NewMarker("show_version", "Cisco IOS Software", "version"),
		parse.NewMarker("show_version_xe", "Cisco IOS XE Software", "version"),
		parse.NewMarker("show_version_legacy", "IOS (tm)", "version"),
	)
}
