// Package platforms 汇总内置的各平台解析器
package platforms

import (
	"github.com/sshcollectorpro/devextract/addone/dialect"
	"github.com/sshcollectorpro/devextract/addone/parse"
	"github.com/sshcollectorpro/devextract/addone/parse/platforms/cisco_ios"
	"github.com/sshcollectorpro/devextract/addone/parse/platforms/juniper_junos"
)

// Registry 构造内置解析器注册表，新增厂商在此追加一条绑定
func Registry() *parse.Registry {
	return parse.MustRegistry(
		parse.Binding{Dialect: dialect.CiscoIOS, Parser: cisco_ios.New()},
		parse.Binding{Dialect: dialect.JuniperJunos, Parser: juniper_junos.New()},
	)
}
