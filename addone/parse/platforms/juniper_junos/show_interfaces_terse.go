package juniper_junos

import "github.com/sshcollectorpro/devextract/addone/parse"

// show interfaces terse 回显示例：
//
//	Interface               Admin Link Proto    Local                 Remote
//	ge-0/0/0                up    up
//	ge-0/0/0.0              up    up   inet     192.168.1.1/24
//	ge-0/0/1.0              up    up   eth-switch
//
// 未配置协议的物理口 proto/local 为空串；二层子接口只有 proto
var showInterfacesTerse = parse.MustTextFSM("show_interfaces_terse", `Value INTERFACE (\S+)
Value ADMIN (up|down)
Value LINK (up|down)
Value PROTO (\S+)
Value LOCAL (\S+)

Start
  ^${INTERFACE}\s+${ADMIN}\s+${LINK}\s+${PROTO}\s+${LOCAL} -> Record
  ^${INTERFACE}\s+${ADMIN}\s+${LINK}\s+${PROTO}\s*$$ -> Record
  ^${INTERFACE}\s+${ADMIN}\s+${LINK} -> Record
`, "Interface", "Admin", "Link")
