package cisco_ios

import "github.com/sshcollectorpro/devextract/addone/parse"

// show ip interface brief 回显示例：
//
//	Interface              IP-Address      OK? Method Status                Protocol
//	GigabitEthernet0/0     10.0.0.1        YES manual up                    up
//	GigabitEthernet0/1     unassigned      YES unset  administratively down down
var showIPInterfaceBrief = parse.MustTextFSM("show_ip_interface_brief", `Value INTERFACE (\S+)
Value IP_ADDRESS (\S+)
Value STATUS (up|down|administratively down|deleted)
Value PROTOCOL (up|down)

Start
  ^${INTERFACE}\s+${IP_ADDRESS}\s+\S+\s+\S+\s+${STATUS}\s+${PROTOCOL} -> Record
`, "Interface", "IP-Address")
