package dialect

import "strings"

// Dialect 设备厂商/操作系统族标识（如 cisco_ios、juniper_junos）
// 作为命令目录与解析器注册表之间的连接键，值本身不携带任何会话状态
type Dialect string

const (
	// Autodetect 中性提示：会话以未知平台身份打开，由会话层自行判定
	Autodetect Dialect = "autodetect"

	CiscoIOS     Dialect = "cisco_ios"
	CiscoXE      Dialect = "cisco_xe"
	CiscoNXOS    Dialect = "cisco_nxos"
	CiscoXR      Dialect = "cisco_xr"
	JuniperJunos Dialect = "juniper_junos"
	AristaEOS    Dialect = "arista_eos"
	Huawei       Dialect = "huawei"
)

// Normalize 统一大小写与首尾空白
func Normalize(s string) Dialect {
	return Dialect(strings.ToLower(strings.TrimSpace(s)))
}

func (d Dialect) String() string { return string(d) }

// IsZero 未判定
func (d Dialect) IsZero() bool { return strings.TrimSpace(string(d)) == "" }

// IsAutodetect 是否为中性提示
func (d Dialect) IsAutodetect() bool { return d == Autodetect }
