package simulate

// DefaultPassword 模拟器统一登录密码
const DefaultPassword = "nova"

const ciscoIOSVersion = `Cisco IOS Software, Version 15.2
Technical Support: http://www.cisco.com/techsupport
Copyright (c) 1986-2016 by Cisco Systems, Inc.

ROM: Bootstrap program is IOSv

R1 uptime is 2 hours, 11 minutes
System image file is "flash0:/vios-adventerprisek9-m"
`

const ciscoIOSInterfaces = `Interface              IP-Address      OK? Method Status                Protocol
GigabitEthernet0/0     192.168.1.1     YES manual up                    up
GigabitEthernet0/1     unassigned      YES unset  administratively down down
Loopback0              10.0.0.1        YES manual up                    up
`

const junosVersion = `Hostname: vmx1
Model: vmx
Junos: 18.2R1.9
JUNOS OS Kernel 64-bit  [20180614.6c3f819_builder_stable_11]
JUNOS OS libs [20180614.6c3f819_builder_stable_11]
`

const junosInterfaces = `Interface               Admin Link Proto    Local                 Remote
ge-0/0/0                up    up
ge-0/0/0.0              up    up   inet     10.0.0.1/24
lo0                     up    up
lo0.0                   up    up   inet     127.0.0.1           --> 0/0
`

const aristaVersion = `Arista vEOS
Hardware version:
Serial number:
System MAC address:  5254.0012.3456

Software image version: 4.22.4M
`

const linuxUname = `Linux sim 6.1.0 #1 SMP x86_64 GNU/Linux
`

// Profile 按平台返回内置的命令输出
func Profile(deviceType string) map[string]string {
	switch deviceType {
	case "cisco_ios":
		return map[string]string{
			"show version":            ciscoIOSVersion,
			"show ip interface brief": ciscoIOSInterfaces,
		}
	case "juniper_junos":
		return map[string]string{
			"show version":          junosVersion,
			"show interfaces terse": junosInterfaces,
		}
	case "arista_eos":
		return map[string]string{
			"show version": aristaVersion,
		}
	default:
		return map[string]string{
			"uname -a": linuxUname,
		}
	}
}

// DefaultConfig 内置四台设备：cisco-01、junos-01、arista-01 与无法识别平台的 linux-01
func DefaultConfig() *Config {
	devices := map[string]DeviceConfig{}
	for name, dt := range map[string]string{
		"cisco-01":  "cisco_ios",
		"junos-01":  "juniper_junos",
		"arista-01": "arista_eos",
		"linux-01":  "linux",
	} {
		devices[name] = DeviceConfig{DeviceType: dt, Outputs: Profile(dt)}
	}
	return &Config{
		Listen:   "127.0.0.1:0",
		Password: DefaultPassword,
		Devices:  devices,
	}
}
