package ssh

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// ErrNoSignature 探测命令的输出未命中任何平台特征
var ErrNoSignature = errors.New("ssh: no platform signature matched")

// Signature 平台特征：执行 Command 后，输出命中任一 Patterns 即记 Priority 分
type Signature struct {
	DeviceType string
	Command    string
	Patterns   []*regexp.Regexp
	Priority   int
}

// maxPriority 命中即结束探测
const maxPriority = 99

// DefaultSignatures 默认平台特征表，顺序即同分时的优先级
var DefaultSignatures = []Signature{
	{
		DeviceType: "cisco_ios",
		Command:    "show version",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`Cisco IOS Software`),
			regexp.MustCompile(`Cisco Internetwork Operating System Software`),
		},
		Priority: maxPriority,
	},
	{
		DeviceType: "cisco_nxos",
		Command:    "show version",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`Cisco Nexus Operating System`),
			regexp.MustCompile(`NX-OS`),
		},
		Priority: maxPriority,
	},
	{
		DeviceType: "cisco_xr",
		Command:    "show version",
		Patterns:   []*regexp.Regexp{regexp.MustCompile(`Cisco IOS XR`)},
		Priority:   maxPriority,
	},
	{
		DeviceType: "juniper_junos",
		Command:    "show version",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`JUNOS Software Release`),
			regexp.MustCompile(`JUNOS .+ Software`),
			regexp.MustCompile(`(?m)^Junos: `),
		},
		Priority: maxPriority,
	},
	{
		DeviceType: "arista_eos",
		Command:    "show version",
		Patterns:   []*regexp.Regexp{regexp.MustCompile(`(?i)Arista`)},
		Priority:   maxPriority,
	},
	{
		DeviceType: "huawei",
		Command:    "display version",
		Patterns:   []*regexp.Regexp{regexp.MustCompile(`Huawei Versatile Routing Platform Software`)},
		Priority:   maxPriority,
	},
}

// Autodetect 在已建立的连接上执行探测命令并按特征表判定平台
// 同一探测命令只执行一次；得分最高者胜出，同分按特征表顺序
func (c *Client) Autodetect(ctx context.Context, signatures []Signature) (string, error) {
	if len(signatures) == 0 {
		signatures = DefaultSignatures
	}
	if !c.IsConnected() {
		return "", ErrNotConnected
	}

	outputs := make(map[string]string)
	var lastErr error
	best, bestPriority := "", 0

	for _, sig := range signatures {
		out, ok := outputs[sig.Command]
		if !ok {
			res, err := c.ExecuteCommand(ctx, sig.Command)
			if err != nil {
				if errors.Is(err, ErrNotConnected) || ctx.Err() != nil {
					return "", err
				}
				// 设备不认识该探测命令，缓存空输出继续
				lastErr = err
			}
			if res != nil {
				out = string(res.Output)
			}
			outputs[sig.Command] = out
		}
		if out == "" || sig.Priority <= bestPriority {
			continue
		}
		for _, p := range sig.Patterns {
			if p.MatchString(out) {
				best, bestPriority = sig.DeviceType, sig.Priority
				break
			}
		}
		if bestPriority >= maxPriority {
			break
		}
	}

	if best == "" {
		if lastErr != nil {
			return "", fmt.Errorf("%w (last probe error: %v)", ErrNoSignature, lastErr)
		}
		return "", ErrNoSignature
	}
	return best, nil
}
