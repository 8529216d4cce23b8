package ssh

import (
	"sort"
	"strings"
)

// MatchBanner 按版本串特征判定平台；多个特征命中时取最长者，未命中返回空串
//
//	"SSH-2.0-Cisco-1.25" + {"cisco": "cisco_ios"} -> "cisco_ios"
func MatchBanner(serverVersion string, banners map[string]string) string {
	v := strings.ToLower(serverVersion)
	keys := make([]string, 0, len(banners))
	for k := range banners {
		keys = append(keys, k)
	}
	// 最长特征优先，长度相同按字典序，保证结果稳定
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		needle := strings.ToLower(strings.TrimSpace(k))
		if needle != "" && strings.Contains(v, needle) {
			return banners[k]
		}
	}
	return ""
}
