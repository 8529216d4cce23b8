package ssh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchBanner(t *testing.T) {
	banners := map[string]string{
		"cisco":     "cisco_ios",
		"huawei":    "huawei",
		"cisco-nx":  "cisco_nxos",
		"netscreen": "juniper_screenos",
	}

	assert.Equal(t, "cisco_ios", MatchBanner("SSH-2.0-Cisco-1.25", banners))
	assert.Equal(t, "cisco_nxos", MatchBanner("SSH-2.0-Cisco-NX-2.0", banners))
	assert.Equal(t, "huawei", MatchBanner("SSH-2.0-HUAWEI-1.5", banners))
	assert.Empty(t, MatchBanner("SSH-2.0-OpenSSH_9.6", banners))
	assert.Empty(t, MatchBanner("SSH-2.0-Cisco-1.25", nil))
}
