package util

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestDecodeOutputUTF8Passthrough(t *testing.T) {
	s, enc := DecodeOutput([]byte("Cisco IOS Software, Version 15.2"))
	assert.Equal(t, "Cisco IOS Software, Version 15.2", s)
	assert.Equal(t, "utf-8", enc)
}

func TestDecodeOutputGBK(t *testing.T) {
	want := "接口 GigabitEthernet0/0/1 状态 UP"
	gbk, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(want))
	require.NoError(t, err)
	require.False(t, utf8.Valid(gbk))

	s, enc := DecodeOutput(gbk)
	assert.Equal(t, want, s)
	assert.Equal(t, "gb18030", enc)
}

func TestEnsureUTF8AlwaysValid(t *testing.T) {
	assert.True(t, utf8.ValidString(EnsureUTF8(string([]byte{0xff, 0xfe, 'o', 'k'}))))
}
