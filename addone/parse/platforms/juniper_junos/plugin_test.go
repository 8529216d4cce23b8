package juniper_junos

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshcollectorpro/devextract/addone/parse"
)

func TestShowInterfacesTerse(t *testing.T) {
	out := `Interface               Admin Link Proto    Local                 Remote
ge-0/0/0                up    up
ge-0/0/0.0              up    up   inet     192.168.1.1/24
ge-0/0/1                down  down
ge-0/0/2.0              up    up   eth-switch
lo0.0                   up    up   inet     10.255.0.1          --> 0/0
`
	res := New().Parse(out)
	require.Equal(t, parse.KindTable, res.Kind())

	want := []parse.Record{
		{"interface": "ge-0/0/0", "admin": "up", "link": "up", "proto": "", "local": ""},
		{"interface": "ge-0/0/0.0", "admin": "up", "link": "up", "proto": "inet", "local": "192.168.1.1/24"},
		{"interface": "ge-0/0/1", "admin": "down", "link": "down", "proto": "", "local": ""},
		{"interface": "ge-0/0/2.0", "admin": "up", "link": "up", "proto": "eth-switch", "local": ""},
		{"interface": "lo0.0", "admin": "up", "link": "up", "proto": "inet", "local": "10.255.0.1"},
	}
	if d := cmp.Diff(want, res.Table()); d != "" {
		t.Error(d)
	}
}

func TestShowVersion(t *testing.T) {
	out := "Hostname: edge1\nModel: mx204\nJunos: 21.2R3-S2.9\nJUNOS OS Kernel 64-bit\n"
	res := New().Parse(out)
	require.Equal(t, parse.KindRecord, res.Kind())
	assert.Equal(t, parse.Record{"version": "Junos: 21.2R3-S2.9"}, res.Record())
}

func TestShowVersionLegacy(t *testing.T) {
	out := "Hostname: old1\nModel: j2320\nJUNOS Software Release [10.4R6.5]\n"
	assert.Equal(t, parse.Record{"version": "JUNOS Software Release [10.4R6.5]"}, New().Parse(out).Record())
}

func TestUnknownOutputFallsBack(t *testing.T) {
	out := "{master:0}\nuser@edge1> "
	res := New().Parse(out)
	raw, ok := res.Raw()
	require.True(t, ok)
	assert.Equal(t, out, raw)
}
