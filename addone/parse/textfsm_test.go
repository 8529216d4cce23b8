package parse

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const arpTemplate = `Value Required ADDRESS (\d+\.\d+\.\d+\.\d+)
Value MAC (\S+)
Value INTERFACE (\S+)

Start
  ^Internet\s+${ADDRESS}\s+\S+\s+${MAC}\s+ARPA\s+${INTERFACE} -> Record
`

func TestTextFSMExtractsOneRecordPerRow(t *testing.T) {
	tmpl, err := NewTextFSM("show_arp", arpTemplate, "Protocol", "Hardware Addr")
	require.NoError(t, err)
	assert.Equal(t, []string{"address", "mac", "interface"}, tmpl.Fields())

	out := `Protocol  Address          Age (min)  Hardware Addr   Type   Interface
Internet  10.0.0.1                -   0011.2233.4455  ARPA   GigabitEthernet0/0
Internet  10.0.0.2               12   0011.2233.4466  ARPA   GigabitEthernet0/0
Internet  10.0.1.1                -   0011.2233.4477  ARPA   Vlan10
`
	require.True(t, tmpl.Match(out))
	res, ok := tmpl.Extract(out)
	require.True(t, ok)
	require.Equal(t, KindTable, res.Kind())

	want := []Record{
		{"address": "10.0.0.1", "mac": "0011.2233.4455", "interface": "GigabitEthernet0/0"},
		{"address": "10.0.0.2", "mac": "0011.2233.4466", "interface": "GigabitEthernet0/0"},
		{"address": "10.0.1.1", "mac": "0011.2233.4477", "interface": "Vlan10"},
	}
	if d := cmp.Diff(want, res.Table()); d != "" {
		t.Error(d)
	}
}

func TestTextFSMMarkers(t *testing.T) {
	tmpl := MustTextFSM("show_arp", arpTemplate, "Protocol", "Hardware Addr")
	assert.False(t, tmpl.Match("Protocol only"))

	noMarkers := MustTextFSM("any", arpTemplate)
	assert.False(t, noMarkers.Match("Protocol Hardware Addr"))
}

func TestTextFSMRejectsBrokenTemplate(t *testing.T) {
	broken := "Value X (\\S+\n\nStart\n  ^${X} -> Record\n"
	_, err := NewTextFSM("broken", broken)
	assert.Error(t, err)

	assert.Panics(t, func() { MustTextFSM("broken", broken) })
}

func TestValueNames(t *testing.T) {
	names := valueNames("Value Filldown,Required HOST (\\S+)\nValue List VLANS (\\d+)\nValue PORT (\\S+)\n\nStart\n")
	assert.Equal(t, []string{"HOST", "VLANS", "PORT"}, names)
}

func TestStringValue(t *testing.T) {
	assert.Equal(t, "", stringValue(nil))
	assert.Equal(t, "a", stringValue("a"))
	assert.Equal(t, "1,2", stringValue([]string{"1", "2"}))
	assert.Equal(t, "1,2", stringValue([]interface{}{"1", 2}))
	assert.Equal(t, "7", stringValue(7))
}
