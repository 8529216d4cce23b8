package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshcollectorpro/devextract/addone/catalog"
	"github.com/sshcollectorpro/devextract/addone/dialect"
	"github.com/sshcollectorpro/devextract/addone/parse/platforms"
	"github.com/sshcollectorpro/devextract/internal/config"
	"github.com/sshcollectorpro/devextract/internal/detect"
	"github.com/sshcollectorpro/devextract/simulate"
)

func startSimulator(t *testing.T, banner string, mutate func(*simulate.Config)) *simulate.Server {
	t.Helper()
	cfg := simulate.DefaultConfig()
	cfg.Banner = banner
	if mutate != nil {
		mutate(cfg)
	}
	srv, err := simulate.Start(cfg)
	require.NoError(t, err)
	t.Cleanup(srv.Stop)
	return srv
}

func simSSHConfig() config.SSHConfig {
	return config.SSHConfig{
		Port:           22,
		ConnectTimeout: 3 * time.Second,
		CommandTimeout: 3 * time.Second,
		Banners:        map[string]string{"cisco": "cisco_ios"},
	}
}

func defaultCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Parse([]byte(`
cisco_ios:
  version: show version
  interfaces: show ip interface brief
juniper_junos:
  version: show version
  interfaces: show interfaces terse
`))
	require.NoError(t, err)
	return cat
}

func simOrchestrator(t *testing.T, strategy string) *Orchestrator {
	t.Helper()
	dialer := NewSSHDialer(simSSHConfig())
	det, err := NewDetector(strategy, dialer)
	require.NoError(t, err)
	return NewOrchestrator(det, defaultCatalog(t), platforms.Registry(), dialer, Options{})
}

func simTarget(srv *simulate.Server, user, password string) Target {
	return Target{Host: fmt.Sprintf("127.0.0.1:%d", srv.Port()), Username: user, Password: password}
}

func TestSSHAutodetectCisco(t *testing.T) {
	srv := startSimulator(t, "OpenSSH_9.6", nil)
	o := simOrchestrator(t, StrategyAutodetect)

	res, err := o.Execute(context.Background(), simTarget(srv, "cisco-01", simulate.DefaultPassword))
	require.NoError(t, err)
	assert.Equal(t, dialect.CiscoIOS, res.Dialect)

	var doc struct {
		Version    map[string]string   `json:"version"`
		Interfaces []map[string]string `json:"interfaces"`
	}
	b, err := json.Marshal(res)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.Equal(t, "Cisco IOS Software, Version 15.2", doc.Version["version"])
	require.Len(t, doc.Interfaces, 3)
	assert.Equal(t, "administratively down", doc.Interfaces[1]["status"])
}

func TestSSHAutodetectJunos(t *testing.T) {
	srv := startSimulator(t, "OpenSSH_9.6", nil)
	o := simOrchestrator(t, StrategyAutodetect)

	res, err := o.Execute(context.Background(), simTarget(srv, "junos-01", simulate.DefaultPassword))
	require.NoError(t, err)
	assert.Equal(t, dialect.JuniperJunos, res.Dialect)

	terse, ok := res.Get("interfaces")
	require.True(t, ok)
	rows := terse.Parsed.Table()
	require.Len(t, rows, 4)
	assert.Equal(t, "inet", rows[1]["proto"])
	assert.Equal(t, "", rows[0]["proto"])
}

func TestSSHIntrospectFromBanner(t *testing.T) {
	srv := startSimulator(t, "Cisco-1.25", nil)
	o := simOrchestrator(t, StrategyIntrospect)

	res, err := o.Execute(context.Background(), simTarget(srv, "cisco-01", simulate.DefaultPassword))
	require.NoError(t, err)
	assert.Equal(t, dialect.CiscoIOS, res.Dialect)
	assert.Zero(t, res.FailedCount())
}

func TestSSHIntrospectUnknownBanner(t *testing.T) {
	srv := startSimulator(t, "OpenSSH_9.6", nil)
	o := simOrchestrator(t, StrategyIntrospect)

	_, err := o.Execute(context.Background(), simTarget(srv, "cisco-01", simulate.DefaultPassword))
	var f *detect.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, detect.KindUndetermined, f.Kind)
	assert.Equal(t, "Could not detect device OS: no dialect could be determined", err.Error())
}

func TestSSHAuthFailureIsDistinct(t *testing.T) {
	srv := startSimulator(t, "Cisco-1.25", nil)

	for _, strategy := range []string{StrategyAutodetect, StrategyIntrospect} {
		t.Run(strategy, func(t *testing.T) {
			o := simOrchestrator(t, strategy)
			_, err := o.Execute(context.Background(), simTarget(srv, "cisco-01", "wrong"))
			var f *detect.Failure
			require.ErrorAs(t, err, &f)
			assert.Equal(t, detect.KindAuth, f.Kind)
			assert.Equal(t, "Could not detect device OS: authentication failed", err.Error())
		})
	}
}

func TestSSHUndeterminedDevice(t *testing.T) {
	srv := startSimulator(t, "OpenSSH_9.6", nil)
	o := simOrchestrator(t, StrategyAutodetect)

	_, err := o.Execute(context.Background(), simTarget(srv, "linux-01", simulate.DefaultPassword))
	var f *detect.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, detect.KindUndetermined, f.Kind)
}

func TestSSHDroppedCommandRecordedInline(t *testing.T) {
	srv := startSimulator(t, "OpenSSH_9.6", func(c *simulate.Config) {
		dev := c.Devices["cisco-01"]
		dev.Fail = []string{"show ip interface brief"}
		c.Devices["cisco-01"] = dev
	})
	o := simOrchestrator(t, StrategyAutodetect)

	res, err := o.Execute(context.Background(), simTarget(srv, "cisco-01", simulate.DefaultPassword))
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	b, err := json.Marshal(res)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.JSONEq(t, `{"error":"Command execution failed"}`, string(doc["interfaces"]))
	assert.JSONEq(t, `{"version":"Cisco IOS Software, Version 15.2"}`, string(doc["version"]))
}

func TestSSHDialerOutputIsNormalized(t *testing.T) {
	srv := startSimulator(t, "OpenSSH_9.6", nil)
	dialer := NewSSHDialer(simSSHConfig())

	sess, err := dialer.Dial(context.Background(), simTarget(srv, "cisco-01", simulate.DefaultPassword), dialect.CiscoIOS)
	require.NoError(t, err)
	defer sess.Close()

	out, err := sess.Run(context.Background(), "show version")
	require.NoError(t, err)
	assert.NotContains(t, out, "\r")
	assert.Contains(t, out, "Cisco IOS Software, Version 15.2\n")

	assert.NoError(t, sess.Close())
	assert.NoError(t, sess.Close())
}

func TestSplitHostPort(t *testing.T) {
	h, p := splitHostPort("10.0.0.1", 22)
	assert.Equal(t, "10.0.0.1", h)
	assert.Equal(t, 22, p)

	h, p = splitHostPort("10.0.0.1:2222", 22)
	assert.Equal(t, "10.0.0.1", h)
	assert.Equal(t, 2222, p)

	h, p = splitHostPort("[::1]:70000", 22)
	assert.Equal(t, "::1", h)
	assert.Equal(t, 22, p)
}
