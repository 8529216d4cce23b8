package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 22, cfg.SSH.Port)
	assert.Equal(t, 10*time.Second, cfg.SSH.ConnectTimeout)
	assert.Equal(t, "autodetect", cfg.Detect.Strategy)
	assert.Equal(t, "configs/commands.yaml", cfg.Catalog.Path)
	assert.Equal(t, "cisco_ios", cfg.SSH.Banners["cisco"])
	assert.False(t, cfg.Parser.RawWhenMissing)
	assert.Equal(t, 8, cfg.Batch.Concurrency)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
ssh:
  port: 2222
  connect_timeout: 3s
detect:
  strategy: introspect
parser:
  raw_when_missing: true
storage:
  backend: minio
  minio:
    access_key: ${DEVEXTRACT_TEST_AK}
`)
	t.Setenv("DEVEXTRACT_TEST_AK", "ak-from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2222, cfg.SSH.Port)
	assert.Equal(t, 3*time.Second, cfg.SSH.ConnectTimeout)
	assert.Equal(t, "introspect", cfg.Detect.Strategy)
	assert.True(t, cfg.Parser.RawWhenMissing)
	assert.Equal(t, "minio", cfg.Storage.Backend)
	assert.Equal(t, "ak-from-env", cfg.Storage.Minio.AccessKey)
	// 未覆盖的键保持默认
	assert.Equal(t, "configs/commands.yaml", cfg.Catalog.Path)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := Load(writeConfig(t, "detect:\n  strategy: guess\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "storage:\n  backend: s3\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "ssh:\n  port: 0\n"))
	assert.Error(t, err)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
