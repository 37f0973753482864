package am

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWatcher_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "am.toml")
	require.NoError(t, os.WriteFile(path, []byte("[gates]\nmin_length = 30\n"), 0644))

	cw, err := NewConfigWatcher(path)
	require.NoError(t, err)
	defer cw.Stop()
	cw.loader = func() (*Config, error) { return LoadFromFile(path) }

	var got *Config
	cw.OnReload(func(cfg *Config) error {
		got = cfg
		return nil
	})

	require.NoError(t, cw.reload())
	require.NotNil(t, got)
	assert.Equal(t, 30, got.Gates.MinLength)
}

func TestConfigWatcher_InvalidConfigKeepsCallbacksQuiet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "am.toml")
	require.NoError(t, os.WriteFile(path, []byte("[gates]\nmin_length = -3\n"), 0644))

	cw, err := NewConfigWatcher(path)
	require.NoError(t, err)
	defer cw.Stop()
	cw.loader = func() (*Config, error) { return LoadFromFile(path) }

	called := false
	cw.OnReload(func(*Config) error {
		called = true
		return nil
	})

	err = cw.reload()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gates.min_length")
	assert.False(t, called)
}

func TestNewConfigWatcher_MissingFile(t *testing.T) {
	_, err := NewConfigWatcher(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
