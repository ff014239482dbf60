package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDir(t *testing.T) {
	orig := userHomeDir
	defer func() { userHomeDir = orig }()
	userHomeDir = func() (string, error) { return "/home/alice", nil }

	dir, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/alice", ".config", "tocolab"), dir)
}

func TestLoadUserConfig(t *testing.T) {
	t.Run("missing file yields empty config", func(t *testing.T) {
		cfg, err := LoadUserConfig(filepath.Join(t.TempDir(), "config.json"))
		require.NoError(t, err)
		assert.Equal(t, &UserConfig{}, cfg)
	})

	t.Run("malformed file is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

		_, err := LoadUserConfig(path)
		assert.Error(t, err)
	})

	t.Run("round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "config.json")
		want := &UserConfig{Folder: "experiments", Accelerator: "GPU", NoOpen: true}
		require.NoError(t, want.Save(path))

		got, err := LoadUserConfig(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}
