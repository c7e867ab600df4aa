package client

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useConfigDir points the global config at a temp dir for the test.
func useConfigDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "ragdocs")
	path := filepath.Join(dir, "config.json")

	oldDir, oldPath := getConfigDirFunc, getConfigPathFunc
	getConfigDirFunc = func() (string, error) { return dir, nil }
	getConfigPathFunc = func() (string, error) { return path, nil }
	t.Cleanup(func() {
		getConfigDirFunc = oldDir
		getConfigPathFunc = oldPath
	})
	return path
}

func TestGetConfigDir(t *testing.T) {
	dir, err := defaultGetConfigDir()
	if err != nil {
		t.Skip("no user config dir on this machine")
	}
	assert.True(t, filepath.IsAbs(dir))
	assert.True(t, strings.HasSuffix(dir, "ragdocs"))
}

func TestLoadGlobalConfig_FileNotExists(t *testing.T) {
	useConfigDir(t)

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Nil(t, config)
}

func TestLoadGlobalConfig_InvalidJSON(t *testing.T) {
	path := useConfigDir(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("{invalid json}"), 0600))

	config, err := LoadGlobalConfig()
	assert.Nil(t, config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestSaveGlobalConfig_RoundTrip(t *testing.T) {
	path := useConfigDir(t)

	require.NoError(t, SaveGlobalConfig(&GlobalConfig{APIURL: "http://docs.internal:8008"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	require.NotNil(t, config)
	assert.Equal(t, "http://docs.internal:8008", config.APIURL)
}

func TestSaveGlobalConfig_NilConfig(t *testing.T) {
	err := SaveGlobalConfig(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config cannot be nil")
}

func TestDeleteGlobalConfig(t *testing.T) {
	path := useConfigDir(t)

	// missing file is not an error
	require.NoError(t, DeleteGlobalConfig())

	require.NoError(t, SaveGlobalConfig(&GlobalConfig{APIURL: "http://x:1"}))
	require.NoError(t, DeleteGlobalConfig())
	assert.NoFileExists(t, path)
}

func TestResolveAPIURL(t *testing.T) {
	newCmd := func(flagValue string) *cobra.Command {
		cmd := &cobra.Command{Use: "test"}
		cmd.Flags().String("api-url", "", "")
		if flagValue != "" {
			require.NoError(t, cmd.Flags().Set("api-url", flagValue))
		}
		return cmd
	}

	t.Run("flag wins", func(t *testing.T) {
		useConfigDir(t)
		t.Setenv(envAPIURL, "http://env:1")

		source, url, err := resolveAPIURL(newCmd("http://flag:1"))
		require.NoError(t, err)
		assert.Equal(t, SourceFlag, source)
		assert.Equal(t, "http://flag:1", url)
	})

	t.Run("env before config", func(t *testing.T) {
		useConfigDir(t)
		require.NoError(t, SaveGlobalConfig(&GlobalConfig{APIURL: "http://config:1"}))
		t.Setenv(envAPIURL, "http://env:1")

		source, url, err := resolveAPIURL(newCmd(""))
		require.NoError(t, err)
		assert.Equal(t, SourceEnv, source)
		assert.Equal(t, "http://env:1", url)
	})

	t.Run("global config", func(t *testing.T) {
		useConfigDir(t)
		require.NoError(t, SaveGlobalConfig(&GlobalConfig{APIURL: "http://config:1"}))
		t.Setenv(envAPIURL, "")

		source, url, err := resolveAPIURL(nil)
		require.NoError(t, err)
		assert.Equal(t, SourceGlobalConfig, source)
		assert.Equal(t, "http://config:1", url)
	})

	t.Run("default", func(t *testing.T) {
		useConfigDir(t)
		t.Setenv(envAPIURL, "")

		source, url, err := resolveAPIURL(nil)
		require.NoError(t, err)
		assert.Equal(t, SourceDefault, source)
		assert.Equal(t, defaultAPIURL, url)
	})
}
