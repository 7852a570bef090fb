package config

import (
	"path/filepath"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyringConfig_Auto(t *testing.T) {
	t.Setenv(envKeyringBackend, "")
	t.Setenv(envCredentialsDir, "")

	cfg := keyringConfig()
	assert.Equal(t, serviceName, cfg.ServiceName)
	assert.NotEmpty(t, cfg.FileDir)
	assert.NotNil(t, cfg.FilePasswordFunc)
}

func TestKeyringConfig_File(t *testing.T) {
	base := t.TempDir()
	t.Setenv(envKeyringBackend, "file")
	t.Setenv(envCredentialsDir, base)

	cfg := keyringConfig()
	assert.Equal(t, []keyring.BackendType{keyring.FileBackend}, cfg.AllowedBackends)
	assert.Equal(t, filepath.Join(base, "keyring"), cfg.FileDir)
}

func TestKeyringConfig_System(t *testing.T) {
	t.Setenv(envKeyringBackend, "native")

	cfg := keyringConfig()
	assert.Empty(t, cfg.FileDir)
	assert.Nil(t, cfg.FilePasswordFunc)
	assert.Empty(t, cfg.AllowedBackends)
}

func TestCurrentBackendMode(t *testing.T) {
	cases := map[string]backendMode{
		"":       backendAuto,
		"auto":   backendAuto,
		"FILE":   backendFile,
		"system": backendSystem,
		"os":     backendSystem,
		"weird":  backendAuto,
	}
	for value, want := range cases {
		t.Setenv(envKeyringBackend, value)
		assert.Equal(t, want, currentBackendMode(), "value %q", value)
	}
}

func TestForceFileBackend(t *testing.T) {
	assert.True(t, forceFileBackend("darwin", backendFile, "ignored"))
	assert.True(t, forceFileBackend("linux", backendAuto, ""))
	assert.False(t, forceFileBackend("linux", backendAuto, "unix:path=/run/user/1000/bus"))
	assert.False(t, forceFileBackend("linux", backendSystem, ""))
	assert.False(t, forceFileBackend("windows", backendAuto, ""))
}

func TestKeyringFileDir_UserConfigDir(t *testing.T) {
	t.Setenv(envCredentialsDir, "")
	dir := t.TempDir()
	previous := userConfigDir
	userConfigDir = func() (string, error) { return dir, nil }
	t.Cleanup(func() { userConfigDir = previous })

	assert.Equal(t, filepath.Join(dir, serviceName, "keyring"), keyringFileDir())
}

func TestKeyringFilePassword(t *testing.T) {
	t.Setenv(envKeyringPassword, "pw")
	got, err := keyringFilePassword("prompt")
	require.NoError(t, err)
	assert.Equal(t, "pw", got)

	t.Setenv(envKeyringPassword, "")
	previous := stdinIsTerminal
	stdinIsTerminal = func() bool { return false }
	t.Cleanup(func() { stdinIsTerminal = previous })

	_, err = keyringFilePassword("prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), envKeyringPassword)
}
