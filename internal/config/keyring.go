package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/99designs/keyring"
)

const serviceName = "emarsys-cli"

const (
	envKeyringBackend  = "EMARSYS_KEYRING_BACKEND"
	envKeyringPassword = "EMARSYS_KEYRING_PASSWORD"
	envCredentialsDir  = "EMARSYS_CREDENTIALS_DIR"
)

// backendMode selects which keyring backends may be used.
type backendMode string

const (
	backendAuto   backendMode = "auto"
	backendFile   backendMode = "file"
	backendSystem backendMode = "system"
)

// openKeyring opens the credential store. Tests swap it for an in-memory ring.
var openKeyring = keyring.Open

var userConfigDir = os.UserConfigDir

var stdinIsTerminal = func() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// SetOpenKeyring replaces the keyring opener and returns a function restoring
// the previous one.
func SetOpenKeyring(fn func(keyring.Config) (keyring.Keyring, error)) func() {
	previous := openKeyring
	openKeyring = fn
	return func() { openKeyring = previous }
}

func openRing() (keyring.Keyring, error) {
	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return ring, nil
}

func keyringConfig() keyring.Config {
	cfg := keyring.Config{ServiceName: serviceName}

	mode := currentBackendMode()
	if mode == backendSystem {
		return cfg
	}

	// In auto mode the file backend stays available as a fallback for
	// machines without a native secret store.
	cfg.FileDir = keyringFileDir()
	cfg.FilePasswordFunc = keyringFilePassword

	if forceFileBackend(runtime.GOOS, mode, os.Getenv("DBUS_SESSION_BUS_ADDRESS")) {
		cfg.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
	}
	return cfg
}

func currentBackendMode() backendMode {
	switch strings.ToLower(envValue(envKeyringBackend)) {
	case string(backendFile):
		return backendFile
	case string(backendSystem), "os", "native":
		return backendSystem
	default:
		return backendAuto
	}
}

// forceFileBackend reports whether only the encrypted file backend may be used.
// Headless Linux has no secret service to talk to.
func forceFileBackend(goos string, mode backendMode, dbusAddr string) bool {
	switch mode {
	case backendFile:
		return true
	case backendAuto:
		return goos == "linux" && strings.TrimSpace(dbusAddr) == ""
	default:
		return false
	}
}

func keyringFileDir() string {
	base := envValue(envCredentialsDir)
	if base == "" {
		if dir, err := userConfigDir(); err == nil && strings.TrimSpace(dir) != "" {
			base = filepath.Join(dir, serviceName)
		}
	}
	if base == "" {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			base = filepath.Join(home, ".config", serviceName)
		}
	}
	if base == "" {
		base = filepath.Join(os.TempDir(), serviceName)
	}
	return filepath.Join(base, "keyring")
}

func keyringFilePassword(prompt string) (string, error) {
	if password, ok := os.LookupEnv(envKeyringPassword); ok && strings.TrimSpace(password) != "" {
		return password, nil
	}
	if !stdinIsTerminal() {
		return "", fmt.Errorf("set %s to use the file keyring without a terminal", envKeyringPassword)
	}
	return keyring.TerminalPrompt(prompt)
}

func envValue(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
