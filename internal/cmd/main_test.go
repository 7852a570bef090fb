package cmd

import (
	"os"
	"testing"

	"github.com/99designs/keyring"

	"github.com/snowcap/emarsys-cli/internal/config"
)

// testRing is the in-memory keychain shared by every test in the package.
var testRing = keyring.NewArrayKeyring(nil)

func TestMain(m *testing.M) {
	// Keep EMARSYS_OUTPUT from the shell out of the tests.
	_ = os.Setenv(EnvOutput, "text")

	cleanup := config.SetOpenKeyring(func(keyring.Config) (keyring.Keyring, error) {
		return testRing, nil
	})
	code := m.Run()
	cleanup()
	os.Exit(code)
}

// resetKeyring removes all stored profiles.
func resetKeyring(t *testing.T) {
	t.Helper()
	keys, err := testRing.Keys()
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	for _, k := range keys {
		_ = testRing.Remove(k)
	}
}
