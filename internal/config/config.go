// Package config stores Emarsys API credentials as named profiles in the OS
// keychain and resolves them together with environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/99designs/keyring"
)

const (
	DefaultProfile = "default"

	profilePrefix     = "profile:"
	profileIndexKey   = "profiles_index"
	currentProfileKey = "current_profile"
)

// Environment variables that take precedence over stored profiles.
const (
	EnvUsername    = "EMARSYS_USERNAME"
	EnvSecret      = "EMARSYS_SECRET"
	EnvBaseURL     = "EMARSYS_BASE_URL"
	EnvProfile     = "EMARSYS_PROFILE"
	EnvFieldsFile  = "EMARSYS_FIELDS_FILE"
	EnvChoicesFile = "EMARSYS_CHOICES_FILE"
)

// ErrNotConfigured is returned when neither the environment nor the keychain
// holds credentials.
var ErrNotConfigured = errors.New("emarsys not configured - run 'emarsys auth login' first")

// Account is one set of API user credentials.
type Account struct {
	Username    string `json:"username"`
	Secret      string `json:"secret"`
	BaseURL     string `json:"base_url,omitempty"`
	FieldsFile  string `json:"fields_file,omitempty"`
	ChoicesFile string `json:"choices_file,omitempty"`
}

// Validate checks that the credentials are complete.
func (a Account) Validate() error {
	if strings.TrimSpace(a.Username) == "" {
		return errors.New("username is required")
	}
	if a.Secret == "" {
		return errors.New("secret is required")
	}
	return nil
}

func profileKey(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultProfile
	}
	return profilePrefix + name
}

func readProfileIndex(ring keyring.Keyring) ([]string, error) {
	item, err := ring.Get(profileIndexKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile index: %w", err)
	}
	var names []string
	if err := json.Unmarshal(item.Data, &names); err != nil {
		return nil, fmt.Errorf("failed to decode profile index: %w", err)
	}
	return names, nil
}

func writeProfileIndex(ring keyring.Keyring, names []string) error {
	data, err := json.Marshal(uniqueNames(names))
	if err != nil {
		return fmt.Errorf("failed to encode profile index: %w", err)
	}
	return ring.Set(keyring.Item{Key: profileIndexKey, Label: serviceName + " profiles", Data: data})
}

// uniqueNames trims names and drops blanks and duplicates, keeping order.
func uniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// SaveProfile stores account under profile and makes it the current profile.
func SaveProfile(profile string, account Account) error {
	if err := account.Validate(); err != nil {
		return err
	}
	if profile = strings.TrimSpace(profile); profile == "" {
		profile = DefaultProfile
	}

	ring, err := openRing()
	if err != nil {
		return err
	}
	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := ring.Set(keyring.Item{
		Key:   profileKey(profile),
		Label: serviceName + " " + profile,
		Data:  data,
	}); err != nil {
		return fmt.Errorf("failed to save profile %q: %w", profile, err)
	}

	names, err := readProfileIndex(ring)
	if err != nil {
		return err
	}
	if err := writeProfileIndex(ring, append(names, profile)); err != nil {
		return err
	}
	return setCurrent(ring, profile)
}

// LoadProfile returns the stored account of profile.
func LoadProfile(profile string) (Account, error) {
	ring, err := openRing()
	if err != nil {
		return Account{}, err
	}
	return loadProfile(ring, profile)
}

func loadProfile(ring keyring.Keyring, profile string) (Account, error) {
	item, err := ring.Get(profileKey(profile))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return Account{}, ErrNotConfigured
	}
	if err != nil {
		return Account{}, fmt.Errorf("failed to read profile: %w", err)
	}
	var account Account
	if err := json.Unmarshal(item.Data, &account); err != nil {
		return Account{}, fmt.Errorf("failed to decode profile: %w", err)
	}
	return account, nil
}

// DeleteProfile removes profile. When it was the current profile the first
// remaining one becomes current.
func DeleteProfile(profile string) error {
	if profile = strings.TrimSpace(profile); profile == "" {
		profile = DefaultProfile
	}
	ring, err := openRing()
	if err != nil {
		return err
	}
	if err := ring.Remove(profileKey(profile)); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("failed to remove profile %q: %w", profile, err)
	}

	names, err := readProfileIndex(ring)
	if err != nil {
		return err
	}
	remaining := make([]string, 0, len(names))
	for _, name := range names {
		if name != profile {
			remaining = append(remaining, name)
		}
	}
	if err := writeProfileIndex(ring, remaining); err != nil {
		return err
	}

	if current, err := currentProfile(ring); err == nil && current == profile {
		next := DefaultProfile
		if len(remaining) > 0 {
			next = remaining[0]
		}
		return setCurrent(ring, next)
	}
	return nil
}

// ListProfiles returns the stored profile names in the order they were added.
func ListProfiles() ([]string, error) {
	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	return readProfileIndex(ring)
}

// CurrentProfile returns the active profile name, DefaultProfile when unset.
func CurrentProfile() (string, error) {
	ring, err := openRing()
	if err != nil {
		return "", err
	}
	return currentProfile(ring)
}

func currentProfile(ring keyring.Keyring) (string, error) {
	item, err := ring.Get(currentProfileKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return DefaultProfile, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read current profile: %w", err)
	}
	if name := strings.TrimSpace(string(item.Data)); name != "" {
		return name, nil
	}
	return DefaultProfile, nil
}

// SetCurrentProfile makes an existing profile the active one.
func SetCurrentProfile(profile string) error {
	ring, err := openRing()
	if err != nil {
		return err
	}
	if _, err := loadProfile(ring, profile); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return fmt.Errorf("profile %q not found", profile)
		}
		return err
	}
	return setCurrent(ring, profile)
}

func setCurrent(ring keyring.Keyring, profile string) error {
	if profile = strings.TrimSpace(profile); profile == "" {
		profile = DefaultProfile
	}
	if err := ring.Set(keyring.Item{Key: currentProfileKey, Data: []byte(profile)}); err != nil {
		return fmt.Errorf("failed to set current profile: %w", err)
	}
	return nil
}

// AccountFromEnv returns credentials from EMARSYS_USERNAME and EMARSYS_SECRET.
// ok is false when neither is set.
func AccountFromEnv() (account Account, ok bool, err error) {
	username, secret := envValue(EnvUsername), envValue(EnvSecret)
	if username == "" && secret == "" {
		return Account{}, false, nil
	}
	if username == "" || secret == "" {
		return Account{}, true, fmt.Errorf("environment variables %s and %s must both be set", EnvUsername, EnvSecret)
	}
	return Account{Username: username, Secret: secret, BaseURL: envValue(EnvBaseURL)}, true, nil
}

// LoadAccount returns the credentials in effect: the environment first, then
// the profile named by EMARSYS_PROFILE, then the current profile.
func LoadAccount() (Account, error) {
	return loadAccount("")
}

func loadAccount(profile string) (Account, error) {
	if account, ok, err := AccountFromEnv(); ok {
		return account, err
	}
	if profile == "" {
		profile = envValue(EnvProfile)
	}
	ring, err := openRing()
	if err != nil {
		return Account{}, err
	}
	if profile == "" {
		if profile, err = currentProfile(ring); err != nil {
			return Account{}, err
		}
	}
	return loadProfile(ring, profile)
}
