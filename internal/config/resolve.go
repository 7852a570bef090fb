package config

import "strings"

// Overrides are command-line values that win over stored settings.
type Overrides struct {
	Profile     string
	BaseURL     string
	FieldsFile  string
	ChoicesFile string
}

// ClientConfig holds everything needed to build an API client.
type ClientConfig struct {
	Username    string
	Secret      string
	BaseURL     string
	FieldsFile  string
	ChoicesFile string
}

// ResolveClientConfig merges, from lowest to highest precedence, the stored
// profile, the EMARSYS_* environment and o.
func ResolveClientConfig(o Overrides) (ClientConfig, error) {
	account, err := loadAccount(strings.TrimSpace(o.Profile))
	if err != nil {
		return ClientConfig{}, err
	}
	cfg := ClientConfig{
		Username:    account.Username,
		Secret:      account.Secret,
		BaseURL:     account.BaseURL,
		FieldsFile:  account.FieldsFile,
		ChoicesFile: account.ChoicesFile,
	}
	applyMappingFiles(&cfg, o)
	cfg.BaseURL = firstNonEmpty(o.BaseURL, envValue(EnvBaseURL), cfg.BaseURL)
	return cfg, nil
}

// ResolveMappingFiles returns the mapping files in effect without requiring
// credentials. Stored profiles are consulted only when they can be read.
func ResolveMappingFiles(o Overrides) (fieldsFile, choicesFile string) {
	var cfg ClientConfig
	if account, err := loadAccount(strings.TrimSpace(o.Profile)); err == nil {
		cfg.FieldsFile, cfg.ChoicesFile = account.FieldsFile, account.ChoicesFile
	}
	applyMappingFiles(&cfg, o)
	return cfg.FieldsFile, cfg.ChoicesFile
}

func applyMappingFiles(cfg *ClientConfig, o Overrides) {
	cfg.FieldsFile = firstNonEmpty(o.FieldsFile, envValue(EnvFieldsFile), cfg.FieldsFile)
	cfg.ChoicesFile = firstNonEmpty(o.ChoicesFile, envValue(EnvChoicesFile), cfg.ChoicesFile)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
