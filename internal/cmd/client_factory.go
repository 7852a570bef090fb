package cmd

import (
	"fmt"
	"time"

	"github.com/snowcap/emarsys-cli/internal/api"
	"github.com/snowcap/emarsys-cli/internal/config"
	"github.com/snowcap/emarsys-cli/internal/mapping"
	"github.com/snowcap/emarsys-cli/internal/validation"
)

type clientFactory struct {
	timeout   time.Duration
	userAgent string
	overrides config.Overrides
}

func newClientFactory() *clientFactory {
	return &clientFactory{
		timeout:   timeoutOverride(),
		userAgent: fmt.Sprintf("emarsys-cli/%s", version),
		overrides: config.Overrides{
			Profile:     flags.Profile,
			BaseURL:     flags.BaseURL,
			FieldsFile:  flags.FieldsFile,
			ChoicesFile: flags.ChoicesFile,
		},
	}
}

// timeoutOverride is --timeout when given; otherwise EMARSYS_TIMEOUT applies.
func timeoutOverride() time.Duration {
	if flags.TimeoutSet {
		return flags.Timeout
	}
	return 0
}

func (f *clientFactory) client() (*api.Client, error) {
	cfg, err := config.ResolveClientConfig(f.overrides)
	if err != nil {
		return nil, err
	}
	return f.newClient(cfg)
}

func (f *clientFactory) newClient(cfg config.ClientConfig) (*api.Client, error) {
	if cfg.BaseURL != "" {
		if err := validation.ValidateBaseURL(cfg.BaseURL); err != nil {
			return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
		}
	}
	return api.New(cfg.Username, cfg.Secret,
		api.WithBaseURL(cfg.BaseURL),
		api.WithMappingLoader(mapping.Files{FieldsPath: cfg.FieldsFile, ChoicesPath: cfg.ChoicesFile}),
		api.WithRetryConfig(f.retryConfig()),
		api.WithUserAgent(f.userAgent),
	)
}

// mapping loads the field and choice mappings without needing credentials.
func (f *clientFactory) mapping() (*mapping.Store, error) {
	fieldsFile, choicesFile := config.ResolveMappingFiles(f.overrides)
	return mapping.Load(mapping.Files{FieldsPath: fieldsFile, ChoicesPath: choicesFile})
}

func (f *clientFactory) retryConfig() api.RetryConfig {
	cfg := api.DefaultRetryConfig()
	if f.timeout > 0 {
		cfg.Timeout = f.timeout
	}
	if flags.MaxAttemptsSet {
		cfg.MaxAttempts = flags.MaxAttempts
	}
	if flags.RetryDelaySet {
		cfg.RetryDelay = flags.RetryDelay
	}
	return cfg
}
