package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/snowcap/emarsys-cli/internal/api"
	"github.com/snowcap/emarsys-cli/internal/config"
	"github.com/snowcap/emarsys-cli/internal/validation"
)

// newAuthCmd returns the auth command with subcommands
func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "auth",
		Aliases: []string{"au"},
		Short:   "Manage API user credentials",
		Long:    "Store Emarsys API user credentials as named profiles in your OS keychain.",
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthStatusCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthProfilesCmd())
	cmd.AddCommand(newAuthUseCmd())

	return cmd
}

// newAuthLoginCmd creates the auth login command
func newAuthLoginCmd() *cobra.Command {
	var (
		username    string
		secret      string
		baseURL     string
		fieldsFile  string
		choicesFile string
		profile     string
		envFile     string
		verify      bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save API user credentials",
		Long: strings.TrimSpace(`
Save Emarsys API user credentials securely to your OS keychain.

You'll need the API user name and secret from Management > Security Settings >
API Users. Optional mapping files replace the built-in field and choice names
for this profile.
`),
		Example: strings.TrimSpace(`
  # Save the default profile
  emarsys auth login --username acme001 --secret s3cr3t

  # Save a second account and check the credentials against the API
  emarsys auth login --name staging --username acme002 --secret s3cr3t --verify

  # Load EMARSYS_* values from a .env file
  emarsys auth login --env-file .env
`),
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			if envFile != "" {
				envVars, err := loadAuthEnvFile(envFile)
				if err != nil {
					return err
				}
				applyAuthEnvFileRuntimeVars(envVars)

				fill := func(dst *string, key string) {
					if *dst == "" {
						*dst = strings.TrimSpace(envVars[key])
					}
				}
				fill(&username, config.EnvUsername)
				fill(&secret, config.EnvSecret)
				fill(&baseURL, config.EnvBaseURL)
				fill(&fieldsFile, config.EnvFieldsFile)
				fill(&choicesFile, config.EnvChoicesFile)
				if !flagOrAliasChanged(cmd, "name") {
					if envProfile := strings.TrimSpace(envVars[config.EnvProfile]); envProfile != "" {
						profile = envProfile
					}
				}
			}

			if !flagOrAliasChanged(cmd, "name") && flags.Profile != "" {
				profile = flags.Profile
			}
			if username == "" {
				return fmt.Errorf("--username is required")
			}
			if secret == "" {
				return fmt.Errorf("--secret is required")
			}

			account := config.Account{
				Username:    strings.TrimSpace(username),
				Secret:      secret,
				BaseURL:     strings.TrimSpace(baseURL),
				FieldsFile:  strings.TrimSpace(fieldsFile),
				ChoicesFile: strings.TrimSpace(choicesFile),
			}

			if account.BaseURL != "" {
				if err := validation.ValidateBaseURL(account.BaseURL); err != nil {
					return fmt.Errorf("--url: %w", err)
				}
			}

			var quota *api.RateLimitInfo
			if verify {
				client, err := newClientFactory().newClient(config.ClientConfig{
					Username:    account.Username,
					Secret:      account.Secret,
					BaseURL:     account.BaseURL,
					FieldsFile:  account.FieldsFile,
					ChoicesFile: account.ChoicesFile,
				})
				if err != nil {
					return err
				}
				if _, err := client.Send(cmdContext(cmd), http.MethodGet, "settings", nil); err != nil {
					return fmt.Errorf("credential check failed: %w", err)
				}
				quota = client.LastRateLimit()
			}

			if err := config.SaveProfile(profile, account); err != nil {
				return fmt.Errorf("failed to save credentials: %w", err)
			}

			if isJSON(cmd) {
				payload := map[string]any{
					"saved":    true,
					"profile":  profileName(profile),
					"username": account.Username,
					"verified": verify,
				}
				if meta := quota.Meta(); meta != nil {
					payload["rate_limit"] = meta
				}
				return printJSON(cmd, payload)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, "Authentication credentials saved successfully!")
			_, _ = fmt.Fprintf(out, "  Username: %s\n", account.Username)
			if account.BaseURL != "" {
				_, _ = fmt.Fprintf(out, "  Base URL: %s\n", account.BaseURL)
			}
			if profile != "" && profile != config.DefaultProfile {
				_, _ = fmt.Fprintf(out, "  Profile: %s\n", profile)
			}
			if quota != nil && quota.Limit != nil && quota.Remaining != nil {
				_, _ = fmt.Fprintf(out, "  Rate limit: %d of %d requests remaining\n", *quota.Remaining, *quota.Limit)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&username, "username", "", "API user name")
	cmd.Flags().StringVar(&secret, "secret", "", "API user secret")
	cmd.Flags().StringVar(&baseURL, "url", "", "API root (default "+api.DefaultBaseURL+")")
	cmd.Flags().StringVar(&fieldsFile, "fields", "", "INI file with field mappings for this profile")
	cmd.Flags().StringVar(&choicesFile, "choices", "", "INI file with choice mappings for this profile")
	cmd.Flags().StringVar(&profile, "name", config.DefaultProfile, "Profile name to save credentials under")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Load EMARSYS_* (and optional EMARSYS_KEYRING_*) values from a .env file")
	cmd.Flags().BoolVar(&verify, "verify", false, "Check the credentials with a signed request before saving")

	flagAlias(cmd.Flags(), "username", "user")
	flagAlias(cmd.Flags(), "secret", "sec")
	flagAlias(cmd.Flags(), "name", "nm")
	flagAlias(cmd.Flags(), "env-file", "env")

	return cmd
}

func profileName(profile string) string {
	if strings.TrimSpace(profile) == "" {
		return config.DefaultProfile
	}
	return profile
}

func loadAuthEnvFile(path string) (map[string]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("--env-file requires a file path")
	}
	envVars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read --env-file %q: %w", path, err)
	}
	return envVars, nil
}

// applyAuthEnvFileRuntimeVars copies keyring settings from --env-file into the
// process environment when they are not already exported.
func applyAuthEnvFileRuntimeVars(envVars map[string]string) {
	keys := []string{
		"EMARSYS_KEYRING_BACKEND",
		"EMARSYS_KEYRING_PASSWORD",
		"EMARSYS_CREDENTIALS_DIR",
	}
	for _, key := range keys {
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		value := strings.TrimSpace(envVars[key])
		if value == "" {
			continue
		}
		_ = os.Setenv(key, value)
	}
}

// newAuthStatusCmd creates the auth status command
func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show current authentication configuration",
		Long:  "Display the credentials in effect (the secret is masked).",
		Example: strings.TrimSpace(`
  # Check authentication status
  emarsys auth status

  # JSON output for scripting
  emarsys auth status --json
`),
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			_, usingEnv, _ := config.AccountFromEnv()

			cfg, err := config.ResolveClientConfig(newClientFactory().overrides)
			if err != nil {
				if errors.Is(err, config.ErrNotConfigured) {
					if isJSON(cmd) {
						return printJSON(cmd, map[string]any{
							"authenticated": false,
							"message":       "Not authenticated. Run 'emarsys auth login' to configure credentials.",
						})
					}
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Not authenticated.")
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Run 'emarsys auth login' to configure credentials.")
					return nil
				}
				return fmt.Errorf("failed to load credentials: %w", err)
			}

			var profile string
			if !usingEnv {
				profile = flags.Profile
				if profile == "" {
					profile = strings.TrimSpace(os.Getenv(config.EnvProfile))
				}
				if profile == "" {
					if current, err := config.CurrentProfile(); err == nil {
						profile = current
					}
				}
			}
			baseURL := cfg.BaseURL
			if baseURL == "" {
				baseURL = api.DefaultBaseURL
			}
			source := "keychain"
			if usingEnv {
				source = "env"
			}

			if isJSON(cmd) {
				payload := map[string]any{
					"authenticated": true,
					"username":      cfg.Username,
					"secret":        maskToken(cfg.Secret),
					"base_url":      baseURL,
					"source":        source,
				}
				if profile != "" {
					payload["profile"] = profile
				}
				if cfg.FieldsFile != "" {
					payload["fields_file"] = cfg.FieldsFile
				}
				if cfg.ChoicesFile != "" {
					payload["choices_file"] = cfg.ChoicesFile
				}
				return printJSON(cmd, payload)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, "Authenticated")
			_, _ = fmt.Fprintf(out, "  Username: %s\n", cfg.Username)
			_, _ = fmt.Fprintf(out, "  Secret: %s\n", maskToken(cfg.Secret))
			_, _ = fmt.Fprintf(out, "  Base URL: %s\n", baseURL)
			if cfg.FieldsFile != "" {
				_, _ = fmt.Fprintf(out, "  Fields file: %s\n", cfg.FieldsFile)
			}
			if cfg.ChoicesFile != "" {
				_, _ = fmt.Fprintf(out, "  Choices file: %s\n", cfg.ChoicesFile)
			}
			if profile != "" {
				_, _ = fmt.Fprintf(out, "  Profile: %s\n", profile)
			}
			_, _ = fmt.Fprintf(out, "  Source: %s\n", source)
			return nil
		}),
	}
}

// newAuthLogoutCmd creates the auth logout command
func newAuthLogoutCmd() *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove credentials from keychain",
		Long:  "Delete a stored profile from your OS keychain.",
		Example: strings.TrimSpace(`
  # Remove the current profile
  emarsys auth logout

  # Remove a named profile
  emarsys auth logout --name staging
`),
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			if profile == "" {
				current, err := config.CurrentProfile()
				if err != nil {
					return err
				}
				profile = current
			}

			if _, err := config.LoadProfile(profile); errors.Is(err, config.ErrNotConfigured) {
				printIfNotQuiet(cmd, "No credentials found for profile %s.\n", profile)
				return nil
			}

			if err := config.DeleteProfile(profile); err != nil {
				return fmt.Errorf("failed to remove credentials: %w", err)
			}
			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{"removed": true, "profile": profile})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Profile %s removed successfully.\n", profile)
			return nil
		}),
	}

	cmd.Flags().StringVar(&profile, "name", "", "Profile name to remove (defaults to current)")
	flagAlias(cmd.Flags(), "name", "nm")

	return cmd
}

func newAuthProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "profiles",
		Aliases: []string{"ls"},
		Short:   "List stored profiles",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			names, err := config.ListProfiles()
			if err != nil {
				return err
			}
			current, _ := config.CurrentProfile()

			if isJSON(cmd) {
				type profileInfo struct {
					Name    string `json:"name"`
					Current bool   `json:"current"`
				}
				items := make([]profileInfo, 0, len(names))
				for _, name := range names {
					items = append(items, profileInfo{Name: name, Current: name == current})
				}
				return printJSON(cmd, items)
			}

			if len(names) == 0 {
				printIfNotQuiet(cmd, "No profiles stored\n")
				return nil
			}
			for _, name := range names {
				marker := " "
				if name == current {
					marker = "*"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
			}
			return nil
		}),
	}
}

func newAuthUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "use <profile>",
		Short:   "Switch the current profile",
		Example: "emarsys auth use staging",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			if err := config.SetCurrentProfile(args[0]); err != nil {
				return err
			}
			printAction(cmd, "Switched to", "profile", args[0], "")
			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{"current": args[0]})
			}
			return nil
		}),
	}
}

// maskToken masks a secret for display, showing only first and last 4 characters
func maskToken(token string) string {
	if len(token) < 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}
