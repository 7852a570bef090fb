package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/snowcap/emarsys-cli/internal/api"
	"github.com/snowcap/emarsys-cli/internal/debug"
	"github.com/snowcap/emarsys-cli/internal/dryrun"
	"github.com/snowcap/emarsys-cli/internal/iocontext"
	"github.com/snowcap/emarsys-cli/internal/outfmt"
)

// EnvOutput sets the default --output mode.
const EnvOutput = "EMARSYS_OUTPUT"

// rootFlags holds global CLI flags
type rootFlags struct {
	Output      string
	JSON        bool
	Query       string
	JQ          string
	Template    string
	Compact     bool
	Debug       bool
	DryRun      bool
	Quiet       bool
	Yes         bool
	Timeout     time.Duration
	BaseURL     string
	Profile     string
	FieldsFile  string
	ChoicesFile string
	MaxAttempts int
	RetryDelay  time.Duration

	TimeoutSet     bool
	MaxAttemptsSet bool
	RetryDelaySet  bool
}

// flags holds the global command flags. It is reset at the start of every
// Execute call; reading it outside a running command sees stale values.
var flags = rootFlags{
	Output:  defaultOutput(),
	Timeout: api.DefaultTimeout,
}

func defaultOutput() string {
	value := strings.TrimSpace(os.Getenv(EnvOutput))
	if value != "" {
		return normalizeOutputFormat(value)
	}
	return "text"
}

func normalizeOutputFormat(value string) string {
	value = strings.TrimSpace(value)
	if value == "ndjson" {
		return "jsonl"
	}
	return value
}

// loadUserEnv loads <user config dir>/emarsys-cli/.env when it exists.
// Variables already set in the environment are not overwritten.
func loadUserEnv() {
	dir, err := os.UserConfigDir()
	if err != nil {
		return
	}
	path := filepath.Join(dir, "emarsys-cli", ".env")
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// Execute runs the root command
func Execute(ctx context.Context, args []string) error {
	// Runs before the flag reset so EMARSYS_OUTPUT from the file is honoured.
	loadUserEnv()

	flags = rootFlags{
		Output:  defaultOutput(),
		Timeout: api.DefaultTimeout,
	}

	root := &cobra.Command{
		Use:                "emarsys",
		Short:              "CLI for the Emarsys REST API",
		Long:               "Manage Emarsys contacts, contact lists, emails, events, fields and sources from the command line.",
		SilenceUsage:       true,
		SilenceErrors:      true,
		DisableSuggestions: true, // enhanceUnknownError prints did-you-mean hints
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			flags.Output = normalizeOutputFormat(flags.Output)
			if flags.JSON {
				if flagOrAliasChanged(cmd, "output") && flags.Output != "json" {
					return fmt.Errorf("--json conflicts with --output %s", flags.Output)
				}
				flags.Output = "json"
			}
			needsJSON := flags.Query != "" || flags.JQ != "" || flags.Template != ""
			if needsJSON && flags.Output != "json" && flags.Output != "jsonl" {
				if flagOrAliasChanged(cmd, "output") {
					return fmt.Errorf("--jq/--query/--template require --output json or jsonl (or --json)")
				}
				flags.Output = "json"
			}

			mode, err := outfmt.Parse(flags.Output)
			if err != nil {
				return err
			}
			ctx = outfmt.WithMode(ctx, mode)
			ctx = outfmt.WithCompact(ctx, flags.Compact)

			ioStreams := iocontext.DefaultIO()
			if flags.Quiet {
				ioStreams.ErrOut = io.Discard
				if mode == outfmt.Text {
					ioStreams.Out = io.Discard
				}
			}
			ctx = iocontext.WithIO(ctx, ioStreams)
			cmd.SetOut(ioStreams.Out)
			cmd.SetErr(ioStreams.ErrOut)

			debug.SetupLogger(flags.Debug)
			ctx = debug.WithDebug(ctx, flags.Debug)
			ctx = dryrun.WithDryRun(ctx, flags.DryRun)

			if query := getJQQuery(); query != "" {
				ctx = outfmt.WithQuery(ctx, query)
			}
			if flags.Template != "" {
				tmpl, err := loadTemplate(flags.Template)
				if err != nil {
					return err
				}
				ctx = outfmt.WithTemplate(ctx, tmpl)
			}

			flags.TimeoutSet = flagOrAliasChanged(cmd, "timeout")
			flags.MaxAttemptsSet = flagOrAliasChanged(cmd, "max-attempts")
			flags.RetryDelaySet = flagOrAliasChanged(cmd, "retry-delay")
			if flags.MaxAttemptsSet && flags.MaxAttempts < 1 {
				return fmt.Errorf("--max-attempts must be >= 1")
			}
			if flags.RetryDelaySet && flags.RetryDelay < 0 {
				return fmt.Errorf("--retry-delay must be >= 0")
			}
			if flags.TimeoutSet && flags.Timeout <= 0 {
				return fmt.Errorf("--timeout must be > 0")
			}

			cmd.SetContext(ctx)
			return nil
		},
	}

	root.SetContext(ctx)
	root.SetArgs(args)

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.Output, "output", "o", flags.Output, "Output format: text|json|jsonl|ndjson (env EMARSYS_OUTPUT)")
	pf.BoolVarP(&flags.JSON, "json", "j", false, "Shorthand for --output json")
	pf.StringVarP(&flags.Query, "query", "q", "", "JQ expression to filter JSON output")
	pf.StringVar(&flags.JQ, "jq", "", "Alias for --query")
	pf.StringVar(&flags.Template, "template", "", "Go template string (or @path) to render JSON output")
	pf.BoolVar(&flags.Compact, "compact-json", false, "Compact JSON output (no indentation)")
	pf.BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	pf.BoolVar(&flags.DryRun, "dry-run", false, "Print write requests without sending them")
	pf.BoolVarP(&flags.Quiet, "quiet", "Q", false, "Suppress non-essential output")
	pf.BoolVarP(&flags.Yes, "yes", "y", false, "Skip confirmation prompts")
	pf.DurationVar(&flags.Timeout, "timeout", flags.Timeout, "HTTP request timeout (e.g., 30s, 2m)")
	pf.StringVar(&flags.BaseURL, "base-url", "", "API root (env EMARSYS_BASE_URL, default "+api.DefaultBaseURL+")")
	pf.StringVar(&flags.Profile, "profile", "", "Credential profile to use (env EMARSYS_PROFILE)")
	pf.StringVar(&flags.FieldsFile, "fields-file", "", "INI file with field name to id mappings (env EMARSYS_FIELDS_FILE)")
	pf.StringVar(&flags.ChoicesFile, "choices-file", "", "INI file with choice name to id mappings (env EMARSYS_CHOICES_FILE)")
	pf.IntVar(&flags.MaxAttempts, "max-attempts", 0, "Attempts per request on connection failure (overrides env)")
	pf.DurationVar(&flags.RetryDelay, "retry-delay", 0, "Delay between connection retries (e.g., 1s; overrides env)")

	flagAlias(pf, "output", "out")
	flagAlias(pf, "query", "qr")
	flagAlias(pf, "compact-json", "cj")
	flagAlias(pf, "dry-run", "dr")
	flagAlias(pf, "debug", "dbg")
	flagAlias(pf, "template", "tpl")
	flagAlias(pf, "timeout", "to")
	flagAlias(pf, "profile", "pf")
	flagAlias(pf, "fields-file", "ff")
	flagAlias(pf, "choices-file", "cf")

	root.AddCommand(newAuthCmd())
	root.AddCommand(newContactsCmd())
	root.AddCommand(newListsCmd())
	root.AddCommand(newEmailsCmd())
	root.AddCommand(newEventsCmd())
	root.AddCommand(newFieldsCmd())
	root.AddCommand(newSourcesCmd())
	root.AddCommand(newConditionsCmd())
	root.AddCommand(newLanguagesCmd())
	root.AddCommand(newSegmentsCmd())
	root.AddCommand(newFoldersCmd())
	root.AddCommand(newFormsCmd())
	root.AddCommand(newFilesCmd())
	root.AddCommand(newExportsCmd())
	root.AddCommand(newAPICmd())
	root.AddCommand(newCacheCmd())
	root.AddCommand(newVersionCmd())

	targetCmd, err := root.ExecuteC()
	if err != nil {
		if !errors.Is(err, errAlreadyHandled) {
			_, _ = fmt.Fprintln(root.ErrOrStderr(), enhanceUnknownError(err, root, targetCmd))
		}
		return err
	}
	return nil
}

// getJQQuery returns --jq, falling back to --query.
func getJQQuery() string {
	if flags.JQ != "" {
		return flags.JQ
	}
	return flags.Query
}

// enhanceUnknownError adds "did you mean?" suggestions to unknown command and
// flag errors. targetCmd is the command Cobra resolved, possibly root.
func enhanceUnknownError(err error, root *cobra.Command, targetCmd *cobra.Command) string {
	msg := err.Error()

	if strings.Contains(msg, "unknown command") {
		if unknown := extractQuoted(msg); unknown != "" {
			parent := root
			if targetCmd != nil {
				parent = targetCmd
			}
			var names []string
			for _, c := range parent.Commands() {
				if c.IsAvailableCommand() || c.Name() == "help" {
					names = append(names, c.Name())
					names = append(names, c.Aliases...)
				}
			}
			if suggestion := suggestCommand(unknown, names); suggestion != "" {
				return fmt.Sprintf("%s\n\nDid you mean %q?", msg, suggestion)
			}
		}
	}

	if strings.Contains(msg, "unknown flag") || strings.Contains(msg, "unknown shorthand flag") || strings.Contains(msg, "flag provided but not defined") {
		if unknown := extractFlag(msg); unknown != "" {
			target := root
			if targetCmd != nil {
				target = targetCmd
			}
			seen := make(map[string]bool)
			var flagNames []string
			collect := func(fs *pflag.FlagSet) {
				fs.VisitAll(func(f *pflag.Flag) {
					if f.Hidden {
						return
					}
					for _, name := range []string{"--" + f.Name, shorthand(f)} {
						if name != "" && !seen[name] {
							seen[name] = true
							flagNames = append(flagNames, name)
						}
					}
				})
			}
			collect(target.Flags())
			collect(target.InheritedFlags())

			helpCmd := strings.TrimSpace(target.CommandPath()) + " --help"
			if suggestion := suggestFlag(unknown, flagNames); suggestion != "" {
				return fmt.Sprintf("%s\n\nDid you mean %q?\nRun %q to see supported flags.", msg, suggestion, helpCmd)
			}
			return fmt.Sprintf("%s\n\nRun %q to see supported flags.", msg, helpCmd)
		}
	}

	return msg
}

func shorthand(f *pflag.Flag) string {
	if f.Shorthand == "" {
		return ""
	}
	return "-" + f.Shorthand
}

// extractQuoted extracts the first double-quoted substring from s.
func extractQuoted(s string) string {
	start := strings.IndexByte(s, '"')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(s[start+1:], '"')
	if end < 0 {
		return ""
	}
	return s[start+1 : start+1+end]
}

// extractFlag extracts a flag name such as "--foo" or "-f" from an error message.
func extractFlag(s string) string {
	idx := strings.Index(s, "--")
	if idx < 0 {
		// "unknown shorthand flag: 'a' in -a"
		idx = strings.LastIndex(s, " -")
		if idx < 0 {
			return ""
		}
		rest := strings.TrimSpace(s[idx+1:])
		if end := strings.IndexByte(rest, ' '); end >= 0 {
			rest = rest[:end]
		}
		rest = strings.TrimRight(rest, ".,;:!?\"'")
		if strings.HasPrefix(rest, "-") && len(rest) > 1 {
			return rest
		}
		return ""
	}
	rest := s[idx:]
	end := strings.IndexByte(rest, ' ')
	if end < 0 {
		end = len(rest)
	}
	return strings.TrimRight(rest[:end], ".,;:!?\"'")
}

func loadTemplate(value string) (string, error) {
	if strings.HasPrefix(value, "@") {
		data, err := os.ReadFile(strings.TrimPrefix(value, "@"))
		if err != nil {
			return "", fmt.Errorf("failed to read template file: %w", err)
		}
		return string(data), nil
	}
	return value, nil
}
