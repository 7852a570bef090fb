package cmd

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/snowcap/emarsys-cli/internal/api"
	"github.com/snowcap/emarsys-cli/internal/cache"
	"github.com/snowcap/emarsys-cli/internal/mapping"
	"github.com/snowcap/emarsys-cli/internal/validation"
)

func newFieldsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "fields",
		Aliases: []string{"field", "f"},
		Short:   "Inspect contact fields and the name mappings",
		Long: strings.TrimSpace(`
Inspect the field catalog of the account and the field and choice name
mappings used to translate contact payloads. The id, name, choice-id,
choice-name and export subcommands work offline.
`),
	}

	cmd.AddCommand(newFieldsListCmd())
	cmd.AddCommand(newFieldsChoicesCmd())
	cmd.AddCommand(newFieldsCreateCmd())
	cmd.AddCommand(newFieldsIDCmd())
	cmd.AddCommand(newFieldsNameCmd())
	cmd.AddCommand(newFieldsChoiceIDCmd())
	cmd.AddCommand(newFieldsChoiceNameCmd())
	cmd.AddCommand(newFieldsExportCmd())
	return cmd
}

// fieldCatalog returns the field catalog, from the cache when fresh.
func fieldCatalog(cmd *cobra.Command, client *api.Client, refresh bool) ([]api.Field, error) {
	ctx := cmdContext(cmd)
	var store cache.Store
	if !cache.Disabled() {
		store = cache.Open(ctx, resolveCacheDir(), cache.Scope{
			Resource: "fields",
			BaseURL:  client.BaseURL,
			Username: client.Username,
		}, cache.DefaultTTL)
		var cached []api.Field
		if !refresh && store.Get(ctx, &cached) {
			slog.DebugContext(ctx, "field catalog from cache", "count", len(cached))
			return cached, nil
		}
	}

	fields, err := client.Fields().Catalog(ctx)
	if err != nil {
		return nil, err
	}
	if store != nil {
		store.Put(ctx, fields)
	}
	return fields, nil
}

func newFieldsListCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the field catalog of the account",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			fields, err := fieldCatalog(cmd, client, refresh)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printJSON(cmd, fields)
			}
			if len(fields) == 0 {
				printIfNotQuiet(cmd, "No results found\n")
				return nil
			}
			table := newBulkTable(cmd, "ID", "NAME", "TYPE", "STRING_ID")
			for _, f := range fields {
				table.Row(strconv.Itoa(f.ID), f.Name, f.ApplicationType, f.StringID)
			}
			return table.Flush()
		}),
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass the cache")
	return cmd
}

func newFieldsChoicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "choices <field>",
		Short:   "List the choices of a single- or multi-choice field",
		Example: "emarsys fields choices gender",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			resp, err := client.Fields().Choices(cmdContext(cmd), args[0])
			if err != nil {
				return err
			}
			return printResponse(cmd, resp, "id", "choice")
		}),
	}
}

func newFieldsCreateCmd() *cobra.Command {
	var fieldType string

	types := make([]string, 0, len(api.FieldTypes()))
	for _, t := range api.FieldTypes() {
		types = append(types, string(t))
	}

	cmd := &cobra.Command{
		Use:     "create <name>",
		Short:   "Create a custom contact field",
		Example: "emarsys fields create loyaltyTier --type singlechoice",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			ft := api.FieldType(strings.ToLower(strings.TrimSpace(fieldType)))
			if !ft.Valid() {
				return fmt.Errorf("invalid --type %q: must be one of %s", fieldType, strings.Join(types, ", "))
			}
			name := strings.TrimSpace(args[0])
			if err := validation.ValidateName(name, "field"); err != nil {
				return err
			}

			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			body := api.Params{"name": name, "application_type": string(ft)}
			if ok, err := dryRunRequest(cmd, client, "create", "field", http.MethodPost, "field", body); ok || err != nil {
				return err
			}
			resp, err := client.Fields().Create(cmdContext(cmd), name, ft)
			if err != nil {
				return err
			}
			if !cache.Disabled() {
				cache.Open(cmdContext(cmd), resolveCacheDir(), cache.Scope{
					Resource: "fields",
					BaseURL:  client.BaseURL,
					Username: client.Username,
				}, cache.DefaultTTL).Clear(cmdContext(cmd))
			}
			if isJSON(cmd) {
				return printResponse(cmd, resp)
			}
			id, _ := resp.ID()
			printAction(cmd, "Created", "field", id, name)
			return nil
		}),
	}

	cmd.Flags().StringVar(&fieldType, "type", "", "Field type: "+strings.Join(types, "|"))
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newFieldsIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "id <name>",
		Short:   "Translate a field name to its id",
		Example: "emarsys fields id firstName",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			store, err := getMapping(cmd)
			if err != nil {
				return err
			}
			id, err := store.FieldID(args[0])
			if err != nil {
				return withFieldSuggestions(store, args[0], err)
			}
			return printLookup(cmd, map[string]any{"name": args[0], "id": id}, strconv.Itoa(id))
		}),
	}
}

// withFieldSuggestions appends close field names to an unknown field error.
func withFieldSuggestions(store *mapping.Store, name string, err error) error {
	suggestions := store.SuggestFields(name, 3)
	if len(suggestions) == 0 {
		return err
	}
	return fmt.Errorf("%w (did you mean %s?)", err, strings.Join(suggestions, ", "))
}

func printLookup(cmd *cobra.Command, payload map[string]any, text string) error {
	if isJSON(cmd) {
		return printJSON(cmd, payload)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

func newFieldsNameCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "name <id>",
		Short:   "Translate a field id to its name",
		Long:    "Translate a field id to its name. Unknown ids are printed unchanged.",
		Example: "emarsys fields name 3",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("invalid field id %q: must be an integer", args[0])
			}
			store, err := getMapping(cmd)
			if err != nil {
				return err
			}
			name := store.FieldName(id)
			return printLookup(cmd, map[string]any{"id": id, "name": name}, name)
		}),
	}
}

func newFieldsChoiceIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "choice-id <field> <choice>",
		Short:   "Translate a choice name to its id",
		Example: "emarsys fields choice-id gender female",
		Args:    cobra.ExactArgs(2),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			store, err := getMapping(cmd)
			if err != nil {
				return err
			}
			id, err := store.ChoiceID(args[0], args[1])
			if err != nil {
				return err
			}
			return printLookup(cmd, map[string]any{"field": args[0], "choice": args[1], "id": id}, strconv.Itoa(id))
		}),
	}
}

func newFieldsChoiceNameCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "choice-name <field> <id>",
		Short:   "Translate a choice id to its name",
		Long:    "Translate a choice id to its name. Unknown ids are printed unchanged.",
		Example: "emarsys fields choice-name gender 2",
		Args:    cobra.ExactArgs(2),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(strings.TrimSpace(args[1]))
			if err != nil {
				return fmt.Errorf("invalid choice id %q: must be an integer", args[1])
			}
			store, err := getMapping(cmd)
			if err != nil {
				return err
			}
			name, err := store.ChoiceName(args[0], id)
			if err != nil {
				return err
			}
			return printLookup(cmd, map[string]any{"field": args[0], "id": id, "name": name}, name)
		}),
	}
}

func newFieldsExportCmd() *cobra.Command {
	var (
		choices bool
		fromAPI bool
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the mappings in effect as an INI file",
		Long: strings.TrimSpace(`
Write the field (or, with --choices, the choice) mapping in effect in the INI
format read by --fields-file and --choices-file. With --from-api the field
mapping is built from the account's field catalog instead.
`),
		Example: strings.TrimSpace(`
  emarsys fields export > fields.ini
  emarsys fields export --from-api --out fields.ini
  emarsys fields export --choices --out choices.ini
`),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			if choices && fromAPI {
				return fmt.Errorf("--from-api exports fields only; drop --choices")
			}

			var fields mapping.Fields
			var store *mapping.Store
			if fromAPI {
				client, err := getClient(cmd)
				if err != nil {
					return err
				}
				catalog, err := fieldCatalog(cmd, client, false)
				if err != nil {
					return err
				}
				fields = catalogMapping(catalog)
			} else {
				var err error
				if store, err = getMapping(cmd); err != nil {
					return err
				}
				fields = store.Fields()
			}

			out := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", outPath, err)
				}
				defer func() { _ = f.Close() }()
				out = f
			}

			if choices {
				return mapping.WriteChoices(out, store.Choices())
			}
			if err := mapping.WriteFields(out, fields); err != nil {
				return err
			}
			if outPath != "" {
				printIfNotQuiet(cmd, "Wrote %d fields to %s\n", len(fields), outPath)
			}
			return nil
		}),
	}

	cmd.Flags().BoolVar(&choices, "choices", false, "Export the choice mapping")
	cmd.Flags().BoolVar(&fromAPI, "from-api", false, "Build the field mapping from the account's field catalog")
	cmd.Flags().StringVar(&outPath, "out", "", "Write to a file instead of stdout")
	return cmd
}

// catalogMapping names each catalog field by its string_id, falling back to
// the display name.
func catalogMapping(catalog []api.Field) mapping.Fields {
	fields := make(mapping.Fields, 0, len(catalog))
	for _, f := range catalog {
		name := strings.TrimSpace(f.StringID)
		if name == "" {
			name = strings.TrimSpace(f.Name)
		}
		if name == "" {
			continue
		}
		fields = append(fields, mapping.Entry{Name: name, ID: f.ID})
	}
	return fields
}
