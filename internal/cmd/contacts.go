package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/snowcap/emarsys-cli/internal/api"
	"github.com/snowcap/emarsys-cli/internal/mapping"
)

func newContactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "contacts",
		Aliases: []string{"contact", "c"},
		Short:   "Manage contacts",
		Long: strings.TrimSpace(`
Create, update and query contacts. Field names such as "email" or "firstName"
are translated to Emarsys field ids using the built-in mapping or the INI
files given by --fields-file and --choices-file.
`),
	}

	cmd.AddCommand(newContactsWriteCmd("create", "Create contacts", "Created", http.MethodPost, func(c *api.Client) paramsCall { return c.Contacts().Create }))
	cmd.AddCommand(newContactsWriteCmd("update", "Update contacts identified by --key-id", "Updated", http.MethodPut, func(c *api.Client) paramsCall { return c.Contacts().Update }))
	cmd.AddCommand(newContactsWriteCmd("upsert", "Update contacts, creating missing ones", "Upserted", http.MethodPut, func(c *api.Client) paramsCall { return c.Contacts().Upsert }))
	cmd.AddCommand(newContactsDeleteCmd())
	cmd.AddCommand(newContactsIDCmd())
	cmd.AddCommand(newContactsIDsCmd())
	cmd.AddCommand(newContactsDataCmd())
	cmd.AddCommand(newContactsQueryCmd("history", "Show the email sending history of contacts", func(c *api.Client) paramsCall { return c.Contacts().History }))
	cmd.AddCommand(newContactsQueryCmd("changes", "Export contacts changed in a time range", func(c *api.Client) paramsCall { return c.Contacts().Changes }))
	cmd.AddCommand(newContactsQueryCmd("registrations", "Show the form registrations of contacts", func(c *api.Client) paramsCall { return c.Contacts().Registrations }))

	return cmd
}

type paramsCall func(ctx context.Context, data api.Params) (*api.Response, error)

// contactBodyOptions are the flags shared by the contact write commands.
type contactBodyOptions struct {
	data    string
	set     []string
	setJSON []string
	choices []string
	keyID   string
}

func (o *contactBodyOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.data, "data", "d", "", "Contact payload as JSON, @file or @- (field names or ids as keys)")
	cmd.Flags().StringArrayVar(&o.set, "set", nil, "Set a field: name=value (repeatable)")
	cmd.Flags().StringArrayVar(&o.setJSON, "set-json", nil, "Set a field to a JSON value: name=<json> (repeatable)")
	cmd.Flags().StringArrayVar(&o.choices, "choice", nil, "Set a choice field by choice name: field=choice (repeatable)")
	cmd.Flags().StringVar(&o.keyID, "key-id", "", "Field identifying the contacts, e.g. email")
	flagAlias(cmd.Flags(), "key-id", "key")
}

// build merges the payload flags. Choice names become their ids and --key-id
// becomes the field id Emarsys expects in key_id.
func (o *contactBodyOptions) build(cmd *cobra.Command, store *mapping.Store) (api.Params, error) {
	body, err := buildRequestBody(cmd, o.data, o.set, o.setJSON)
	if err != nil {
		return nil, err
	}
	if body == nil {
		body = api.Params{}
	}
	for _, raw := range o.choices {
		field, choice, err := parseField(raw)
		if err != nil {
			return nil, err
		}
		id, err := store.ChoiceID(field, choice)
		if err != nil {
			return nil, err
		}
		body[field] = id
	}
	if o.keyID != "" {
		key, err := store.FieldKey(o.keyID)
		if err != nil {
			return nil, err
		}
		body["key_id"] = key
	} else if raw, ok := body["key_id"].(string); ok && raw != "" {
		key, err := store.FieldKey(raw)
		if err != nil {
			return nil, err
		}
		body["key_id"] = key
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("no contact data: use --data, --set, --set-json or --choice")
	}
	return body, nil
}

func newContactsWriteCmd(use, short, action, method string, pick func(*api.Client) paramsCall) *cobra.Command {
	var opts contactBodyOptions

	path := "contact"
	if use == "upsert" {
		path = "contact/?create_if_not_exists=1"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Example: strings.TrimSpace(fmt.Sprintf(`
  emarsys contacts %[1]s --key-id email --set email=ada@example.com --set firstName=Ada --choice gender=female
  emarsys contacts %[1]s --key-id email --data @contacts.json
`, use)),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			body, err := opts.build(cmd, client.Mapping())
			if err != nil {
				return err
			}

			if dryRunEnabled(cmd) {
				mapped, err := client.Mapping().MapFieldsToIDs(body)
				if err != nil {
					return err
				}
				_, err = dryRunRequest(cmd, client, use, "contact", method, path, mapped)
				return err
			}

			resp, err := pick(client)(cmdContext(cmd), body)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printResponse(cmd, resp)
			}
			printAction(cmd, action, "contacts", contactIDsSummary(resp), "")
			return nil
		}),
	}
	opts.register(cmd)
	return cmd
}

// contactIDsSummary returns the ids of data.ids as a comma list, or nil.
func contactIDsSummary(resp *api.Response) any {
	data, err := resp.DataMap()
	if err != nil {
		return nil
	}
	ids, ok := data["ids"].([]any)
	if !ok || len(ids) == 0 {
		return nil
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = cellValue(id)
	}
	return strings.Join(parts, ",")
}

func newContactsDeleteCmd() *cobra.Command {
	var (
		opts  contactBodyOptions
		value string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a contact",
		Example: strings.TrimSpace(`
  emarsys contacts delete --key-id email --value ada@example.com --force
`),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			body, err := buildRequestBody(cmd, opts.data, opts.set, opts.setJSON)
			if err != nil {
				return err
			}
			if body == nil {
				body = api.Params{}
			}
			if opts.keyID != "" {
				key, err := client.Mapping().FieldKey(opts.keyID)
				if err != nil {
					return err
				}
				body["key_id"] = key
				if value != "" {
					body[key] = value
				}
			}
			if len(body) == 0 {
				return fmt.Errorf("--key-id and --value (or --data) are required")
			}

			if ok, err := dryRunRequest(cmd, client, "delete", "contact", http.MethodPost, "contact/delete", body); ok || err != nil {
				return err
			}

			confirmed, err := confirmAction(cmd, confirmOptions{
				Prompt:              fmt.Sprintf("Delete contact %s? (y/N): ", value),
				CancelMessage:       "Cancelled.",
				Force:               force,
				RequireForceForJSON: true,
			})
			if err != nil || !confirmed {
				return err
			}

			resp, err := client.Contacts().Delete(cmdContext(cmd), body)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printResponse(cmd, resp)
			}
			printAction(cmd, "Deleted", "contact", value, "")
			return nil
		}),
	}

	cmd.Flags().StringVarP(&opts.data, "data", "d", "", "Delete payload as JSON, @file or @-")
	cmd.Flags().StringVar(&opts.keyID, "key-id", "", "Field identifying the contact, e.g. email")
	cmd.Flags().StringVar(&value, "value", "", "Value of the key field")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	flagAlias(cmd.Flags(), "key-id", "key")
	return cmd
}

func newContactsIDCmd() *cobra.Command {
	var keyID string

	cmd := &cobra.Command{
		Use:     "id <value>",
		Short:   "Look up the internal id of a contact",
		Example: "emarsys contacts id ada@example.com --key-id email",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			id, err := client.Contacts().ID(cmdContext(cmd), keyID, args[0])
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{"id": id, "key_id": keyID, "value": args[0]})
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		}),
	}

	cmd.Flags().StringVar(&keyID, "key-id", "email", "Field to search by")
	flagAlias(cmd.Flags(), "key-id", "key")
	return cmd
}

func newContactsIDsCmd() *cobra.Command {
	var (
		keyID       string
		values      string
		concurrency int64
		progress    bool
	)

	cmd := &cobra.Command{
		Use:   "ids",
		Short: "Look up the internal ids of many contacts concurrently",
		Example: strings.TrimSpace(`
  emarsys contacts ids --key-id email --values ada@example.com,bob@example.com
  emarsys contacts ids --values @emails.txt --concurrency 10
`),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			keys, err := ParseStringListFlag(cmd, values)
			if err != nil {
				return fmt.Errorf("--values: %w", err)
			}
			client, err := getClient(cmd)
			if err != nil {
				return err
			}

			results := runBulkOperation(cmdContext(cmd), keys, concurrency,
				bulkProgressEnabled(cmd, progress), cmd.ErrOrStderr(),
				func(ctx context.Context, value string) (int, error) {
					return client.Contacts().ID(ctx, keyID, value)
				})

			if isJSON(cmd) {
				if err := printJSON(cmd, summarizeBulk(results)); err != nil {
					return err
				}
				return bulkError(results)
			}

			table := newBulkTable(cmd, "VALUE", "ID")
			for _, r := range results {
				table.Row(r.Key, bulkCell(r))
			}
			if err := table.Flush(); err != nil {
				return err
			}
			return bulkError(results)
		}),
	}

	cmd.Flags().StringVar(&keyID, "key-id", "email", "Field to search by")
	cmd.Flags().StringVar(&values, "values", "", "Key values: comma separated, JSON array, @file or @-")
	cmd.Flags().Int64Var(&concurrency, "concurrency", DefaultConcurrency, "Parallel lookups")
	cmd.Flags().BoolVar(&progress, "progress", true, "Show progress on stderr")
	_ = cmd.MarkFlagRequired("values")
	flagAlias(cmd.Flags(), "key-id", "key")
	return cmd
}

func newContactsDataCmd() *cobra.Command {
	var (
		keyID  string
		values string
		fields string
		named  bool
	)

	cmd := &cobra.Command{
		Use:   "data",
		Short: "Show field values of contacts",
		Example: strings.TrimSpace(`
  emarsys contacts data --key-id email --values ada@example.com --fields firstName,lastName --named
`),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			keys, err := ParseStringListFlag(cmd, values)
			if err != nil {
				return fmt.Errorf("--values: %w", err)
			}
			req := api.ContactDataRequest{KeyID: keyID, Values: keys, Named: named}
			if strings.TrimSpace(fields) != "" {
				req.Fields = splitCommaList(fields)
			}

			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			resp, err := client.Contacts().Data(cmdContext(cmd), req)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printResponse(cmd, resp)
			}
			return printContactData(cmd, resp)
		}),
	}

	cmd.Flags().StringVar(&keyID, "key-id", "email", "Field the values belong to")
	cmd.Flags().StringVar(&values, "values", "", "Key values: comma separated, JSON array, @file or @-")
	cmd.Flags().StringVar(&fields, "fields", "", "Fields to return (names or ids, comma separated)")
	cmd.Flags().BoolVar(&named, "named", true, "Key results by field name instead of id")
	_ = cmd.MarkFlagRequired("values")
	flagAlias(cmd.Flags(), "key-id", "key")
	return cmd
}

// printContactData prints one block of field: value lines per contact and the
// key values Emarsys reported as errors.
func printContactData(cmd *cobra.Command, resp *api.Response) error {
	data, err := resp.DataMap()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	result, _ := data["result"].([]any)
	if len(result) == 0 {
		printIfNotQuiet(cmd, "No results found\n")
	}
	for i, item := range result {
		contact, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if i > 0 {
			_, _ = fmt.Fprintln(out)
		}
		for _, key := range sortedKeys(contact) {
			_, _ = fmt.Fprintf(out, "%s: %s\n", key, cellValue(contact[key]))
		}
	}
	if errs, ok := data["errors"].([]any); ok && len(errs) > 0 {
		errOut := cmd.ErrOrStderr()
		for _, e := range errs {
			_, _ = fmt.Fprintf(errOut, "warning: %s\n", cellValue(e))
		}
	}
	return nil
}

func newContactsQueryCmd(use, short string, pick func(*api.Client) paramsCall) *cobra.Command {
	var (
		data    string
		set     []string
		setJSON []string
	)

	cmd := &cobra.Command{
		Use:     use,
		Short:   short,
		Example: fmt.Sprintf("emarsys contacts %s --data '{\"contacts\":[123]}'", use),
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			body, err := buildRequestBody(cmd, data, set, setJSON)
			if err != nil {
				return err
			}
			if body == nil {
				return fmt.Errorf("request body required: use --data, --set or --set-json")
			}
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			resp, err := pick(client)(cmdContext(cmd), body)
			if err != nil {
				return err
			}
			return printResponse(cmd, resp)
		}),
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "Request body as JSON, @file or @-")
	cmd.Flags().StringArrayVar(&set, "set", nil, "Set a string parameter: key=value (repeatable)")
	cmd.Flags().StringArrayVar(&setJSON, "set-json", nil, "Set a JSON parameter: key=<json> (repeatable)")
	return cmd
}
