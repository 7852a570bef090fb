package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/snowcap/emarsys-cli/internal/api"
	"github.com/snowcap/emarsys-cli/internal/resolve"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "events",
		Aliases: []string{"event", "ev"},
		Short:   "List and trigger external events",
	}

	cmd.AddCommand(newEventsListCmd())
	cmd.AddCommand(newEventsTriggerCmd())
	return cmd
}

func newEventsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List external events",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			resp, err := client.Events().List(cmdContext(cmd))
			if err != nil {
				return err
			}
			return printResponse(cmd, resp, "id", "name")
		}),
	}
}

// resolveEventID accepts an event id or an event name.
func resolveEventID(ctx context.Context, client *api.Client, ref string) (int, error) {
	return resolve.IDOrName("event", ref, func() ([]resolve.Named, error) {
		resp, err := client.Events().List(ctx)
		if err != nil {
			return nil, err
		}
		return namedItems(resp)
	})
}

func newEventsTriggerCmd() *cobra.Command {
	var (
		keyID       string
		externalID  string
		externalIDs string
		batch       bool
		data        string
		concurrency int64
		progress    bool
	)

	cmd := &cobra.Command{
		Use:   "trigger <event>",
		Short: "Trigger an external event",
		Long: strings.TrimSpace(`
Trigger an external event for one contact (--external-id) or many
(--external-ids). Many contacts are triggered concurrently, one request each;
--batch sends them in a single request instead.
`),
		Example: strings.TrimSpace(`
  emarsys events trigger 42 --external-id ada@example.com --data '{"coupon":"X1"}'
  emarsys events trigger "order shipped" --external-ids @emails.txt --concurrency 10
  emarsys events trigger 42 --external-ids ada@example.com,bob@example.com --batch
`),
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			if (externalID == "") == (externalIDs == "") {
				return fmt.Errorf("exactly one of --external-id or --external-ids is required")
			}
			if batch && externalIDs == "" {
				return fmt.Errorf("--batch requires --external-ids")
			}
			var payload map[string]any
			if strings.TrimSpace(data) != "" {
				raw, err := loadAtValue(cmd, data)
				if err != nil {
					return err
				}
				if err := json.Unmarshal([]byte(raw), &payload); err != nil {
					return fmt.Errorf("invalid --data JSON: %w", err)
				}
			}
			var ids []string
			if externalIDs != "" {
				parsed, err := ParseStringListFlag(cmd, externalIDs)
				if err != nil {
					return fmt.Errorf("--external-ids: %w", err)
				}
				ids = parsed
			}

			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			eventID, err := resolveEventID(cmdContext(cmd), client, args[0])
			if err != nil {
				return err
			}

			if dryRunEnabled(cmd) {
				key, err := client.Mapping().FieldKey(keyID)
				if err != nil {
					return err
				}
				body := api.Params{"key_id": key}
				switch {
				case batch:
					contacts := make([]map[string]string, len(ids))
					for i, id := range ids {
						contacts[i] = map[string]string{"external_id": id}
					}
					body["contacts"] = contacts
				case externalID != "":
					body["external_id"] = externalID
				default:
					body["external_id"] = "<each of --external-ids>"
				}
				if len(payload) > 0 {
					body["data"] = payload
				}
				path := fmt.Sprintf("event/%d/trigger", eventID)
				preview, err := requestPreview(client, "trigger", "event", http.MethodPost, path, body)
				if err != nil {
					return err
				}
				if !batch && externalID == "" {
					preview.Details = map[string]any{"requests": len(ids)}
				}
				_, err = maybeDryRun(cmd, preview)
				return err
			}

			req := api.TriggerRequest{KeyID: keyID, Data: payload}
			switch {
			case externalID != "":
				req.ExternalID = externalID
			case batch:
				req.Contacts = ids
			default:
				return triggerEach(cmd, client, eventID, req, ids, concurrency, progress)
			}

			resp, err := client.Events().Trigger(cmdContext(cmd), eventID, req)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printResponse(cmd, resp)
			}
			count := 1
			if batch {
				count = len(ids)
			}
			printAction(cmd, "Triggered", "event", eventID, fmt.Sprintf("%d contacts", count))
			return nil
		}),
	}

	cmd.Flags().StringVar(&keyID, "key-id", "email", "Field identifying the contacts")
	cmd.Flags().StringVar(&externalID, "external-id", "", "Key value of a single contact")
	cmd.Flags().StringVar(&externalIDs, "external-ids", "", "Key values: comma separated, JSON array, @file or @-")
	cmd.Flags().BoolVar(&batch, "batch", false, "Send --external-ids in one request")
	cmd.Flags().StringVarP(&data, "data", "d", "", "Event data as a JSON object, @file or @-")
	cmd.Flags().Int64Var(&concurrency, "concurrency", DefaultConcurrency, "Parallel requests for --external-ids")
	cmd.Flags().BoolVar(&progress, "progress", true, "Show progress on stderr")
	flagAlias(cmd.Flags(), "key-id", "key")
	flagAlias(cmd.Flags(), "external-id", "eid")
	flagAlias(cmd.Flags(), "external-ids", "ids")
	return cmd
}

// triggerEach fires the event once per external id.
func triggerEach(cmd *cobra.Command, client *api.Client, eventID int, base api.TriggerRequest, ids []string, concurrency int64, progress bool) error {
	results := runBulkOperation(cmdContext(cmd), ids, concurrency,
		bulkProgressEnabled(cmd, progress), cmd.ErrOrStderr(),
		func(ctx context.Context, id string) (string, error) {
			req := base
			req.ExternalID = id
			resp, err := client.Events().Trigger(ctx, eventID, req)
			if err != nil {
				return "", err
			}
			return resp.ReplyText, nil
		})

	if isJSON(cmd) {
		if err := printJSON(cmd, summarizeBulk(results)); err != nil {
			return err
		}
		return bulkError(results)
	}

	succeeded, failed := countResults(results)
	for _, r := range results {
		if !r.Success {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", r.Key, r.Error)
		}
	}
	printIfNotQuiet(cmd, "Triggered event %d for %d contacts (%d failed)\n", eventID, succeeded, failed)
	return bulkError(results)
}
