package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/snowcap/emarsys-cli/internal/api"
	"github.com/snowcap/emarsys-cli/internal/schedule"
	"github.com/snowcap/emarsys-cli/internal/validation"
)

func newEmailsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "emails",
		Aliases: []string{"email", "e"},
		Short:   "Manage email campaigns",
	}

	cmd.AddCommand(newEmailsListCmd())
	cmd.AddCommand(newEmailsCreateCmd())
	cmd.AddCommand(newEmailsGetCmd())
	cmd.AddCommand(newEmailsLaunchCmd())
	cmd.AddCommand(newEmailsPreviewCmd())
	cmd.AddCommand(newEmailsIDQueryCmd("summary", "Show the response summary of an email",
		func(c *api.Client) emailIDCall { return c.Emails().ResponseSummary }))
	cmd.AddCommand(newEmailsTestCmd())
	cmd.AddCommand(newEmailsIDQueryCmd("url", "Show the online version URL of an email",
		func(c *api.Client) emailIDCall { return c.Emails().URL }))
	cmd.AddCommand(newEmailsQueryCmd("delivery-status", "Show the delivery status of a launch", true,
		func(c *api.Client) paramsCall { return c.Emails().DeliveryStatus }))
	cmd.AddCommand(newEmailsQueryCmd("launches", "List the launches of an email", false,
		func(c *api.Client) paramsCall { return c.Emails().Launches }))
	cmd.AddCommand(newEmailsQueryCmd("responses", "Query contacts who responded to emails", false,
		func(c *api.Client) paramsCall { return c.Emails().Responses }))
	cmd.AddCommand(newEmailsUnsubscribeCmd())
	cmd.AddCommand(newEmailsCategoriesCmd())

	return cmd
}

type emailIDCall func(ctx context.Context, emailID int, data api.Params) (*api.Response, error)

func newEmailsListCmd() *cobra.Command {
	var (
		status string
		list   string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List emails",
		Example: strings.TrimSpace(`
  emarsys emails list
  emarsys emails list --status ready --list Newsletter
`),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			var emailStatus api.EmailStatus
			if status != "" {
				parsed, err := api.ParseEmailStatus(status)
				if err != nil {
					return fmt.Errorf("invalid --status %q: must be one of %s", status, strings.Join(api.EmailStatusNames(), ", "))
				}
				emailStatus = parsed
			}

			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			var listID int
			if list != "" {
				if listID, err = resolveListID(cmdContext(cmd), client, list); err != nil {
					return err
				}
			}

			resp, err := client.Emails().List(cmdContext(cmd), emailStatus, listID)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printResponse(cmd, resp)
			}
			return printEmailTable(cmd, resp)
		}),
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status: "+strings.Join(api.EmailStatusNames(), "|")+" or its number")
	cmd.Flags().StringVar(&list, "list", "", "Filter by contact list (id or name)")
	return cmd
}

// printEmailTable prints the email list with status numbers spelled out.
func printEmailTable(cmd *cobra.Command, resp *api.Response) error {
	items, err := resp.DataList()
	if err != nil {
		return printResponse(cmd, resp)
	}
	if len(items) == 0 {
		printIfNotQuiet(cmd, "No results found\n")
		return nil
	}
	table := newBulkTable(cmd, "ID", "NAME", "STATUS", "SUBJECT")
	for _, item := range items {
		email, ok := item.(map[string]any)
		if !ok {
			continue
		}
		statusText := cellValue(email["status"])
		if n, err := strconv.Atoi(statusText); err == nil {
			statusText = api.EmailStatus(n).String()
		}
		table.Row(cellValue(email["id"]), cellValue(email["name"]), statusText, cellValue(email["subject"]))
	}
	return table.Flush()
}

func newEmailsCreateCmd() *cobra.Command {
	var (
		data    string
		set     []string
		setJSON []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an email campaign",
		Example: strings.TrimSpace(`
  emarsys emails create --data @campaign.json
  emarsys emails create --set name=Welcome --set subject=Hello --set fromemail=news@example.com --set-json language='"en"'
`),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			body, err := buildRequestBody(cmd, data, set, setJSON)
			if err != nil {
				return err
			}
			if body == nil {
				return fmt.Errorf("email attributes required: use --data, --set or --set-json")
			}
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			if ok, err := dryRunRequest(cmd, client, "create", "email", http.MethodPost, "email", body); ok || err != nil {
				return err
			}
			resp, err := client.Emails().Create(cmdContext(cmd), body)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printResponse(cmd, resp)
			}
			id, _ := resp.ID()
			name, _ := body["name"].(string)
			printAction(cmd, "Created", "email", id, name)
			return nil
		}),
	}

	registerBodyFlags(cmd, &data, &set, &setJSON)
	return cmd
}

// registerBodyFlags adds --data, --set and --set-json.
func registerBodyFlags(cmd *cobra.Command, data *string, set, setJSON *[]string) {
	cmd.Flags().StringVarP(data, "data", "d", "", "Request body as JSON, @file or @-")
	cmd.Flags().StringArrayVar(set, "set", nil, "Set a string parameter: key=value (repeatable)")
	cmd.Flags().StringArrayVar(setJSON, "set-json", nil, "Set a JSON parameter: key=<json> (repeatable)")
}

func newEmailsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <email-id>",
		Aliases: []string{"show"},
		Short:   "Show an email",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			id, err := parsePositiveInt(args[0], "email ID")
			if err != nil {
				return err
			}
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			resp, err := client.Emails().Get(cmdContext(cmd), id, nil)
			if err != nil {
				return err
			}
			return printResponse(cmd, resp)
		}),
	}
}

func newEmailsLaunchCmd() *cobra.Command {
	var (
		req   api.LaunchRequest
		force bool
	)

	cmd := &cobra.Command{
		Use:   "launch <email-id>",
		Short: "Launch an email now or at a scheduled time",
		Example: strings.TrimSpace(`
  emarsys emails launch 1234 --force
  emarsys emails launch 1234 --schedule "2026-11-02 09:00" --timezone Europe/Vienna
  emarsys emails launch 1234 --schedule "tomorrow 08:30" --tz Europe/Berlin
  emarsys emails launch 1234 --at "in 2h"
`),
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			id, err := parsePositiveInt(args[0], "email ID")
			if err != nil {
				return err
			}
			if req.TimeZone != "" && req.ScheduleAt == "" {
				return fmt.Errorf("--timezone requires --schedule")
			}
			if req.ScheduleAt != "" {
				at, err := schedule.Parse(req.ScheduleAt, req.TimeZone, time.Now())
				if err != nil {
					return fmt.Errorf("invalid value for --schedule: %w", err)
				}
				req.ScheduleAt = at
			}
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			path := fmt.Sprintf("email/%d/launch", id)
			if ok, err := dryRunRequest(cmd, client, "launch", "email", http.MethodPost, path, req); ok || err != nil {
				return err
			}

			prompt := fmt.Sprintf("Launch email %d now? (y/N): ", id)
			if req.ScheduleAt != "" {
				prompt = fmt.Sprintf("Schedule email %d for %s? (y/N): ", id, req.ScheduleAt)
			}
			confirmed, err := confirmAction(cmd, confirmOptions{
				Prompt:              prompt,
				CancelMessage:       "Cancelled.",
				Force:               force,
				RequireForceForJSON: true,
			})
			if err != nil || !confirmed {
				return err
			}

			resp, err := client.Emails().Launch(cmdContext(cmd), id, req)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printResponse(cmd, resp)
			}
			if req.ScheduleAt != "" {
				printAction(cmd, "Scheduled", "email", id, req.ScheduleAt)
			} else {
				printAction(cmd, "Launched", "email", id, "")
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&req.ScheduleAt, "schedule", "", "Launch time: YYYY-MM-DD hh:mm, a date, 2h, tomorrow 09:00, next mon; empty launches immediately")
	cmd.Flags().StringVar(&req.TimeZone, "timezone", "", "Time zone of --schedule")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	flagAlias(cmd.Flags(), "schedule", "at")
	flagAlias(cmd.Flags(), "timezone", "tz")
	return cmd
}

func newEmailsPreviewCmd() *cobra.Command {
	var version string

	cmd := &cobra.Command{
		Use:     "preview <email-id>",
		Short:   "Render the HTML or text version of an email",
		Example: "emarsys emails preview 1234 --version text",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			id, err := parsePositiveInt(args[0], "email ID")
			if err != nil {
				return err
			}
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			resp, err := client.Emails().Preview(cmdContext(cmd), id, api.PreviewRequest{Version: version})
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printResponse(cmd, resp)
			}
			var body string
			if err := resp.Decode(&body); err != nil {
				return printResponse(cmd, resp)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), body)
			return nil
		}),
	}

	cmd.Flags().StringVar(&version, "version", "html", "Version to render: html|text")
	return cmd
}

func newEmailsIDQueryCmd(use, short string, pick func(*api.Client) emailIDCall) *cobra.Command {
	var (
		data    string
		set     []string
		setJSON []string
	)

	cmd := &cobra.Command{
		Use:   use + " <email-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			id, err := parsePositiveInt(args[0], "email ID")
			if err != nil {
				return err
			}
			body, err := buildRequestBody(cmd, data, set, setJSON)
			if err != nil {
				return err
			}
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			resp, err := pick(client)(cmdContext(cmd), id, body)
			if err != nil {
				return err
			}
			return printResponse(cmd, resp)
		}),
	}

	registerBodyFlags(cmd, &data, &set, &setJSON)
	return cmd
}

// newEmailsQueryCmd builds a POST query taking --email-id (and --launch-id
// when withLaunch is set) plus free-form body flags.
func newEmailsQueryCmd(use, short string, withLaunch bool, pick func(*api.Client) paramsCall) *cobra.Command {
	var (
		emailID  int
		launchID int
		data     string
		set      []string
		setJSON  []string
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			body, err := buildRequestBody(cmd, data, set, setJSON)
			if err != nil {
				return err
			}
			if body == nil {
				body = api.Params{}
			}
			if emailID > 0 {
				body["emailId"] = emailID
			}
			if withLaunch && launchID > 0 {
				body["launchId"] = launchID
			}
			if len(body) == 0 {
				return fmt.Errorf("request body required: use --email-id, --data, --set or --set-json")
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

	cmd.Flags().IntVar(&emailID, "email-id", 0, "Email id")
	if withLaunch {
		cmd.Flags().IntVar(&launchID, "launch-id", 0, "Launch id")
	}
	registerBodyFlags(cmd, &data, &set, &setJSON)
	return cmd
}

func newEmailsTestCmd() *cobra.Command {
	var recipients string

	cmd := &cobra.Command{
		Use:     "test <email-id>",
		Short:   "Send a test mail of an email",
		Example: "emarsys emails test 1234 --to ada@example.com,bob@example.com",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			id, err := parsePositiveInt(args[0], "email ID")
			if err != nil {
				return err
			}
			to, err := ParseStringListFlag(cmd, recipients)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			if err := validation.ValidateRecipients(to); err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			path := fmt.Sprintf("email/%d/sendtestmail", id)
			if ok, err := dryRunRequest(cmd, client, "send test", "email", http.MethodPost, path,
				api.Params{"recipientlist": strings.Join(to, ";")}); ok || err != nil {
				return err
			}
			resp, err := client.Emails().SendTest(cmdContext(cmd), id, api.SendTestRequest{Recipients: to})
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printResponse(cmd, resp)
			}
			printAction(cmd, "Sent test of", "email", id, strings.Join(to, ", "))
			return nil
		}),
	}

	cmd.Flags().StringVar(&recipients, "to", "", "Recipients: comma separated, JSON array, @file or @-")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newEmailsUnsubscribeCmd() *cobra.Command {
	var (
		contactID int
		emailID   int
		launchID  int
		force     bool
	)

	cmd := &cobra.Command{
		Use:     "unsubscribe",
		Short:   "Unsubscribe a contact from an email launch",
		Example: "emarsys emails unsubscribe --contact-id 4711 --email-id 1234 --launch-id 55 --force",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			if contactID <= 0 || emailID <= 0 || launchID <= 0 {
				return fmt.Errorf("--contact-id, --email-id and --launch-id must be positive integers")
			}
			body := api.Params{
				"contact_id":     contactID,
				"email_id":       emailID,
				"launch_list_id": launchID,
			}
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			if ok, err := dryRunRequest(cmd, client, "unsubscribe", "email", http.MethodPost, "email/unsubscribe", body); ok || err != nil {
				return err
			}
			confirmed, err := confirmAction(cmd, confirmOptions{
				Prompt:              fmt.Sprintf("Unsubscribe contact %d from email %d? (y/N): ", contactID, emailID),
				CancelMessage:       "Cancelled.",
				Force:               force,
				RequireForceForJSON: true,
			})
			if err != nil || !confirmed {
				return err
			}
			resp, err := client.Emails().Unsubscribe(cmdContext(cmd), body)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printResponse(cmd, resp)
			}
			printAction(cmd, "Unsubscribed", "contact", contactID, "")
			return nil
		}),
	}

	cmd.Flags().IntVar(&contactID, "contact-id", 0, "Internal contact id")
	cmd.Flags().IntVar(&emailID, "email-id", 0, "Email id")
	cmd.Flags().IntVar(&launchID, "launch-id", 0, "Launch list id")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	return cmd
}

func newEmailsCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List email categories",
		Args:  cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			resp, err := client.Emails().Categories(cmdContext(cmd), nil)
			if err != nil {
				return err
			}
			return printResponse(cmd, resp, "id", "category")
		}),
	}
}
