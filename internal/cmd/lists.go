package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/snowcap/emarsys-cli/internal/api"
	"github.com/snowcap/emarsys-cli/internal/resolve"
	"github.com/snowcap/emarsys-cli/internal/validation"
)

func newListsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "lists",
		Aliases: []string{"list", "contactlists", "l"},
		Short:   "Manage contact lists",
		Long:    "Manage contact lists. Lists may be given by numeric id or by name.",
	}

	cmd.AddCommand(newListsListCmd())
	cmd.AddCommand(newListsCreateCmd())
	cmd.AddCommand(newListsDeleteCmd())
	cmd.AddCommand(newListsMembersCmd("add", "Add contacts to a list", "Added", "add"))
	cmd.AddCommand(newListsMembersCmd("remove", "Remove contacts from a list", "Removed", "delete"))
	cmd.AddCommand(newListsContactsCmd())
	cmd.AddCommand(newListsCheckCmd())

	return cmd
}

// namedItems turns a data list of {id, name} objects into resolve candidates.
func namedItems(resp *api.Response) ([]resolve.Named, error) {
	items, err := resp.DataList()
	if err != nil {
		return nil, err
	}
	out := make([]resolve.Named, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, ok := intValue(obj["id"])
		if !ok {
			continue
		}
		name, _ := obj["name"].(string)
		out = append(out, resolve.Named{ID: id, Name: name})
	}
	return out, nil
}

// resolveListID accepts a list id or a list name.
func resolveListID(ctx context.Context, client *api.Client, ref string) (int, error) {
	return resolve.IDOrName("contact list", ref, func() ([]resolve.Named, error) {
		resp, err := client.ContactLists().List(ctx, nil)
		if err != nil {
			return nil, err
		}
		return namedItems(resp)
	})
}

func newListsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List contact lists",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			resp, err := client.ContactLists().List(cmdContext(cmd), nil)
			if err != nil {
				return err
			}
			return printResponse(cmd, resp, "id", "name", "created")
		}),
	}
}

func newListsCreateCmd() *cobra.Command {
	var (
		req         api.CreateContactListRequest
		externalIDs string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a contact list",
		Example: strings.TrimSpace(`
  emarsys lists create "Newsletter 2026"
  emarsys lists create VIP --key-id email --external-ids ada@example.com,bob@example.com
`),
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			req.Name = strings.TrimSpace(args[0])
			if err := validation.ValidateName(req.Name, "contact list"); err != nil {
				return err
			}
			if externalIDs != "" {
				ids, err := ParseStringListFlag(cmd, externalIDs)
				if err != nil {
					return fmt.Errorf("--external-ids: %w", err)
				}
				req.ExternalIDs = ids
			}

			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			if dryRunEnabled(cmd) {
				preview := req
				if preview.KeyID != "" {
					if preview.KeyID, err = client.Mapping().FieldKey(preview.KeyID); err != nil {
						return err
					}
				}
				_, err := dryRunRequest(cmd, client, "create", "contact list", http.MethodPost, "contactlist", preview)
				return err
			}

			resp, err := client.ContactLists().Create(cmdContext(cmd), req)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printResponse(cmd, resp)
			}
			id, _ := resp.ID()
			printAction(cmd, "Created", "contact list", id, req.Name)
			return nil
		}),
	}

	cmd.Flags().StringVar(&req.Description, "description", "", "List description")
	cmd.Flags().StringVar(&req.KeyID, "key-id", "", "Field identifying --external-ids, e.g. email")
	cmd.Flags().StringVar(&externalIDs, "external-ids", "", "Initial members: comma separated, JSON array, @file or @-")
	flagAlias(cmd.Flags(), "description", "desc")
	flagAlias(cmd.Flags(), "key-id", "key")
	return cmd
}

func newListsDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "delete <list>",
		Aliases: []string{"rm"},
		Short:   "Delete a contact list (its contacts are kept)",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			id, err := resolveListID(cmdContext(cmd), client, args[0])
			if err != nil {
				return err
			}
			path := fmt.Sprintf("contactlist/%d/deletelist", id)
			if ok, err := dryRunRequest(cmd, client, "delete", "contact list", http.MethodPost, path, nil); ok || err != nil {
				return err
			}

			confirmed, err := confirmAction(cmd, confirmOptions{
				Prompt:              fmt.Sprintf("Delete contact list %d? (y/N): ", id),
				CancelMessage:       "Cancelled.",
				Force:               force,
				RequireForceForJSON: true,
			})
			if err != nil || !confirmed {
				return err
			}

			resp, err := client.ContactLists().Delete(cmdContext(cmd), id)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printResponse(cmd, resp)
			}
			printAction(cmd, "Deleted", "contact list", id, "")
			return nil
		}),
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	return cmd
}

func newListsMembersCmd(use, short, action, pathSuffix string) *cobra.Command {
	var (
		keyID       string
		externalIDs string
	)

	cmd := &cobra.Command{
		Use:     use + " <list>",
		Short:   short,
		Example: fmt.Sprintf("emarsys lists %s Newsletter --key-id email --external-ids ada@example.com,bob@example.com", use),
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			ids, err := ParseStringListFlag(cmd, externalIDs)
			if err != nil {
				return fmt.Errorf("--external-ids: %w", err)
			}
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			listID, err := resolveListID(cmdContext(cmd), client, args[0])
			if err != nil {
				return err
			}
			members := api.ContactListMembers{KeyID: keyID, ExternalIDs: ids}

			if dryRunEnabled(cmd) {
				preview := members
				if preview.KeyID != "" {
					if preview.KeyID, err = client.Mapping().FieldKey(preview.KeyID); err != nil {
						return err
					}
				}
				path := fmt.Sprintf("contactlist/%d/%s", listID, pathSuffix)
				_, err := dryRunRequest(cmd, client, use, "contact list", http.MethodPost, path, preview)
				return err
			}

			send := client.ContactLists().Add
			if use == "remove" {
				send = client.ContactLists().Remove
			}
			resp, err := send(cmdContext(cmd), listID, members)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printResponse(cmd, resp)
			}
			printAction(cmd, action, fmt.Sprintf("%d contacts, list", len(ids)), listID, "")
			return nil
		}),
	}

	cmd.Flags().StringVar(&keyID, "key-id", "email", "Field identifying --external-ids")
	cmd.Flags().StringVar(&externalIDs, "external-ids", "", "Key values: comma separated, JSON array, @file or @-")
	_ = cmd.MarkFlagRequired("external-ids")
	flagAlias(cmd.Flags(), "key-id", "key")
	flagAlias(cmd.Flags(), "external-ids", "ids")
	return cmd
}

func newListsContactsCmd() *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:     "contacts <list>",
		Short:   "List the contact ids of a list",
		Example: "emarsys lists contacts Newsletter --limit 100",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			if limit < 0 || offset < 0 {
				return fmt.Errorf("--limit and --offset must be >= 0")
			}
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			listID, err := resolveListID(cmdContext(cmd), client, args[0])
			if err != nil {
				return err
			}
			params := api.Params{}
			if limit > 0 {
				params["limit"] = limit
			}
			if offset > 0 {
				params["offset"] = offset
			}
			resp, err := client.ContactLists().Contacts(cmdContext(cmd), listID, params)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printResponse(cmd, resp)
			}
			ids, err := resp.DataList()
			if err != nil {
				return printResponse(cmd, resp)
			}
			if len(ids) == 0 {
				printIfNotQuiet(cmd, "No results found\n")
				return nil
			}
			for _, id := range ids {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), cellValue(id))
			}
			return nil
		}),
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of ids")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of ids to skip")
	return cmd
}

func newListsCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "check <list> <contact-id>",
		Short:   "Check whether a contact is in a list",
		Example: "emarsys lists check Newsletter 4711",
		Args:    cobra.ExactArgs(2),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			contactID, err := parsePositiveInt(args[1], "contact ID")
			if err != nil {
				return err
			}
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			listID, err := resolveListID(cmdContext(cmd), client, args[0])
			if err != nil {
				return err
			}
			resp, err := client.ContactLists().Contains(cmdContext(cmd), listID, contactID)
			if err != nil {
				return err
			}
			var member bool
			_ = resp.Decode(&member)
			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{"list_id": listID, "contact_id": contactID, "member": member})
			}
			if member {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Contact %d is in list %d\n", contactID, listID)
			} else {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Contact %d is not in list %d\n", contactID, listID)
			}
			return nil
		}),
	}
}
