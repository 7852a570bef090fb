package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/snowcap/emarsys-cli/internal/api"
	"github.com/snowcap/emarsys-cli/internal/validation"
)

func newSourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sources",
		Aliases: []string{"source", "src"},
		Short:   "Manage contact sources",
	}

	cmd.AddCommand(newSourcesListCmd())
	cmd.AddCommand(newSourcesCreateCmd())
	cmd.AddCommand(newSourcesDeleteCmd())
	return cmd
}

func newSourcesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List contact sources",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			resp, err := client.Sources().List(cmdContext(cmd))
			if err != nil {
				return err
			}
			return printResponse(cmd, resp, "id", "name")
		}),
	}
}

func newSourcesCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "create <name>",
		Short:   "Create a contact source",
		Example: "emarsys sources create webshop",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if err := validation.ValidateName(name, "source"); err != nil {
				return err
			}
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			if ok, err := dryRunRequest(cmd, client, "create", "source", http.MethodPost, "source/create", api.Params{"name": name}); ok || err != nil {
				return err
			}
			resp, err := client.Sources().Create(cmdContext(cmd), name)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printResponse(cmd, resp)
			}
			id, _ := resp.ID()
			printAction(cmd, "Created", "source", id, name)
			return nil
		}),
	}
}

func newSourcesDeleteCmd() *cobra.Command {
	var (
		force       bool
		concurrency int64
	)

	cmd := &cobra.Command{
		Use:     "delete <id>[,<id>...]",
		Aliases: []string{"rm"},
		Short:   "Delete contact sources",
		Example: "emarsys sources delete 12,13 --force",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			ids, err := ParseIntList(args[0])
			if err != nil {
				return err
			}
			client, err := getClient(cmd)
			if err != nil {
				return err
			}

			if dryRunEnabled(cmd) {
				for _, id := range ids {
					path := fmt.Sprintf("source/%d/delete", id)
					if _, err := dryRunRequest(cmd, client, "delete", "source", http.MethodDelete, path, nil); err != nil {
						return err
					}
				}
				return nil
			}

			confirmed, err := confirmAction(cmd, confirmOptions{
				Prompt:              fmt.Sprintf("Delete %d source(s)? (y/N): ", len(ids)),
				CancelMessage:       "Cancelled.",
				Force:               force,
				RequireForceForJSON: true,
			})
			if err != nil || !confirmed {
				return err
			}

			if len(ids) == 1 {
				resp, err := client.Sources().Delete(cmdContext(cmd), ids[0])
				if err != nil {
					return err
				}
				if isJSON(cmd) {
					return printResponse(cmd, resp)
				}
				printAction(cmd, "Deleted", "source", ids[0], "")
				return nil
			}

			keys := make([]string, len(ids))
			for i, id := range ids {
				keys[i] = strconv.Itoa(id)
			}
			results := runBulkOperation(cmdContext(cmd), keys, concurrency,
				bulkProgressEnabled(cmd, len(keys) > 1), cmd.ErrOrStderr(),
				func(ctx context.Context, key string) (string, error) {
					id, _ := strconv.Atoi(key)
					resp, err := client.Sources().Delete(ctx, id)
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
			printIfNotQuiet(cmd, "Deleted %d sources (%d failed)\n", succeeded, failed)
			return bulkError(results)
		}),
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	cmd.Flags().Int64Var(&concurrency, "concurrency", DefaultConcurrency, "Parallel deletes")
	return cmd
}
