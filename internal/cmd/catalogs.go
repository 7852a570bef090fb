package cmd

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/snowcap/emarsys-cli/internal/api"
	"github.com/snowcap/emarsys-cli/internal/cache"
)

type listingCall func(ctx context.Context, client *api.Client, params api.Params) (*api.Response, error)

// newListingCmd builds a read-only listing. Repeated --param key=value flags
// become GET parameters.
func newListingCmd(use string, aliases []string, short string, columns []string, call listingCall) *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:     use,
		Aliases: aliases,
		Short:   short,
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			query, err := buildRequestBody(cmd, "", params, nil)
			if err != nil {
				return err
			}
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			resp, err := call(cmdContext(cmd), client, query)
			if err != nil {
				return err
			}
			return printResponse(cmd, resp, columns...)
		}),
	}

	cmd.Flags().StringArrayVar(&params, "param", nil, "GET parameter key=value (repeatable)")
	return cmd
}

func newConditionsCmd() *cobra.Command {
	return newListingCmd("conditions", []string{"condition"}, "List the condition rules usable in segments",
		[]string{"id", "name"},
		func(ctx context.Context, c *api.Client, _ api.Params) (*api.Response, error) {
			return c.Conditions().List(ctx)
		})
}

func newSegmentsCmd() *cobra.Command {
	return newListingCmd("segments", []string{"segment", "filters"}, "List contact segments",
		[]string{"id", "name"},
		func(ctx context.Context, c *api.Client, p api.Params) (*api.Response, error) {
			return c.Segments().List(ctx, p)
		})
}

func newFoldersCmd() *cobra.Command {
	return newListingCmd("folders", []string{"folder"}, "List media database folders",
		[]string{"id", "name", "parent"},
		func(ctx context.Context, c *api.Client, p api.Params) (*api.Response, error) {
			return c.Folders().List(ctx, p)
		})
}

func newFormsCmd() *cobra.Command {
	return newListingCmd("forms", []string{"form"}, "List forms",
		[]string{"id", "name", "created"},
		func(ctx context.Context, c *api.Client, p api.Params) (*api.Response, error) {
			return c.Forms().List(ctx, p)
		})
}

func newLanguagesCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:     "languages",
		Aliases: []string{"language", "lang"},
		Short:   "List the languages available for contacts",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)

			var store cache.Store
			if !cache.Disabled() {
				store = cache.Open(ctx, resolveCacheDir(), cache.Scope{
					Resource: "languages",
					BaseURL:  client.BaseURL,
					Username: client.Username,
				}, cache.DefaultTTL)
			}
			var languages []any
			if store == nil || refresh || !store.Get(ctx, &languages) {
				resp, err := client.Languages().List(ctx)
				if err != nil {
					return err
				}
				if languages, err = resp.DataList(); err != nil {
					return err
				}
				if store != nil {
					store.Put(ctx, languages)
				}
			}

			resp, err := (&api.Response{}).WithData(languages)
			if err != nil {
				return err
			}
			return printResponse(cmd, resp, "id", "language")
		}),
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass the cache")
	return cmd
}

func newFilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "files",
		Aliases: []string{"file", "media"},
		Short:   "Manage the media database",
	}

	cmd.AddCommand(newFilesListCmd())
	cmd.AddCommand(newFilesUploadCmd())
	return cmd
}

func newFilesListCmd() *cobra.Command {
	var (
		folder   int
		fileType string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List media database files",
		Example: "emarsys files list --folder 7 --type image",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			params := api.Params{}
			if folder > 0 {
				params["folder"] = folder
			}
			if fileType != "" {
				params["type"] = fileType
			}
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			resp, err := client.Files().List(cmdContext(cmd), params)
			if err != nil {
				return err
			}
			return printResponse(cmd, resp, "id", "filename", "folder", "url")
		}),
	}

	cmd.Flags().IntVar(&folder, "folder", 0, "Folder id")
	cmd.Flags().StringVar(&fileType, "type", "", "File type: image|other")
	return cmd
}

func newFilesUploadCmd() *cobra.Command {
	var (
		folder int
		name   string
	)

	cmd := &cobra.Command{
		Use:     "upload <path>",
		Short:   "Upload a file to the media database",
		Example: "emarsys files upload ./banner.png --folder 7",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			if name == "" {
				name = filepath.Base(args[0])
			}
			body := api.Params{
				"filename": name,
				"file":     base64.StdEncoding.EncodeToString(content),
			}
			if folder > 0 {
				body["folder"] = folder
			}

			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			if dryRunEnabled(cmd) {
				summary := api.Params{"filename": name}
				if folder > 0 {
					summary["folder"] = folder
				}
				preview, err := requestPreview(client, "upload", "file", http.MethodPost, "file", summary)
				if err != nil {
					return err
				}
				preview.Details = map[string]any{"bytes": len(content)}
				_, err = maybeDryRun(cmd, preview)
				return err
			}

			resp, err := client.Files().Upload(cmdContext(cmd), body)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printResponse(cmd, resp)
			}
			id, _ := resp.ID()
			printAction(cmd, "Uploaded", "file", id, name)
			return nil
		}),
	}

	cmd.Flags().IntVar(&folder, "folder", 0, "Target folder id")
	cmd.Flags().StringVar(&name, "name", "", "File name in the media database (default: base name of path)")
	return cmd
}

func newExportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "exports",
		Aliases: []string{"export"},
		Short:   "Inspect asynchronous exports",
	}
	cmd.AddCommand(&cobra.Command{
		Use:     "status <export-id>",
		Short:   "Show the status of an export",
		Example: "emarsys exports status 2140",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			id, err := parsePositiveInt(args[0], "export ID")
			if err != nil {
				return err
			}
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			resp, err := client.Exports().Status(cmdContext(cmd), api.Params{"id": id})
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printResponse(cmd, resp)
			}
			data, err := resp.DataMap()
			if err != nil {
				return printResponse(cmd, resp)
			}
			out := cmd.OutOrStdout()
			for _, key := range sortedKeys(data) {
				_, _ = fmt.Fprintf(out, "%s: %s\n", strings.ReplaceAll(key, "_", " "), cellValue(data[key]))
			}
			return nil
		}),
	})
	return cmd
}
