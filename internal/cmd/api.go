package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/snowcap/emarsys-cli/internal/api"
)

var validMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

func newAPICmd() *cobra.Command {
	var (
		method         string
		fields         []string
		rawFields      []string
		inputFile      string
		jsonBody       string
		silent         bool
		includeHeaders bool
	)

	cmd := &cobra.Command{
		Use:     "api [METHOD] <path>",
		Aliases: []string{"ap"},
		Short:   "Make signed raw requests to any Emarsys endpoint",
		Long: `Make signed raw requests to any Emarsys endpoint.

The path is relative to the API root (--base-url), for example "settings" or
"contact/3=ada@example.com". GET parameters given with -f/-F are appended in
the path style Emarsys expects. Other methods send them as a JSON body.`,
		Example: `  # GET request (default)
  emarsys api settings

  # Method as first argument
  emarsys api POST contact/getdata -F keyId=3 -F 'keyValues=["ada@example.com"]'

  # Inline JSON body
  emarsys api contact -X PUT -d '{"key_id":3,"3":"ada@example.com","1":"Ada"}'

  # Read body from file or stdin
  emarsys api email -X POST -i campaign.json
  echo '{"name":"webshop"}' | emarsys api source/create -X POST -i -

  # Filter the envelope with jq
  emarsys api field --jq '.data[] | select(.application_type == "singlechoice") | .name'

  # Show status and response headers
  emarsys api settings --include`,
		Args: cobra.RangeArgs(1, 2),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if len(args) == 2 {
				if flagOrAliasChanged(cmd, "method") {
					return fmt.Errorf("give the method either as an argument or with --method, not both")
				}
				method, path = args[0], args[1]
			}
			method = strings.ToUpper(method)
			if !validMethods[method] {
				return fmt.Errorf("invalid HTTP method %q: must be one of GET, POST, PUT, PATCH, DELETE", method)
			}
			if jsonBody != "" && inputFile != "" {
				return fmt.Errorf("cannot use both --body and --input flags")
			}
			bodySource := jsonBody
			if inputFile != "" {
				bodySource = "@" + inputFile
			}
			body, err := buildRequestBody(cmd, bodySource, fields, rawFields)
			if err != nil {
				return err
			}

			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			if method != http.MethodGet {
				if ok, err := dryRunRequest(cmd, client, strings.ToLower(method), path, method, path, body); ok || err != nil {
					return err
				}
			}

			if includeHeaders {
				return sendRaw(cmd, client, method, path, body, silent)
			}

			resp, err := client.Send(cmdContext(cmd), method, path, body)
			if err != nil {
				return err
			}
			if silent {
				return nil
			}
			return printJSON(cmd, envelope(resp))
		}),
	}

	cmd.Flags().StringVarP(&method, "method", "X", http.MethodGet, "HTTP method (GET, POST, PUT, PATCH, DELETE)")
	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "Parameter as key=value (string)")
	cmd.Flags().StringArrayVarP(&rawFields, "raw-field", "F", nil, "Parameter as key=value (JSON parsed)")
	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "Read request body from file (use - for stdin)")
	cmd.Flags().StringVarP(&jsonBody, "body", "d", "", "Request body as inline JSON string")
	cmd.Flags().BoolVarP(&silent, "silent", "s", false, "Suppress output")
	cmd.Flags().BoolVar(&includeHeaders, "include", false, "Include status and response headers; error statuses are printed, not failed")
	flagAlias(cmd.Flags(), "include", "inc")

	return cmd
}

// envelope is the JSON form of a decoded reply.
func envelope(resp *api.Response) map[string]any {
	data, err := responseData(resp)
	if err != nil {
		data = string(resp.Data)
	}
	return map[string]any{
		"replyCode": int(resp.ReplyCode),
		"replyText": resp.ReplyText,
		"data":      data,
	}
}

// sendRaw performs a signed request and prints the HTTP exchange as received.
func sendRaw(cmd *cobra.Command, client *api.Client, method, path string, body any, silent bool) error {
	req, err := client.BuildRequest(method, path, body)
	if err != nil {
		return err
	}
	resp, err := client.Transport().Send(cmdContext(cmd), req.Method, req.URL, req.Header, req.Body)
	if err != nil {
		return &api.ServerError{Message: err.Error(), Err: err}
	}
	if silent {
		return nil
	}

	if isJSON(cmd) {
		return printJSON(cmd, map[string]any{
			"status":  resp.StatusCode,
			"headers": resp.Header,
			"body":    apiJSONBody(resp.Body),
		})
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "HTTP %d\n", resp.StatusCode)
	keys := make([]string, 0, len(resp.Header))
	for k := range resp.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range resp.Header[k] {
			_, _ = fmt.Fprintf(out, "%s: %s\n", k, v)
		}
	}
	_, _ = fmt.Fprintln(out)

	if len(resp.Body) > 0 {
		pretty := &bytes.Buffer{}
		if err := json.Indent(pretty, resp.Body, "", "  "); err == nil {
			_, _ = fmt.Fprintln(out, pretty.String())
			return nil
		}
		_, _ = fmt.Fprintln(out, string(resp.Body))
	}
	return nil
}

func apiJSONBody(respBody []byte) any {
	if len(respBody) == 0 {
		return nil
	}
	if !json.Valid(respBody) {
		return string(respBody)
	}
	return json.RawMessage(respBody)
}
