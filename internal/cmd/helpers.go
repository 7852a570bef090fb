package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/snowcap/emarsys-cli/internal/api"
	"github.com/snowcap/emarsys-cli/internal/cache"
	"github.com/snowcap/emarsys-cli/internal/dryrun"
	"github.com/snowcap/emarsys-cli/internal/filter"
	"github.com/snowcap/emarsys-cli/internal/iocontext"
	"github.com/snowcap/emarsys-cli/internal/mapping"
	"github.com/snowcap/emarsys-cli/internal/outfmt"
)

// getClient creates an API client from the resolved credentials and makes the
// mapping-aware jq functions available to the command's output.
func getClient(cmd *cobra.Command) (*api.Client, error) {
	client, err := newClientFactory().client()
	if err != nil {
		return nil, err
	}
	cmd.SetContext(withMappingFilters(cmd.Context(), client.Mapping()))
	return client, nil
}

// getMapping loads the mappings in effect without credentials.
func getMapping(cmd *cobra.Command) (*mapping.Store, error) {
	store, err := newClientFactory().mapping()
	if err != nil {
		return nil, err
	}
	cmd.SetContext(withMappingFilters(cmd.Context(), store))
	return store, nil
}

// withMappingFilters registers `fieldname` (id to name) and `fieldid`
// (name to id) for --jq expressions.
func withMappingFilters(ctx context.Context, store *mapping.Store) context.Context {
	return outfmt.WithFilterOptions(ctx,
		filter.WithFunction("fieldname", func(v any) any {
			if id, ok := intValue(v); ok {
				return store.FieldName(id)
			}
			return v
		}),
		filter.WithFunction("fieldid", func(v any) any {
			name, ok := v.(string)
			if !ok {
				return v
			}
			id, err := store.FieldID(name)
			if err != nil {
				return nil
			}
			return id
		}),
	)
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	case string:
		if id, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return id, true
		}
	}
	return 0, false
}

// printJSON renders v with the query, template and compact settings of the command.
func printJSON(cmd *cobra.Command, v any) error {
	ioStreams := iocontext.GetIO(cmd.Context())
	return outfmt.Render(cmd.Context(), ioStreams.Out, v)
}

// printJSONErr writes a JSON value to stderr.
func printJSONErr(cmd *cobra.Command, v any) error {
	ioStreams := iocontext.GetIO(cmd.Context())
	return outfmt.WriteJSON(ioStreams.ErrOut, v, outfmt.IsCompact(cmd.Context()))
}

// responseData decodes the data member of resp into plain maps and slices.
func responseData(resp *api.Response) (any, error) {
	if resp == nil {
		return map[string]any{}, nil
	}
	raw := bytes.TrimSpace(resp.Data)
	if len(raw) == 0 || string(raw) == "null" {
		return map[string]any{}, nil
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode response data: %w", err)
	}
	return data, nil
}

// printResponse prints the data of resp. JSON modes render it through the
// output pipeline. Text mode prints lists of objects as a table of columns
// and everything else as indented JSON.
func printResponse(cmd *cobra.Command, resp *api.Response, columns ...string) error {
	data, err := responseData(resp)
	if err != nil {
		return err
	}
	if isJSON(cmd) {
		return printJSON(cmd, data)
	}

	out := iocontext.GetIO(cmd.Context()).Out
	items, ok := data.([]any)
	if !ok || len(columns) == 0 {
		if ok && len(items) == 0 {
			printIfNotQuiet(cmd, "No results found\n")
			return nil
		}
		return outfmt.WriteJSON(out, data, false)
	}
	if len(items) == 0 {
		printIfNotQuiet(cmd, "No results found\n")
		return nil
	}

	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = strings.ToUpper(c)
	}
	table := outfmt.NewTable(out, headers...)
	for _, item := range items {
		row := make([]string, len(columns))
		if obj, ok := item.(map[string]any); ok {
			for i, c := range columns {
				row[i] = cellValue(obj[c])
			}
		} else {
			row[0] = cellValue(item)
		}
		table.Row(row...)
	}
	return table.Flush()
}

// cellValue formats a decoded JSON value for a table cell.
func cellValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

// isJSON checks if the command context wants JSON output
func isJSON(cmd *cobra.Command) bool {
	return outfmt.IsJSON(cmd.Context())
}

// printIfNotQuiet prints to stdout only if not in quiet mode
func printIfNotQuiet(cmd *cobra.Command, format string, args ...any) {
	if !flags.Quiet {
		ioStreams := iocontext.GetIO(cmd.Context())
		_, _ = fmt.Fprintf(ioStreams.Out, format, args...)
	}
}

func printAction(cmd *cobra.Command, action, resource string, id any, name string) {
	if flags.Quiet || isJSON(cmd) {
		return
	}

	ioStreams := iocontext.GetIO(cmd.Context())
	message := fmt.Sprintf("%s %s", action, resource)
	if id != nil {
		if value, ok := id.(string); !ok || value != "" {
			message = fmt.Sprintf("%s %v", message, id)
		}
	}
	if name != "" {
		message = fmt.Sprintf("%s: %s", message, name)
	}
	_, _ = fmt.Fprintln(ioStreams.Out, message)
}

func bulkProgressEnabled(cmd *cobra.Command, progress bool) bool {
	return progress && !isJSON(cmd) && !flags.Quiet
}

// cmdContext returns the command context
func cmdContext(cmd *cobra.Command) context.Context {
	return cmd.Context()
}

// requestPreview describes the request client would send for body. The
// signature header is left out.
func requestPreview(client *api.Client, operation, resource, method, path string, body any) (*dryrun.Preview, error) {
	req, err := client.BuildRequest(method, path, body)
	if err != nil {
		return nil, err
	}
	return &dryrun.Preview{
		Operation: operation,
		Resource:  resource,
		Method:    req.Method,
		URL:       req.URL,
		Body:      req.Body,
	}, nil
}

// maybeDryRun prints preview and reports true when --dry-run is active.
func maybeDryRun(cmd *cobra.Command, preview *dryrun.Preview) (bool, error) {
	if !dryrun.IsEnabled(cmd.Context()) {
		return false, nil
	}
	if preview == nil {
		preview = &dryrun.Preview{}
	}
	if isJSON(cmd) {
		return true, printJSON(cmd, preview.Payload())
	}
	preview.Write(iocontext.GetIO(cmd.Context()).Out)
	return true, nil
}

func dryRunEnabled(cmd *cobra.Command) bool {
	return dryrun.IsEnabled(cmd.Context())
}

// dryRunRequest combines requestPreview and maybeDryRun.
func dryRunRequest(cmd *cobra.Command, client *api.Client, operation, resource, method, path string, body any) (bool, error) {
	if !dryrun.IsEnabled(cmd.Context()) {
		return false, nil
	}
	preview, err := requestPreview(client, operation, resource, method, path, body)
	if err != nil {
		return true, err
	}
	return maybeDryRun(cmd, preview)
}

// aliasBridgeValue wraps a pflag.Value so that setting the alias also marks
// the canonical flag as changed, which satisfies MarkFlagRequired.
type aliasBridgeValue struct {
	pflag.Value
	canonical *pflag.Flag
}

func (v *aliasBridgeValue) Set(s string) error {
	if err := v.Value.Set(s); err != nil {
		return err
	}
	v.canonical.Changed = true
	return nil
}

// aliasBridgeSliceValue also forwards pflag.SliceValue.
type aliasBridgeSliceValue struct {
	aliasBridgeValue
	slice pflag.SliceValue
}

func (v *aliasBridgeSliceValue) Append(s string) error     { return v.slice.Append(s) }
func (v *aliasBridgeSliceValue) Replace(ss []string) error { return v.slice.Replace(ss) }
func (v *aliasBridgeSliceValue) GetSlice() []string        { return v.slice.GetSlice() }

// flagAlias registers a hidden alias sharing the value of flag name.
func flagAlias(fs *pflag.FlagSet, name, alias string) {
	f := fs.Lookup(name)
	if f == nil {
		panic(fmt.Sprintf("flagAlias: flag %q not found", name))
	}
	a := *f
	a.Name = alias
	a.Shorthand = ""
	a.Usage = ""
	a.Hidden = true
	bridge := &aliasBridgeValue{Value: f.Value, canonical: f}
	if sv, ok := f.Value.(pflag.SliceValue); ok {
		a.Value = &aliasBridgeSliceValue{aliasBridgeValue: *bridge, slice: sv}
	} else {
		a.Value = bridge
	}
	// The alias is never independently required.
	ann := map[string][]string{"alias-of": {name}}
	for k, v := range f.Annotations {
		if k == cobra.BashCompOneRequiredFlag {
			continue
		}
		ann[k] = v
	}
	a.Annotations = ann
	fs.AddFlag(&a)
}

// flagOrAliasChanged reports whether the flag or one of its aliases was set.
func flagOrAliasChanged(cmd *cobra.Command, name string) bool {
	if cmd.Flags().Changed(name) || cmd.InheritedFlags().Changed(name) {
		return true
	}

	aliasChanged := func(fs *pflag.FlagSet) bool {
		found := false
		fs.VisitAll(func(f *pflag.Flag) {
			if found {
				return
			}
			if ann, ok := f.Annotations["alias-of"]; ok && len(ann) > 0 && ann[0] == name && fs.Changed(f.Name) {
				found = true
			}
		})
		return found
	}
	return aliasChanged(cmd.Flags()) || aliasChanged(cmd.InheritedFlags())
}

type confirmOptions struct {
	Prompt        string
	Expected      string
	CancelMessage string
	Force         bool
	// RequireForceForJSON refuses to prompt when output is JSON.
	RequireForceForJSON bool
}

func confirmAction(cmd *cobra.Command, opts confirmOptions) (bool, error) {
	if flags.Yes {
		opts.Force = true
	}
	if opts.Force {
		return true, nil
	}
	if opts.RequireForceForJSON && isJSON(cmd) {
		return false, fmt.Errorf("--force (or --yes) is required when using --output json")
	}

	ioStreams := iocontext.GetIO(cmd.Context())
	out := ioStreams.ErrOut
	if opts.Prompt != "" {
		_, _ = fmt.Fprint(out, opts.Prompt)
	}

	response, err := bufio.NewReader(ioStreams.In).ReadString('\n')
	if err != nil && response == "" {
		if opts.CancelMessage != "" {
			_, _ = fmt.Fprintln(out, opts.CancelMessage)
		}
		return false, nil
	}

	expected := strings.TrimSpace(strings.ToLower(opts.Expected))
	if expected == "" {
		expected = "y"
	}
	if strings.TrimSpace(strings.ToLower(response)) != expected {
		if opts.CancelMessage != "" {
			_, _ = fmt.Fprintln(out, opts.CancelMessage)
		}
		return false, nil
	}
	return true, nil
}

// splitCommaList splits a comma separated value, dropping empty entries.
func splitCommaList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// loadAtValue returns value, or the contents of the file it names with
// "@path" ("@-" reads standard input).
func loadAtValue(cmd *cobra.Command, value string) (string, error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "@") {
		return value, nil
	}
	target := strings.TrimPrefix(value, "@")
	if target == "" {
		return "", fmt.Errorf("invalid @ value: missing path (use @- for stdin)")
	}
	if target == "-" {
		data, err := io.ReadAll(iocontext.GetIO(cmd.Context()).In)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", target, err)
	}
	return string(data), nil
}

// ParseStringListFlag parses a comma, whitespace or newline separated value,
// a JSON array, or @path / @- holding either.
func ParseStringListFlag(cmd *cobra.Command, value string) ([]string, error) {
	raw, err := loadAtValue(cmd, value)
	if err != nil {
		return nil, err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("no values provided")
	}

	if strings.HasPrefix(raw, "[") {
		var arr []any
		if err := json.Unmarshal([]byte(raw), &arr); err == nil {
			out := make([]string, 0, len(arr))
			for _, v := range arr {
				switch vv := v.(type) {
				case string:
					if s := strings.TrimSpace(vv); s != "" {
						out = append(out, s)
					}
				case float64:
					i := int(vv)
					if float64(i) != vv {
						return nil, fmt.Errorf("invalid value %v: expected string or integer", vv)
					}
					out = append(out, strconv.Itoa(i))
				default:
					return nil, fmt.Errorf("invalid value %v: expected string or integer", v)
				}
			}
			if len(out) == 0 {
				return nil, fmt.Errorf("no valid values provided")
			}
			return out, nil
		}
	}

	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})
	if len(parts) == 0 {
		return nil, fmt.Errorf("no valid values provided")
	}
	return parts, nil
}

// ParseIntList parses a comma-separated list of positive integers.
func ParseIntList(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	result := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := parsePositiveInt(p, "ID")
		if err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("no valid IDs provided")
	}
	return result, nil
}

// parsePositiveInt accepts "123" and "#123".
func parsePositiveInt(input, label string) (int, error) {
	input = strings.TrimPrefix(strings.TrimSpace(input), "#")
	if input == "" {
		return 0, fmt.Errorf("invalid %s: empty input", label)
	}
	id, err := strconv.Atoi(input)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", label, input)
	}
	if id <= 0 {
		return 0, fmt.Errorf("invalid %s %d: must be a positive integer", label, id)
	}
	return id, nil
}

// buildRequestBody merges a JSON object (inline, @path or @-) with key=value
// string fields and key=<json> raw fields. Fields win over the object.
func buildRequestBody(cmd *cobra.Command, body string, fields, rawFields []string) (api.Params, error) {
	params := api.Params{}

	if strings.TrimSpace(body) != "" {
		raw, err := loadAtValue(cmd, body)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return nil, fmt.Errorf("failed to parse body JSON: %w", err)
		}
	}
	for _, field := range fields {
		key, value, err := parseField(field)
		if err != nil {
			return nil, err
		}
		params[key] = value
	}
	for _, field := range rawFields {
		key, value, err := parseRawField(field)
		if err != nil {
			return nil, err
		}
		params[key] = value
	}

	if len(params) == 0 {
		return nil, nil
	}
	return params, nil
}

// parseField parses key=value with a string value.
func parseField(field string) (string, string, error) {
	key, value, ok := strings.Cut(field, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return "", "", fmt.Errorf("invalid field format %q: must be key=value", field)
	}
	return strings.TrimSpace(key), value, nil
}

// parseRawField parses key=value with a JSON value.
func parseRawField(field string) (string, any, error) {
	key, raw, ok := strings.Cut(field, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return "", nil, fmt.Errorf("invalid raw field format %q: must be key=value", field)
	}
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return "", nil, fmt.Errorf("invalid JSON in raw field %q: %w", key, err)
	}
	return strings.TrimSpace(key), value, nil
}

// sortedKeys returns the keys of m in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func resolveCacheDir() string {
	dir, err := cache.DefaultDir()
	if err != nil {
		return ""
	}
	return dir
}

// errAlreadyHandled marks errors RunE has already printed. Cobra still sees
// an error (for the exit code) but Execute does not print it again.
var errAlreadyHandled = errors.New("error already handled")

type handledError struct {
	err      error
	exitCode int
}

func (e *handledError) Error() string {
	return e.err.Error()
}

func (e *handledError) Unwrap() error {
	return errAlreadyHandled
}

func (e *handledError) ExitCode() int {
	return e.exitCode
}

// RunE wraps a command function with enhanced error handling
func RunE(fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if err != nil {
			if isJSON(cmd) {
				if structured := api.StructuredErrorFromError(err); structured != nil {
					_ = printJSONErr(cmd, structured)
				}
			} else {
				_, _ = fmt.Fprint(cmd.ErrOrStderr(), HandleError(err))
			}
			// The original message stays reachable through Error().
			return &handledError{err: err, exitCode: ExitCode(err)}
		}
		return nil
	}
}
