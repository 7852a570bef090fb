// Package dryrun previews write requests without sending them.
package dryrun

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

type contextKey struct{}

// WithDryRun returns a context with dry-run mode enabled/disabled.
func WithDryRun(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, contextKey{}, enabled)
}

// IsEnabled returns true if dry-run mode is enabled.
func IsEnabled(ctx context.Context) bool {
	if v, ok := ctx.Value(contextKey{}).(bool); ok {
		return v
	}
	return false
}

// Preview describes a request that would have been sent. The signature
// header is never part of a preview.
type Preview struct {
	Operation string
	Resource  string
	Method    string
	URL       string
	Body      json.RawMessage
	Details   map[string]any
	Warnings  []string
}

// Payload is the JSON form of the preview.
func (p *Preview) Payload() map[string]any {
	out := map[string]any{
		"dry_run":   true,
		"operation": p.Operation,
		"resource":  p.Resource,
	}
	if p.Method != "" {
		out["method"] = p.Method
		out["url"] = p.URL
	}
	if len(p.Body) > 0 {
		out["body"] = p.Body
	}
	if len(p.Details) > 0 {
		out["details"] = p.Details
	}
	if len(p.Warnings) > 0 {
		out["warnings"] = p.Warnings
	}
	return out
}

// Write outputs the preview to the writer
func (p *Preview) Write(w io.Writer) {
	_, _ = fmt.Fprintf(w, "[DRY-RUN] Would %s %s\n", p.Operation, p.Resource)
	if p.Method != "" {
		_, _ = fmt.Fprintf(w, "  %s %s\n", p.Method, p.URL)
	}
	if len(p.Body) > 0 && !bytes.Equal(p.Body, []byte("{}")) {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, p.Body, "  ", "  "); err == nil {
			_, _ = fmt.Fprintf(w, "  %s\n", pretty.String())
		} else {
			_, _ = fmt.Fprintf(w, "  %s\n", p.Body)
		}
	}

	keys := make([]string, 0, len(p.Details))
	for k := range p.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "  %s: %v\n", k, p.Details[k])
	}

	for _, warning := range p.Warnings {
		_, _ = fmt.Fprintf(w, "  ! %s\n", warning)
	}
	_, _ = fmt.Fprintln(w, "No request sent (dry-run mode)")
}
