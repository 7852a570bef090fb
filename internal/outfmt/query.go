package outfmt

import (
	"context"
	"encoding/json"
	"io"

	"github.com/snowcap/emarsys-cli/internal/filter"
)

type (
	queryKey        struct{}
	filterOptionKey struct{}
)

// WithQuery adds a jq query to the context
func WithQuery(ctx context.Context, query string) context.Context {
	return context.WithValue(ctx, queryKey{}, query)
}

// GetQuery retrieves the jq query from context
func GetQuery(ctx context.Context) string {
	if q, ok := ctx.Value(queryKey{}).(string); ok {
		return q
	}
	return ""
}

// WithFilterOptions attaches jq variables and functions to the context.
func WithFilterOptions(ctx context.Context, opts ...filter.Option) context.Context {
	existing := FilterOptions(ctx)
	merged := make([]filter.Option, 0, len(existing)+len(opts))
	merged = append(merged, existing...)
	merged = append(merged, opts...)
	return context.WithValue(ctx, filterOptionKey{}, merged)
}

// FilterOptions returns the jq options stored in the context.
func FilterOptions(ctx context.Context) []filter.Option {
	if opts, ok := ctx.Value(filterOptionKey{}).([]filter.Option); ok {
		return opts
	}
	return nil
}

// ApplyQuery wraps lists, then applies query to the JSON form of v.
func ApplyQuery(v any, query string, opts ...filter.Option) (any, error) {
	v = wrapList(v)
	if query == "" {
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return filter.ApplyFromJSON(data, query, opts...)
}

// Render writes v according to the mode, query, template and compact
// settings in ctx.
func Render(ctx context.Context, w io.Writer, v any) error {
	query := GetQuery(ctx)
	tmpl := GetTemplate(ctx)

	if ModeFromContext(ctx) == JSONL {
		return renderLines(ctx, w, v, query, tmpl)
	}

	result, err := ApplyQuery(v, query, FilterOptions(ctx)...)
	if err != nil {
		return err
	}
	if tmpl != "" {
		generic, err := toGeneric(result)
		if err != nil {
			return err
		}
		return WriteTemplate(w, generic, tmpl)
	}
	return WriteJSON(w, result, IsCompact(ctx))
}

// toGeneric converts v to maps and slices keyed by JSON names, so templates
// address fields the way jq does.
func toGeneric(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// renderLines emits one compact document per list element. The query runs
// on each element separately.
func renderLines(ctx context.Context, w io.Writer, v any, query, tmpl string) error {
	for _, item := range splitList(v) {
		result := item
		if query != "" {
			data, err := json.Marshal(item)
			if err != nil {
				return err
			}
			result, err = filter.ApplyFromJSON(data, query, FilterOptions(ctx)...)
			if err != nil {
				return err
			}
		}
		if tmpl != "" {
			generic, err := toGeneric(result)
			if err != nil {
				return err
			}
			if err := WriteTemplate(w, generic, tmpl); err != nil {
				return err
			}
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
			continue
		}
		if err := WriteJSON(w, result, true); err != nil {
			return err
		}
	}
	return nil
}
