// Package filter runs jq expressions over decoded JSON values.
package filter

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/itchyny/gojq"
)

// Option customizes how an expression is compiled.
type Option func(*config)

type config struct {
	vars  map[string]any
	funcs map[string]func(any) any
}

// WithVariables binds $name variables for the expression.
func WithVariables(vars map[string]any) Option {
	return func(c *config) {
		for k, v := range vars {
			c.vars[strings.TrimPrefix(k, "$")] = v
		}
	}
}

// WithFunction registers a one-argument jq function used as `.x | name`.
func WithFunction(name string, fn func(any) any) Option {
	return func(c *config) {
		if fn != nil {
			c.funcs[name] = fn
		}
	}
}

// NormalizeExpression fixes shell-escaped operators in jq expressions.
// Zsh escapes ! to \! even in single quotes, breaking operators like !=.
func NormalizeExpression(expr string) string {
	return strings.ReplaceAll(expr, `\!`, `!`)
}

// Apply applies a jq expression to data. A single result is returned as is,
// several results as a slice.
func Apply(data any, expression string, opts ...Option) (any, error) {
	if expression == "" {
		return data, nil
	}

	cfg := &config{vars: map[string]any{}, funcs: map[string]func(any) any{}}
	for _, opt := range opts {
		opt(cfg)
	}

	expression = NormalizeExpression(expression)
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}
	code, values, err := compile(query, cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}

	results, err := run(code, data, values)
	if err != nil {
		if items, ok := itemsFallback(data, expression, err); ok {
			if retry, retryErr := run(code, items, values); retryErr == nil {
				results, err = retry, nil
			}
		}
	}
	if err != nil {
		return nil, err
	}
	if len(results) == 1 {
		return results[0], nil
	}
	return results, nil
}

func compile(query *gojq.Query, cfg *config) (*gojq.Code, []any, error) {
	names := make([]string, 0, len(cfg.vars))
	for name := range cfg.vars {
		names = append(names, name)
	}
	sort.Strings(names)

	var options []gojq.CompilerOption
	values := make([]any, 0, len(names))
	if len(names) > 0 {
		vars := make([]string, len(names))
		for i, name := range names {
			vars[i] = "$" + name
			values = append(values, cfg.vars[name])
		}
		options = append(options, gojq.WithVariables(vars))
	}
	for name, fn := range cfg.funcs {
		fn := fn
		options = append(options, gojq.WithFunction(name, 0, 0, func(v any, _ []any) any {
			return fn(v)
		}))
	}

	code, err := gojq.Compile(query, options...)
	return code, values, err
}

func run(code *gojq.Code, data any, values []any) ([]any, error) {
	iter := code.Run(data, values...)
	var results []any
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("filter error: %w", err)
		}
		results = append(results, v)
	}
	return results, nil
}

// itemsFallback lets `.[]` style queries run against {"items": [...]}
// wrappers produced for list output.
func itemsFallback(data any, expression string, runErr error) (any, bool) {
	expr := strings.TrimSpace(expression)
	if !strings.HasPrefix(expr, ".[]") && !strings.HasPrefix(expr, "[.[]") && !strings.HasPrefix(expr, "(.[]") {
		return nil, false
	}
	if !strings.Contains(runErr.Error(), "expected an object but got: array") &&
		!strings.Contains(runErr.Error(), "cannot iterate") {
		return nil, false
	}
	m, ok := data.(map[string]any)
	if !ok {
		return nil, false
	}
	items, ok := m["items"].([]any)
	return items, ok
}

// ApplyFromJSON decodes jsonData and applies the expression.
func ApplyFromJSON(jsonData []byte, expression string, opts ...Option) (any, error) {
	var data any
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return Apply(data, expression, opts...)
}

// ApplyToJSON applies the expression to JSON bytes and returns pretty-printed JSON.
func ApplyToJSON(jsonData []byte, expression string, opts ...Option) ([]byte, error) {
	if expression == "" {
		return jsonData, nil
	}
	result, err := ApplyFromJSON(jsonData, expression, opts...)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(result, "", "  ")
}
