package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/snowcap/emarsys-cli/internal/resolve"
)

// Field is one entry of the field catalog.
type Field struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	ApplicationType string `json:"application_type"`
	StringID        string `json:"string_id,omitempty"`
}

// Choice is one option of a single- or multi-choice field.
type Choice struct {
	ID     string `json:"id"`
	Choice string `json:"choice"`
	Bit    int    `json:"bit_position,omitempty"`
}

// List returns the field catalog.
func (s FieldsService) List(ctx context.Context) (*Response, error) {
	return s.send(ctx, http.MethodGet, "field", nil)
}

// Catalog returns the decoded field catalog.
func (s FieldsService) Catalog(ctx context.Context) ([]Field, error) {
	resp, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var fields []Field
	if err := resp.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// Choices returns the choices of a field given by name or id.
func (s FieldsService) Choices(ctx context.Context, field string) (*Response, error) {
	return getFieldChoices(ctx, s, field)
}

func getFieldChoices(ctx context.Context, r Requester, field string) (*Response, error) {
	id, err := r.fields().FieldID(field)
	if err != nil {
		return nil, mappingError(err)
	}
	return r.send(ctx, http.MethodGet, fmt.Sprintf("field/%d/choice", id), nil)
}

// Create creates a custom field of the given type.
func (s FieldsService) Create(ctx context.Context, name string, fieldType FieldType) (*Response, error) {
	return createField(ctx, s, name, fieldType)
}

func createField(ctx context.Context, r Requester, name string, fieldType FieldType) (*Response, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newClientError("field name is required")
	}
	if !fieldType.Valid() {
		allowed := make([]string, 0, len(FieldTypes()))
		for _, t := range FieldTypes() {
			allowed = append(allowed, string(t))
		}
		return nil, NewValidationError("field type", string(fieldType), allowed)
	}
	return r.send(ctx, http.MethodPost, "field", Params{"name": name, "application_type": string(fieldType)})
}

// NamedFields converts a field catalog for fuzzy name resolution.
func NamedFields(fields []Field) []resolve.Named {
	out := make([]resolve.Named, len(fields))
	for i, f := range fields {
		out[i] = resolve.Named{ID: f.ID, Name: f.Name}
	}
	return out
}
