package api

import (
	"context"
	"fmt"
	"net/http"
)

// List returns the contact sources of the account.
func (s SourcesService) List(ctx context.Context) (*Response, error) {
	return s.send(ctx, http.MethodGet, "source", nil)
}

// Create creates a contact source with the given name.
func (s SourcesService) Create(ctx context.Context, name string) (*Response, error) {
	if name == "" {
		return nil, newClientError("source name is required")
	}
	return s.send(ctx, http.MethodPost, "source/create", Params{"name": name})
}

// Delete deletes a contact source.
func (s SourcesService) Delete(ctx context.Context, sourceID int) (*Response, error) {
	return s.send(ctx, http.MethodDelete, fmt.Sprintf("source/%d/delete", sourceID), nil)
}
