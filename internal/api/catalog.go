package api

import (
	"context"
	"net/http"
)

// Read-only listings that take optional GET parameters.

// List returns the condition rules usable in segments.
func (s ConditionsService) List(ctx context.Context) (*Response, error) {
	return s.send(ctx, http.MethodGet, "condition", nil)
}

// Status returns the status of an export.
func (s ExportsService) Status(ctx context.Context, params Params) (*Response, error) {
	return s.send(ctx, http.MethodGet, "export", params)
}

// List returns the files of the media database.
func (s FilesService) List(ctx context.Context, params Params) (*Response, error) {
	return s.send(ctx, http.MethodGet, "file", params)
}

// Upload uploads a base64-encoded file to the media database.
func (s FilesService) Upload(ctx context.Context, data Params) (*Response, error) {
	if _, ok := data["filename"]; !ok {
		return nil, newClientError("filename is required")
	}
	if _, ok := data["file"]; !ok {
		return nil, newClientError("file content is required")
	}
	return s.send(ctx, http.MethodPost, "file", data)
}

// List returns the contact segments.
func (s SegmentsService) List(ctx context.Context, params Params) (*Response, error) {
	return s.send(ctx, http.MethodGet, "filter", params)
}

// List returns the media database folders.
func (s FoldersService) List(ctx context.Context, params Params) (*Response, error) {
	return s.send(ctx, http.MethodGet, "folder", params)
}

// List returns the forms.
func (s FormsService) List(ctx context.Context, params Params) (*Response, error) {
	return s.send(ctx, http.MethodGet, "form", params)
}

// List returns the languages available for contacts.
func (s LanguagesService) List(ctx context.Context) (*Response, error) {
	return s.send(ctx, http.MethodGet, "language", nil)
}
