package api

import (
	"context"

	"github.com/snowcap/emarsys-cli/internal/mapping"
)

// Requester is the surface resource helpers depend on: one dispatch call and
// the field mapping used to translate contact payloads. Tests can satisfy it
// with a recorder instead of a live client.
type Requester interface {
	// send dispatches method on a path relative to the API root.
	send(ctx context.Context, method, path string, body any) (*Response, error)

	// fields returns the mapping store of the client.
	fields() *mapping.Store
}
