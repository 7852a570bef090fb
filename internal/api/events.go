package api

import (
	"context"
	"fmt"
	"net/http"
)

// TriggerRequest fires an external event for one contact or a batch. KeyID
// takes a field name or id.
type TriggerRequest struct {
	KeyID      string
	ExternalID string
	Contacts   []string
	Data       map[string]any
}

// List returns the external events of the account.
func (s EventsService) List(ctx context.Context) (*Response, error) {
	return s.send(ctx, http.MethodGet, "event", nil)
}

// Trigger fires an external event.
func (s EventsService) Trigger(ctx context.Context, eventID int, req TriggerRequest) (*Response, error) {
	return triggerEvent(ctx, s, eventID, req)
}

func triggerEvent(ctx context.Context, r Requester, eventID int, req TriggerRequest) (*Response, error) {
	if req.ExternalID == "" && len(req.Contacts) == 0 {
		return nil, newClientError("an external id or a contact batch is required")
	}
	keyID := req.KeyID
	if keyID == "" {
		keyID = "email"
	}
	key, err := r.fields().FieldKey(keyID)
	if err != nil {
		return nil, mappingError(err)
	}

	body := Params{"key_id": key}
	if req.ExternalID != "" {
		body["external_id"] = req.ExternalID
	}
	if len(req.Contacts) > 0 {
		contacts := make([]map[string]string, len(req.Contacts))
		for i, id := range req.Contacts {
			contacts[i] = map[string]string{"external_id": id}
		}
		body["contacts"] = contacts
	}
	if len(req.Data) > 0 {
		body["data"] = req.Data
	}
	return r.send(ctx, http.MethodPost, fmt.Sprintf("event/%d/trigger", eventID), body)
}
