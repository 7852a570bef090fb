package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/snowcap/emarsys-cli/internal/mapping"
)

// Params is a free-form request body or GET parameter set.
type Params map[string]any

// Create creates one or more contacts. Field names in data, and in each entry
// of data["contacts"], are translated to field ids.
func (s ContactsService) Create(ctx context.Context, data Params) (*Response, error) {
	return sendMappedContacts(ctx, s, http.MethodPost, "contact", data)
}

// Update updates one or more contacts identified by key_id.
func (s ContactsService) Update(ctx context.Context, data Params) (*Response, error) {
	return sendMappedContacts(ctx, s, http.MethodPut, "contact", data)
}

// Upsert updates contacts and creates the ones that do not exist yet.
func (s ContactsService) Upsert(ctx context.Context, data Params) (*Response, error) {
	return sendMappedContacts(ctx, s, http.MethodPut, "contact/?create_if_not_exists=1", data)
}

func sendMappedContacts(ctx context.Context, r Requester, method, path string, data Params) (*Response, error) {
	mapped, err := r.fields().MapFieldsToIDs(data)
	if err != nil {
		return nil, mappingError(err)
	}
	return r.send(ctx, method, path, mapped)
}

// Delete deletes a contact identified by key_id. The body is sent as given.
func (s ContactsService) Delete(ctx context.Context, data Params) (*Response, error) {
	return s.send(ctx, http.MethodPost, "contact/delete", data)
}

// ID returns the internal id of the contact whose field equals value.
func (s ContactsService) ID(ctx context.Context, field, value string) (int, error) {
	return getContactID(ctx, s, field, value)
}

func getContactID(ctx context.Context, r Requester, field, value string) (int, error) {
	key, err := r.fields().FieldKey(field)
	if err != nil {
		return 0, mappingError(err)
	}
	resp, err := r.send(ctx, http.MethodGet, fmt.Sprintf("contact/%s=%s", key, url.PathEscape(value)), nil)
	if err != nil {
		return 0, err
	}
	return resp.ID()
}

// Changes exports the selected fields of contacts changed in a time range.
func (s ContactsService) Changes(ctx context.Context, data Params) (*Response, error) {
	return s.send(ctx, http.MethodPost, "contact/getchanges", data)
}

// History returns the email sending history of contacts.
func (s ContactsService) History(ctx context.Context, data Params) (*Response, error) {
	return s.send(ctx, http.MethodPost, "contact/getcontacthistory", data)
}

// ContactDataRequest selects contacts and fields for Data. KeyID and Fields
// accept names or ids.
type ContactDataRequest struct {
	KeyID  string
	Values []string
	Fields []string
	// Named re-keys each result from field ids to field names.
	Named bool
}

// Data returns field values of the selected contacts.
func (s ContactsService) Data(ctx context.Context, req ContactDataRequest) (*Response, error) {
	return getContactData(ctx, s, req)
}

func getContactData(ctx context.Context, r Requester, req ContactDataRequest) (*Response, error) {
	store := r.fields()
	keyID, err := store.FieldKey(req.KeyID)
	if err != nil {
		return nil, mappingError(err)
	}
	body := Params{"keyId": keyID, "keyValues": req.Values}
	if len(req.Fields) > 0 {
		ids := make([]string, len(req.Fields))
		for i, f := range req.Fields {
			if ids[i], err = store.FieldKey(f); err != nil {
				return nil, mappingError(err)
			}
		}
		body["fields"] = ids
	}

	resp, err := r.send(ctx, http.MethodPost, "contact/getdata", body)
	if err != nil || !req.Named {
		return resp, err
	}
	return nameContactData(store, resp)
}

func nameContactData(store *mapping.Store, resp *Response) (*Response, error) {
	data, err := resp.DataMap()
	if err != nil {
		return nil, err
	}
	result, ok := data["result"].([]any)
	if !ok {
		return resp, nil
	}
	for i, item := range result {
		if contact, ok := item.(map[string]any); ok {
			result[i] = store.MapIDsToFields(contact)
		}
	}
	data["result"] = result
	return resp.WithData(data)
}

// Registrations returns the form registrations of contacts.
func (s ContactsService) Registrations(ctx context.Context, data Params) (*Response, error) {
	return s.send(ctx, http.MethodPost, "contact/getregistrations", data)
}
