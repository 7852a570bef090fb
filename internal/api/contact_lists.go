package api

import (
	"context"
	"fmt"
	"net/http"
)

// CreateContactListRequest contains fields for creating a contact list.
type CreateContactListRequest struct {
	KeyID       string   `json:"key_id,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	ExternalIDs []string `json:"external_ids,omitempty"`
}

// ContactListMembers names contacts by key field for Add and Remove.
type ContactListMembers struct {
	KeyID       string   `json:"key_id,omitempty"`
	ExternalIDs []string `json:"external_ids"`
}

// List returns the contact lists of the account.
func (s ContactListsService) List(ctx context.Context, params Params) (*Response, error) {
	return s.send(ctx, http.MethodGet, "contactlist", params)
}

// Create creates a contact list usable as a recipient source.
func (s ContactListsService) Create(ctx context.Context, req CreateContactListRequest) (*Response, error) {
	return createContactList(ctx, s, req)
}

func createContactList(ctx context.Context, r Requester, req CreateContactListRequest) (*Response, error) {
	if req.Name == "" {
		return nil, newClientError("contact list name is required")
	}
	if req.KeyID != "" {
		key, err := r.fields().FieldKey(req.KeyID)
		if err != nil {
			return nil, mappingError(err)
		}
		req.KeyID = key
	}
	return r.send(ctx, http.MethodPost, "contactlist", req)
}

// Delete deletes a contact list. Its contacts are kept.
func (s ContactListsService) Delete(ctx context.Context, listID int) (*Response, error) {
	return s.send(ctx, http.MethodPost, fmt.Sprintf("contactlist/%d/deletelist", listID), nil)
}

// Add adds contacts to a contact list.
func (s ContactListsService) Add(ctx context.Context, listID int, members ContactListMembers) (*Response, error) {
	return sendListMembers(ctx, s, fmt.Sprintf("contactlist/%d/add", listID), members)
}

// Remove removes contacts from a contact list.
func (s ContactListsService) Remove(ctx context.Context, listID int, members ContactListMembers) (*Response, error) {
	return sendListMembers(ctx, s, fmt.Sprintf("contactlist/%d/delete", listID), members)
}

func sendListMembers(ctx context.Context, r Requester, path string, members ContactListMembers) (*Response, error) {
	if len(members.ExternalIDs) == 0 {
		return nil, newClientError("at least one external id is required")
	}
	if members.KeyID != "" {
		key, err := r.fields().FieldKey(members.KeyID)
		if err != nil {
			return nil, mappingError(err)
		}
		members.KeyID = key
	}
	return r.send(ctx, http.MethodPost, path, members)
}

// Contacts returns the contact ids in a list. params may carry limit and offset.
func (s ContactListsService) Contacts(ctx context.Context, listID int, params Params) (*Response, error) {
	return s.send(ctx, http.MethodGet, fmt.Sprintf("contactlist/%d/contacts", listID), params)
}

// Contains checks whether contactID is a member of listID.
func (s ContactListsService) Contains(ctx context.Context, listID, contactID int) (*Response, error) {
	return s.send(ctx, http.MethodGet, fmt.Sprintf("contactlist/%d/contacts/%d", listID, contactID), nil)
}
