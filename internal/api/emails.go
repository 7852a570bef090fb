package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// List returns emails, optionally filtered by status and contact list. A zero
// status or list id leaves that filter out.
func (s EmailsService) List(ctx context.Context, status EmailStatus, contactListID int) (*Response, error) {
	return s.send(ctx, http.MethodGet, emailListPath(status, contactListID), nil)
}

// emailListPath keeps the filter order status, contactlist.
func emailListPath(status EmailStatus, contactListID int) string {
	var filters []string
	if status != 0 {
		filters = append(filters, fmt.Sprintf("status=%d", int(status)))
	}
	if contactListID != 0 {
		filters = append(filters, fmt.Sprintf("contactlist=%d", contactListID))
	}
	if len(filters) == 0 {
		return "email"
	}
	return "email/" + strings.Join(filters, "&")
}

// Create creates an email campaign.
func (s EmailsService) Create(ctx context.Context, data Params) (*Response, error) {
	return s.send(ctx, http.MethodPost, "email", data)
}

// Get returns the attributes of an email with its personalized sources.
func (s EmailsService) Get(ctx context.Context, emailID int, params Params) (*Response, error) {
	return s.send(ctx, http.MethodGet, fmt.Sprintf("email/%d", emailID), params)
}

// LaunchRequest schedules a launch. An empty ScheduleAt launches immediately.
type LaunchRequest struct {
	ScheduleAt string `json:"schedule,omitempty"`
	TimeZone   string `json:"timezone,omitempty"`
}

// Launch launches an email asynchronously.
func (s EmailsService) Launch(ctx context.Context, emailID int, req LaunchRequest) (*Response, error) {
	return s.send(ctx, http.MethodPost, fmt.Sprintf("email/%d/launch", emailID), req)
}

// PreviewRequest selects the rendered version of Preview: "html" or "text".
type PreviewRequest struct {
	Version string `json:"version"`
}

// Preview returns the HTML or text version of an email.
func (s EmailsService) Preview(ctx context.Context, emailID int, req PreviewRequest) (*Response, error) {
	if req.Version == "" {
		req.Version = "html"
	}
	if req.Version != "html" && req.Version != "text" {
		return nil, newClientError("invalid preview version %q: must be html or text", req.Version)
	}
	return s.send(ctx, http.MethodPost, fmt.Sprintf("email/%d/preview", emailID), req)
}

// ResponseSummary returns the open, click and bounce summary of an email.
func (s EmailsService) ResponseSummary(ctx context.Context, emailID int, data Params) (*Response, error) {
	return s.send(ctx, http.MethodPost, fmt.Sprintf("email/%d/responsesummary", emailID), data)
}

// SendTestRequest lists test recipients for SendTest.
type SendTestRequest struct {
	Recipients []string
}

// SendTest sends a test mail of an email.
func (s EmailsService) SendTest(ctx context.Context, emailID int, req SendTestRequest) (*Response, error) {
	if len(req.Recipients) == 0 {
		return nil, newClientError("at least one test recipient is required")
	}
	return s.send(ctx, http.MethodPost, fmt.Sprintf("email/%d/sendtestmail", emailID), Params{
		"recipientlist": strings.Join(req.Recipients, ";"),
	})
}

// URL returns the online version URL of an email.
func (s EmailsService) URL(ctx context.Context, emailID int, data Params) (*Response, error) {
	return s.send(ctx, http.MethodPost, fmt.Sprintf("email/%d/url", emailID), data)
}

// DeliveryStatus returns the delivery status of a launched email.
func (s EmailsService) DeliveryStatus(ctx context.Context, data Params) (*Response, error) {
	return s.send(ctx, http.MethodPost, "email/getdeliverystatus", data)
}

// Launches lists the launches of an email.
func (s EmailsService) Launches(ctx context.Context, data Params) (*Response, error) {
	return s.send(ctx, http.MethodPost, "email/getlaunchesofemail", data)
}

// Responses starts a query for contacts who responded to emails.
func (s EmailsService) Responses(ctx context.Context, data Params) (*Response, error) {
	return s.send(ctx, http.MethodPost, "email/getresponses", data)
}

// Unsubscribe unsubscribes a contact from an email launch.
func (s EmailsService) Unsubscribe(ctx context.Context, data Params) (*Response, error) {
	return s.send(ctx, http.MethodPost, "email/unsubscribe", data)
}

// Categories returns the email categories.
func (s EmailsService) Categories(ctx context.Context, params Params) (*Response, error) {
	return s.send(ctx, http.MethodGet, "emailcategory", params)
}
