package cmd

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/snowcap/emarsys-cli/internal/schedule"
)

func TestEmailsList_FilterPath(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/api/v2/contactlist", jsonResponse(200, ok(`[{"id":123,"name":"Newsletter"}]`))).
		On("GET", "/api/v2/email/status=4&contactlist=123", jsonResponse(200, ok(`[
			{"id": 1001, "name": "Welcome", "status": "4", "subject": "Hello there"}
		]`)))
	setupTestEnvWithHandler(t, handler)

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{"emails", "list", "--status", "ready", "--list", "Newsletter"})
		if err != nil {
			t.Fatalf("emails list failed: %v", err)
		}
	})

	for _, want := range []string{"SUBJECT", "Welcome", "ready", "Hello there"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestEmailsList_NoFilter(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/api/v2/email", jsonResponse(200, ok(`[{"id":1,"name":"A","status":3}]`)))
	setupTestEnvWithHandler(t, handler)

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"emails", "list", "-o", "json"}); err != nil {
			t.Fatalf("emails list failed: %v", err)
		}
	})
	items := decodeItems(t, output)
	if len(items) != 1 || items[0]["name"] != "A" {
		t.Errorf("unexpected items: %v", items)
	}
}

func TestEmailsList_InvalidStatus(t *testing.T) {
	handler := newRouteHandler()
	setupTestEnvWithHandler(t, handler)

	var err error
	_ = captureStderr(t, func() {
		err = Execute(context.Background(), []string{"emails", "list", "--status", "sent-ish"})
	})
	if err == nil || !strings.Contains(err.Error(), "invalid --status") {
		t.Fatalf("expected status error, got %v", err)
	}
	if n := len(handler.Requests()); n != 0 {
		t.Errorf("expected no request, got %d", n)
	}
}

func TestEmailsLaunch_Scheduled(t *testing.T) {
	handler := newRouteHandler().
		On("POST", "/api/v2/email/1234/launch", jsonResponse(200, ok(`[]`)))
	setupTestEnvWithHandler(t, handler)

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{
			"emails", "launch", "1234", "--at", "2026-11-02 09:00", "--tz", "Europe/Vienna", "--force",
		})
		if err != nil {
			t.Fatalf("emails launch failed: %v", err)
		}
	})

	body := handler.lastBody(t, "POST", "/api/v2/email/1234/launch")
	if body["schedule"] != "2026-11-02 09:00" || body["timezone"] != "Europe/Vienna" {
		t.Errorf("unexpected body: %v", body)
	}
	if !strings.Contains(output, "Scheduled email 1234: 2026-11-02 09:00") {
		t.Errorf("unexpected output: %q", output)
	}
}

func TestEmailsLaunch_RelativeSchedule(t *testing.T) {
	handler := newRouteHandler().
		On("POST", "/api/v2/email/1234/launch", jsonResponse(200, ok(`[]`)))
	setupTestEnvWithHandler(t, handler)

	before := time.Now().In(time.UTC)
	_ = captureStdout(t, func() {
		err := Execute(context.Background(), []string{"emails", "launch", "1234", "--at", "in 2h", "--tz", "UTC", "--force"})
		if err != nil {
			t.Fatalf("emails launch failed: %v", err)
		}
	})

	body := handler.lastBody(t, "POST", "/api/v2/email/1234/launch")
	at, err := time.ParseInLocation(schedule.Layout, body["schedule"].(string), time.UTC)
	if err != nil {
		t.Fatalf("schedule %v is not in launch format: %v", body["schedule"], err)
	}
	if d := at.Sub(before); d < 119*time.Minute || d > 121*time.Minute {
		t.Errorf("schedule %v is not about two hours out", body["schedule"])
	}
}

func TestEmailsLaunch_PastSchedule(t *testing.T) {
	handler := newRouteHandler()
	setupTestEnvWithHandler(t, handler)

	var err error
	_ = captureStderr(t, func() {
		err = Execute(context.Background(), []string{"emails", "launch", "1234", "--at", "2020-01-01", "--force"})
	})
	if err == nil || !strings.Contains(err.Error(), "is in the past") {
		t.Fatalf("expected past schedule error, got %v", err)
	}
	if code := ExitCode(err); code != exitUsage {
		t.Errorf("exit code = %d, want %d", code, exitUsage)
	}
	if n := len(handler.Requests()); n != 0 {
		t.Errorf("expected no request, got %d", n)
	}
}

func TestEmailsLaunch_TimezoneNeedsSchedule(t *testing.T) {
	setupTestEnvWithHandler(t, newRouteHandler())

	var err error
	_ = captureStderr(t, func() {
		err = Execute(context.Background(), []string{"emails", "launch", "1234", "--timezone", "UTC", "--force"})
	})
	if err == nil || !strings.Contains(err.Error(), "--timezone requires --schedule") {
		t.Fatalf("expected timezone error, got %v", err)
	}
}

func TestEmailsLaunch_InvalidID(t *testing.T) {
	setupTestEnvWithHandler(t, newRouteHandler())

	var err error
	_ = captureStderr(t, func() {
		err = Execute(context.Background(), []string{"emails", "launch", "abc", "--force"})
	})
	if err == nil {
		t.Fatal("expected an error for a non-numeric id")
	}
	if code := ExitCode(err); code != exitUsage {
		t.Errorf("exit code = %d, want %d", code, exitUsage)
	}
}

func TestEmailsPreview_Text(t *testing.T) {
	handler := newRouteHandler().
		On("POST", "/api/v2/email/1234/preview", jsonResponse(200, ok(`"Hello Ada"`)))
	setupTestEnvWithHandler(t, handler)

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"emails", "preview", "1234", "--version", "text"}); err != nil {
			t.Fatalf("emails preview failed: %v", err)
		}
	})

	if body := handler.lastBody(t, "POST", "/api/v2/email/1234/preview"); body["version"] != "text" {
		t.Errorf("version = %v", body["version"])
	}
	if strings.TrimSpace(output) != "Hello Ada" {
		t.Errorf("unexpected output: %q", output)
	}
}

func TestEmailsPreview_InvalidVersion(t *testing.T) {
	handler := newRouteHandler()
	setupTestEnvWithHandler(t, handler)

	var err error
	_ = captureStderr(t, func() {
		err = Execute(context.Background(), []string{"emails", "preview", "1234", "--version", "pdf"})
	})
	if err == nil || !strings.Contains(err.Error(), "html or text") {
		t.Fatalf("expected version error, got %v", err)
	}
	if n := len(handler.Requests()); n != 0 {
		t.Errorf("expected no request, got %d", n)
	}
}

func TestEmailsTest_RecipientList(t *testing.T) {
	handler := newRouteHandler().
		On("POST", "/api/v2/email/1234/sendtestmail", jsonResponse(200, ok(`[]`)))
	setupTestEnvWithHandler(t, handler)

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{"emails", "test", "1234", "--to", "a@example.com,b@example.com"})
		if err != nil {
			t.Fatalf("emails test failed: %v", err)
		}
	})

	body := handler.lastBody(t, "POST", "/api/v2/email/1234/sendtestmail")
	if body["recipientlist"] != "a@example.com;b@example.com" {
		t.Errorf("recipientlist = %v", body["recipientlist"])
	}
	if !strings.Contains(output, "Sent test of email 1234: a@example.com, b@example.com") {
		t.Errorf("unexpected output: %q", output)
	}
}

func TestEmailsTest_InvalidRecipient(t *testing.T) {
	handler := newRouteHandler()
	setupTestEnvWithHandler(t, handler)

	var err error
	_ = captureStderr(t, func() {
		err = Execute(context.Background(), []string{"emails", "test", "1234", "--to", "a@example.com,oops"})
	})
	if err == nil || !strings.Contains(err.Error(), `invalid email "oops"`) {
		t.Fatalf("expected recipient error, got %v", err)
	}
	if code := ExitCode(err); code != exitUsage {
		t.Errorf("exit code = %d, want %d", code, exitUsage)
	}
	if n := len(handler.Requests()); n != 0 {
		t.Errorf("expected no request, got %d", n)
	}
}

func TestEmailsDeliveryStatus_EmailAndLaunchID(t *testing.T) {
	handler := newRouteHandler().
		On("POST", "/api/v2/email/getdeliverystatus", jsonResponse(200, ok(`{"contacts":[]}`)))
	setupTestEnvWithHandler(t, handler)

	_ = captureStdout(t, func() {
		err := Execute(context.Background(), []string{"emails", "delivery-status", "--email-id", "1234", "--launch-id", "55", "--set", "offset=0"})
		if err != nil {
			t.Fatalf("emails delivery-status failed: %v", err)
		}
	})

	body := handler.lastBody(t, "POST", "/api/v2/email/getdeliverystatus")
	if body["emailId"] != float64(1234) || body["launchId"] != float64(55) || body["offset"] != "0" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestEmailsResponses_RejectsLaunchID(t *testing.T) {
	setupTestEnvWithHandler(t, newRouteHandler())

	var err error
	_ = captureStderr(t, func() {
		err = Execute(context.Background(), []string{"emails", "responses", "--launch-id", "55"})
	})
	if err == nil || !strings.Contains(err.Error(), "unknown flag") {
		t.Fatalf("expected unknown flag error, got %v", err)
	}
}

func TestEmailsSummary(t *testing.T) {
	handler := newRouteHandler().
		On("POST", "/api/v2/email/1234/responsesummary", jsonResponse(200, ok(`{"opened":12,"clicked":3}`)))
	setupTestEnvWithHandler(t, handler)

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"emails", "summary", "1234", "-o", "json"}); err != nil {
			t.Fatalf("emails summary failed: %v", err)
		}
	})
	result := decodeJSON(t, output)
	if result["opened"] != float64(12) {
		t.Errorf("unexpected result: %v", result)
	}
}

func TestEmailsUnsubscribe(t *testing.T) {
	handler := newRouteHandler().
		On("POST", "/api/v2/email/unsubscribe", jsonResponse(200, ok(`[]`)))
	setupTestEnvWithHandler(t, handler)

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{
			"emails", "unsubscribe", "--contact-id", "4711", "--email-id", "1234", "--launch-id", "55", "--force",
		})
		if err != nil {
			t.Fatalf("emails unsubscribe failed: %v", err)
		}
	})

	body := handler.lastBody(t, "POST", "/api/v2/email/unsubscribe")
	if body["contact_id"] != float64(4711) || body["email_id"] != float64(1234) || body["launch_list_id"] != float64(55) {
		t.Errorf("unexpected body: %v", body)
	}
	if !strings.Contains(output, "Unsubscribed contact 4711") {
		t.Errorf("unexpected output: %q", output)
	}
}

func TestEmailsCategories(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/api/v2/emailcategory", jsonResponse(200, ok(`[{"id":"1","category":"Newsletters"}]`)))
	setupTestEnvWithHandler(t, handler)

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"emails", "categories"}); err != nil {
			t.Fatalf("emails categories failed: %v", err)
		}
	})
	if !strings.Contains(output, "CATEGORY") || !strings.Contains(output, "Newsletters") {
		t.Errorf("unexpected output: %q", output)
	}
}
