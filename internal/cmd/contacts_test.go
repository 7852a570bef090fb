package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestContactsCreate_MapsFieldNames(t *testing.T) {
	handler := newRouteHandler().
		On("POST", "/api/v2/contact", jsonResponse(200, ok(`{"ids":[4711]}`)))
	setupTestEnvWithHandler(t, handler)

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{
			"contacts", "create",
			"--key-id", "email",
			"--set", "email=ada@example.com",
			"--set", "firstName=Ada",
			"--choice", "gender=female",
		})
		if err != nil {
			t.Fatalf("contacts create failed: %v", err)
		}
	})

	body := handler.lastBody(t, "POST", "/api/v2/contact")
	if body["key_id"] != "3" {
		t.Errorf("key_id = %v, want \"3\"", body["key_id"])
	}
	if body["3"] != "ada@example.com" {
		t.Errorf("field 3 = %v", body["3"])
	}
	if body["1"] != "Ada" {
		t.Errorf("field 1 = %v", body["1"])
	}
	if body["5"] != float64(2) {
		t.Errorf("gender choice = %v, want 2", body["5"])
	}
	if _, ok := body["email"]; ok {
		t.Errorf("field names must not reach the API: %v", body)
	}
	if !strings.Contains(output, "Created contacts 4711") {
		t.Errorf("unexpected output: %q", output)
	}
}

func TestContactsCreate_SignsRequest(t *testing.T) {
	handler := newRouteHandler().
		On("POST", "/api/v2/contact", jsonResponse(200, ok(`{"ids":[1]}`)))
	setupTestEnvWithHandler(t, handler)

	_ = captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"contacts", "create", "--set", "email=a@example.com"}); err != nil {
			t.Fatalf("contacts create failed: %v", err)
		}
	})

	reqs := handler.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	wsse := reqs[0].Header.Get("X-WSSE")
	if !strings.HasPrefix(wsse, `UsernameToken Username="test_user"`) {
		t.Errorf("X-WSSE header = %q", wsse)
	}
	for _, part := range []string{"PasswordDigest=", "Nonce=", "Created="} {
		if !strings.Contains(wsse, part) {
			t.Errorf("X-WSSE header missing %s: %q", part, wsse)
		}
	}
	if ct := reqs[0].Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestContactsCreate_DataFromFile(t *testing.T) {
	handler := newRouteHandler().
		On("POST", "/api/v2/contact", jsonResponse(200, ok(`{"ids":[1,2]}`)))
	setupTestEnvWithHandler(t, handler)

	path := filepath.Join(t.TempDir(), "contacts.json")
	payload := `{"key_id":"email","contacts":[{"email":"a@example.com","lastName":"A"},{"email":"b@example.com"}]}`
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatal(err)
	}

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"contacts", "create", "--data", "@" + path}); err != nil {
			t.Fatalf("contacts create failed: %v", err)
		}
	})

	body := handler.lastBody(t, "POST", "/api/v2/contact")
	if body["key_id"] != "3" {
		t.Errorf("key_id = %v, want \"3\"", body["key_id"])
	}
	contacts, _ := body["contacts"].([]any)
	if len(contacts) != 2 {
		t.Fatalf("contacts = %v", body["contacts"])
	}
	first, _ := contacts[0].(map[string]any)
	if first["3"] != "a@example.com" || first["2"] != "A" {
		t.Errorf("first contact not mapped: %v", first)
	}
	if !strings.Contains(output, "Created contacts 1,2") {
		t.Errorf("unexpected output: %q", output)
	}
}

func TestContactsCreate_UnknownFieldFailsBeforeRequest(t *testing.T) {
	handler := newRouteHandler()
	setupTestEnvWithHandler(t, handler)

	var err error
	stderr := captureStderr(t, func() {
		err = Execute(context.Background(), []string{"contacts", "create", "--set", "favouriteColour=blue"})
	})
	if err == nil {
		t.Fatal("expected an error for an unmapped field")
	}
	if ExitCode(err) != exitUsage {
		t.Errorf("exit code = %d, want %d", ExitCode(err), exitUsage)
	}
	if !strings.Contains(stderr, "favouriteColour") {
		t.Errorf("stderr should name the field: %q", stderr)
	}
	if n := len(handler.Requests()); n != 0 {
		t.Errorf("expected no request, got %d", n)
	}
}

func TestContactsCreate_RequiresData(t *testing.T) {
	setupTestEnvWithHandler(t, newRouteHandler())

	var err error
	_ = captureStderr(t, func() {
		err = Execute(context.Background(), []string{"contacts", "create"})
	})
	if err == nil || !strings.Contains(err.Error(), "no contact data") {
		t.Fatalf("expected missing data error, got %v", err)
	}
}

func TestContactsUpsert_Path(t *testing.T) {
	handler := newRouteHandler().
		On("PUT", "/api/v2/contact/", jsonResponse(200, ok(`{"ids":[9]}`)))
	setupTestEnvWithHandler(t, handler)

	_ = captureStdout(t, func() {
		err := Execute(context.Background(), []string{"contacts", "upsert", "--key-id", "email", "--set", "email=a@example.com"})
		if err != nil {
			t.Fatalf("contacts upsert failed: %v", err)
		}
	})

	reqs := handler.Requests()
	if len(reqs) != 1 || reqs[0].Method != "PUT" {
		t.Fatalf("unexpected requests: %+v", reqs)
	}
}

func TestContactsUpdate_DryRun(t *testing.T) {
	handler := newRouteHandler()
	setupTestEnvWithHandler(t, handler)

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{
			"contacts", "update", "--dry-run", "-o", "json",
			"--key-id", "email", "--set", "email=a@example.com", "--set", "lastName=Lovelace",
		})
		if err != nil {
			t.Fatalf("dry run failed: %v", err)
		}
	})

	if n := len(handler.Requests()); n != 0 {
		t.Fatalf("dry run sent %d requests", n)
	}
	preview := decodeJSON(t, output)
	if preview["dry_run"] != true || preview["method"] != "PUT" {
		t.Errorf("unexpected preview: %v", preview)
	}
	if url, _ := preview["url"].(string); !strings.HasSuffix(url, "/api/v2/contact") {
		t.Errorf("url = %v", preview["url"])
	}
	body, _ := preview["body"].(map[string]any)
	if body["2"] != "Lovelace" || body["key_id"] != "3" {
		t.Errorf("preview body not mapped: %v", body)
	}
}

func TestContactsDelete_RequiresForceForJSON(t *testing.T) {
	handler := newRouteHandler()
	setupTestEnvWithHandler(t, handler)

	var err error
	_ = captureStderr(t, func() {
		err = Execute(context.Background(), []string{"contacts", "delete", "--key-id", "email", "--value", "a@example.com", "-o", "json"})
	})
	if err == nil || !strings.Contains(err.Error(), "--force") {
		t.Fatalf("expected --force error, got %v", err)
	}
	if n := len(handler.Requests()); n != 0 {
		t.Errorf("expected no request, got %d", n)
	}
}

func TestContactsDelete_Force(t *testing.T) {
	handler := newRouteHandler().
		On("POST", "/api/v2/contact/delete", jsonResponse(200, ok(`{"deleted_contacts":1}`)))
	setupTestEnvWithHandler(t, handler)

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{"contacts", "delete", "--key-id", "email", "--value", "a@example.com", "--force"})
		if err != nil {
			t.Fatalf("contacts delete failed: %v", err)
		}
	})

	body := handler.lastBody(t, "POST", "/api/v2/contact/delete")
	if body["key_id"] != "3" || body["3"] != "a@example.com" {
		t.Errorf("unexpected body: %v", body)
	}
	if !strings.Contains(output, "Deleted contact a@example.com") {
		t.Errorf("unexpected output: %q", output)
	}
}

func TestContactsDelete_DeclinedPrompt(t *testing.T) {
	handler := newRouteHandler()
	setupTestEnvWithHandler(t, handler)

	withStdin(t, "n\n", func() {
		stderr := captureStderr(t, func() {
			err := Execute(context.Background(), []string{"contacts", "delete", "--key-id", "email", "--value", "a@example.com"})
			if err != nil {
				t.Fatalf("declined delete should not fail: %v", err)
			}
		})
		if !strings.Contains(stderr, "Cancelled.") {
			t.Errorf("expected cancel message, got %q", stderr)
		}
	})
	if n := len(handler.Requests()); n != 0 {
		t.Errorf("expected no request, got %d", n)
	}
}

func TestContactsID(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/api/v2/contact/3=ada@example.com", jsonResponse(200, ok(`{"id":"4711"}`)))
	setupTestEnvWithHandler(t, handler)

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"contacts", "id", "ada@example.com"}); err != nil {
			t.Fatalf("contacts id failed: %v", err)
		}
	})
	if strings.TrimSpace(output) != "4711" {
		t.Errorf("output = %q, want 4711", output)
	}
}

func TestContactsID_NotFound(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/api/v2/contact/3=nobody@example.com", jsonResponse(400, `{"replyCode":2008,"replyText":"No contact found with the external id: 3","data":""}`))
	setupTestEnvWithHandler(t, handler)

	var err error
	stderr := captureStderr(t, func() {
		err = Execute(context.Background(), []string{"contacts", "id", "nobody@example.com"})
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if code := ExitCode(err); code != exitNotFound {
		t.Errorf("exit code = %d, want %d", code, exitNotFound)
	}
	if !strings.Contains(stderr, "No contact matches the key value") {
		t.Errorf("missing suggestion in stderr: %q", stderr)
	}
}

func TestContactsIDs_Bulk(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/api/v2/contact/3=a@example.com", jsonResponse(200, ok(`{"id":1}`))).
		On("GET", "/api/v2/contact/3=b@example.com", jsonResponse(200, ok(`{"id":2}`)))
	setupTestEnvWithHandler(t, handler)

	var err error
	output := captureStdout(t, func() {
		_ = captureStderr(t, func() {
			err = Execute(context.Background(), []string{
				"contacts", "ids", "--values", "a@example.com,b@example.com,c@example.com", "-o", "json",
			})
		})
	})
	if err == nil {
		t.Fatal("expected an error for the unknown contact")
	}

	summary := decodeJSON(t, output)
	if summary["succeeded"] != float64(2) || summary["failed"] != float64(1) {
		t.Errorf("unexpected summary: %v", summary)
	}
	results, _ := summary["results"].([]any)
	if len(results) != 3 {
		t.Fatalf("results = %v", summary["results"])
	}
	first, _ := results[0].(map[string]any)
	if first["key"] != "a@example.com" || first["data"] != float64(1) {
		t.Errorf("results are not in input order: %v", results)
	}
	last, _ := results[2].(map[string]any)
	if last["success"] != false || last["error"] == "" {
		t.Errorf("third lookup should fail: %v", last)
	}
}

func TestContactsData_Named(t *testing.T) {
	handler := newRouteHandler().
		On("POST", "/api/v2/contact/getdata", jsonResponse(200, ok(`{
			"errors": [],
			"result": [{"id":"4711","1":"Ada","3":"ada@example.com"}]
		}`)))
	setupTestEnvWithHandler(t, handler)

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{"contacts", "data", "--values", "ada@example.com", "--fields", "firstName,email"})
		if err != nil {
			t.Fatalf("contacts data failed: %v", err)
		}
	})

	body := handler.lastBody(t, "POST", "/api/v2/contact/getdata")
	if body["keyId"] != "3" {
		t.Errorf("keyId = %v", body["keyId"])
	}
	fields, _ := body["fields"].([]any)
	if len(fields) != 2 || fields[0] != "1" || fields[1] != "3" {
		t.Errorf("fields = %v", body["fields"])
	}
	for _, want := range []string{"firstName: Ada", "email: ada@example.com"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q: %s", want, output)
		}
	}
}

func TestContactsHistory_RequiresBody(t *testing.T) {
	setupTestEnvWithHandler(t, newRouteHandler())

	var err error
	_ = captureStderr(t, func() {
		err = Execute(context.Background(), []string{"contacts", "history"})
	})
	if err == nil || !strings.Contains(err.Error(), "request body required") {
		t.Fatalf("expected body error, got %v", err)
	}
}

func TestContactsHistory(t *testing.T) {
	handler := newRouteHandler().
		On("POST", "/api/v2/contact/getcontacthistory", jsonResponse(200, ok(`[{"contactId":123,"emailId":7}]`)))
	setupTestEnvWithHandler(t, handler)

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{"contacts", "history", "--set-json", "contacts=[123]", "-o", "json"})
		if err != nil {
			t.Fatalf("contacts history failed: %v", err)
		}
	})

	body := handler.lastBody(t, "POST", "/api/v2/contact/getcontacthistory")
	if ids, _ := body["contacts"].([]any); len(ids) != 1 || ids[0] != float64(123) {
		t.Errorf("contacts = %v", body["contacts"])
	}
	items := decodeItems(t, output)
	if len(items) != 1 || items[0]["emailId"] != float64(7) {
		t.Errorf("unexpected items: %v", items)
	}
}
