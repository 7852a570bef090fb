package cmd

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

const listsReply = `[
	{"id": 101, "name": "Newsletter", "created": "2026-01-05 10:00:00"},
	{"id": 102, "name": "VIP customers", "created": "2026-02-11 09:30:00"}
]`

func TestListsList(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/api/v2/contactlist", jsonResponse(200, ok(listsReply)))
	setupTestEnvWithHandler(t, handler)

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"lists", "list"}); err != nil {
			t.Fatalf("lists list failed: %v", err)
		}
	})

	for _, want := range []string{"ID", "NAME", "CREATED", "Newsletter", "VIP customers", "102"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestListsList_JSONWithQuery(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/api/v2/contactlist", jsonResponse(200, ok(listsReply)))
	setupTestEnvWithHandler(t, handler)

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"lists", "list", "--jq", ".items[].name"}); err != nil {
			t.Fatalf("lists list failed: %v", err)
		}
	})

	var names []string
	if err := json.Unmarshal([]byte(output), &names); err != nil {
		t.Fatalf("jq output is not a list of names: %v\n%s", err, output)
	}
	if len(names) != 2 || names[0] != "Newsletter" || names[1] != "VIP customers" {
		t.Errorf("unexpected jq output: %v", names)
	}
}

func TestListsList_Empty(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/api/v2/contactlist", jsonResponse(200, ok(`[]`)))
	setupTestEnvWithHandler(t, handler)

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"lists", "list"}); err != nil {
			t.Fatalf("lists list failed: %v", err)
		}
	})
	if !strings.Contains(output, "No results found") {
		t.Errorf("unexpected output: %q", output)
	}
}

func TestListsCreate(t *testing.T) {
	handler := newRouteHandler().
		On("POST", "/api/v2/contactlist", jsonResponse(200, ok(`{"id":103,"inserted_contacts":2,"errors":[]}`)))
	setupTestEnvWithHandler(t, handler)

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{
			"lists", "create", "Spring sale",
			"--desc", "Campaign audience",
			"--key-id", "email",
			"--external-ids", "a@example.com,b@example.com",
		})
		if err != nil {
			t.Fatalf("lists create failed: %v", err)
		}
	})

	body := handler.lastBody(t, "POST", "/api/v2/contactlist")
	if body["name"] != "Spring sale" || body["description"] != "Campaign audience" {
		t.Errorf("unexpected body: %v", body)
	}
	if body["key_id"] != "3" {
		t.Errorf("key_id = %v, want \"3\"", body["key_id"])
	}
	if ids, _ := body["external_ids"].([]any); len(ids) != 2 {
		t.Errorf("external_ids = %v", body["external_ids"])
	}
	if !strings.Contains(output, "Created contact list 103: Spring sale") {
		t.Errorf("unexpected output: %q", output)
	}
}

func TestListsAdd_ResolvesName(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/api/v2/contactlist", jsonResponse(200, ok(listsReply))).
		On("POST", "/api/v2/contactlist/102/add", jsonResponse(200, ok(`{"inserted_contacts":2,"errors":[]}`)))
	setupTestEnvWithHandler(t, handler)

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{"lists", "add", "vip", "--ids", "a@example.com b@example.com"})
		if err != nil {
			t.Fatalf("lists add failed: %v", err)
		}
	})

	body := handler.lastBody(t, "POST", "/api/v2/contactlist/102/add")
	if body["key_id"] != "3" {
		t.Errorf("key_id = %v", body["key_id"])
	}
	if ids, _ := body["external_ids"].([]any); len(ids) != 2 || ids[1] != "b@example.com" {
		t.Errorf("external_ids = %v", body["external_ids"])
	}
	if !strings.Contains(output, "Added 2 contacts, list 102") {
		t.Errorf("unexpected output: %q", output)
	}
}

func TestListsAdd_UnknownList(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/api/v2/contactlist", jsonResponse(200, ok(listsReply)))
	setupTestEnvWithHandler(t, handler)

	var err error
	_ = captureStderr(t, func() {
		err = Execute(context.Background(), []string{"lists", "add", "zzzz", "--external-ids", "a@example.com"})
	})
	if err == nil {
		t.Fatal("expected an error for an unknown list")
	}
	if code := ExitCode(err); code != exitNotFound {
		t.Errorf("exit code = %d, want %d", code, exitNotFound)
	}
}

func TestListsRemove_Path(t *testing.T) {
	handler := newRouteHandler().
		On("POST", "/api/v2/contactlist/101/delete", jsonResponse(200, ok(`{"deleted_contacts":1,"errors":[]}`)))
	setupTestEnvWithHandler(t, handler)

	_ = captureStdout(t, func() {
		err := Execute(context.Background(), []string{"lists", "remove", "101", "--external-ids", `["a@example.com"]`})
		if err != nil {
			t.Fatalf("lists remove failed: %v", err)
		}
	})
	if n := len(handler.Requests()); n != 1 {
		t.Errorf("expected 1 request, got %d", n)
	}
}

func TestListsDelete_DryRun(t *testing.T) {
	handler := newRouteHandler()
	setupTestEnvWithHandler(t, handler)

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"lists", "delete", "101", "--dry-run"}); err != nil {
			t.Fatalf("dry run failed: %v", err)
		}
	})

	if !strings.Contains(output, "[DRY-RUN] Would delete contact list") {
		t.Errorf("unexpected output: %q", output)
	}
	if !strings.Contains(output, "POST ") || !strings.Contains(output, "contactlist/101/deletelist") {
		t.Errorf("preview should show the request: %q", output)
	}
	if n := len(handler.Requests()); n != 0 {
		t.Errorf("dry run sent %d requests", n)
	}
}

func TestListsDelete_Yes(t *testing.T) {
	handler := newRouteHandler().
		On("POST", "/api/v2/contactlist/101/deletelist", jsonResponse(200, ok(`true`)))
	setupTestEnvWithHandler(t, handler)

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"lists", "delete", "101", "--yes"}); err != nil {
			t.Fatalf("lists delete failed: %v", err)
		}
	})
	if !strings.Contains(output, "Deleted contact list 101") {
		t.Errorf("unexpected output: %q", output)
	}
}

func TestListsContacts(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/api/v2/contactlist/101/contacts/limit=2", jsonResponse(200, ok(`["4711","4712"]`)))
	setupTestEnvWithHandler(t, handler)

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"lists", "contacts", "101", "--limit", "2"}); err != nil {
			t.Fatalf("lists contacts failed: %v", err)
		}
	})
	if strings.TrimSpace(output) != "4711\n4712" {
		t.Errorf("unexpected output: %q", output)
	}
}

func TestListsCheck(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/api/v2/contactlist/101/contacts/4711", jsonResponse(200, ok(`true`)))
	setupTestEnvWithHandler(t, handler)

	output := captureStdout(t, func() {
		if err := Execute(context.Background(), []string{"lists", "check", "101", "4711", "-o", "json"}); err != nil {
			t.Fatalf("lists check failed: %v", err)
		}
	})

	result := decodeJSON(t, output)
	if result["member"] != true || result["list_id"] != float64(101) || result["contact_id"] != float64(4711) {
		t.Errorf("unexpected result: %v", result)
	}
}
