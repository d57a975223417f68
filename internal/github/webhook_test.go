package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestVerifySignature(t *testing.T) {
	secret := []byte("s3cret")
	body := []byte(`{"after":"abc"}`)

	if err := VerifySignature(secret, body, Sign(secret, body)); err != nil {
		t.Errorf("valid signature rejected: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"wrong secret", Sign([]byte("other"), body)},
		{"wrong body", Sign(secret, []byte("tampered"))},
		{"missing prefix", "deadbeef"},
		{"not hex", "sha256=zzzz"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := VerifySignature(secret, body, tt.header); err == nil {
				t.Error("expected signature mismatch")
			}
		})
	}
}

func TestParsePushEvent(t *testing.T) {
	body := []byte(`{
        "ref": "refs/heads/main",
        "after": "abc123",
        "repository": {"full_name": "acme/strings"},
        "commits": [
            {"id": "c1", "added": ["strings.json"], "modified": [], "removed": []},
            {"id": "c2", "added": [], "modified": ["strings.de.json"], "removed": ["strings.json"]}
        ]
    }`)
	ev, err := ParsePushEvent(body)
	if err != nil {
		t.Fatalf("ParsePushEvent() error = %v", err)
	}
	if ev.After != "abc123" || ev.Repository.FullName != "acme/strings" {
		t.Errorf("event = %+v", ev)
	}

	changed, removed := ev.ChangedPaths()
	if !reflect.DeepEqual(changed, []string{"strings.de.json"}) {
		t.Errorf("changed = %v, want [strings.de.json]", changed)
	}
	if !reflect.DeepEqual(removed, []string{"strings.json"}) {
		t.Errorf("removed = %v, want [strings.json]", removed)
	}
}

func TestParsePushEventRejectsEmpty(t *testing.T) {
	if _, err := ParsePushEvent([]byte(`{}`)); err == nil {
		t.Error("expected error for event without head commit")
	}
	if _, err := ParsePushEvent([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed body")
	}
}

func TestContentsClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/acme/strings/contents/strings.json" {
			if got := r.URL.Query().Get("ref"); got != "abc123" {
				t.Errorf("ref = %q, want abc123", got)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer tok" {
				t.Errorf("Authorization = %q", got)
			}
			w.Write([]byte(`{"Welcome": "Hello"}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewContentsClientWithBase(srv.URL, "tok")
	body, err := c.FileContents(context.Background(), "acme/strings", "strings.json", "abc123")
	if err != nil {
		t.Fatalf("FileContents() error = %v", err)
	}
	if string(body) != `{"Welcome": "Hello"}` {
		t.Errorf("body = %s", body)
	}

	if _, err := c.FileContents(context.Background(), "acme/strings", "missing.json", "abc123"); err == nil {
		t.Error("expected error for missing file")
	}
}
