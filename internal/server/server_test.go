package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/locforge/locforge/internal/client"
	"github.com/locforge/locforge/internal/config"
	"github.com/locforge/locforge/internal/github"
	"github.com/locforge/locforge/internal/store"
	"github.com/locforge/locforge/internal/sync"
)

// fakeContents serves file bodies keyed by "path@ref".
type fakeContents map[string][]byte

func (f fakeContents) FileContents(_ context.Context, _, path, ref string) ([]byte, error) {
	if data, ok := f[path+"@"+ref]; ok {
		return data, nil
	}
	return nil, github.ErrFileNotFound
}

func newTestServer(t *testing.T, cfg *config.Config, contents ContentsFetcher) (*httptest.Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "locforge.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if cfg == nil {
		cfg = config.Default()
	}
	srv := httptest.NewServer(New(st, cfg, contents).Handler())
	t.Cleanup(srv.Close)
	return srv, st
}

func testClient(srv *httptest.Server, token string) *client.Client {
	return client.New(srv.URL, token, 5*time.Second).WithActor("tester")
}

func TestPushPullRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	c := testClient(srv, "")
	ctx := context.Background()

	out, err := c.Push(ctx, &sync.ChangeSet{
		ProjectID: "proj", Source: sync.SourceCLI,
		Changes: []sync.EntryChange{
			{Kind: sync.ChangeAdded, Ref: sync.EntryRef{Key: "Welcome", Language: "en"}, Value: "Hello"},
			{Kind: sync.ChangeAdded, Ref: sync.EntryRef{Key: "Welcome", Language: "de"}, Value: "Hallo"},
		},
	})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if out.State() != sync.StateApplied || len(out.Applied) != 2 {
		t.Fatalf("outcome = %+v", out)
	}

	entries, err := c.Entries(ctx, "proj")
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Ref.Language != "de" || entries[0].Value != "Hallo" {
		t.Errorf("entries[0] = %+v", entries[0])
	}

	history, err := c.History(ctx, "proj", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 || history[0].Added != 2 {
		t.Errorf("history = %+v", history)
	}
}

func TestAuthRequired(t *testing.T) {
	cfg := config.Default()
	cfg.Server.APIToken = "secret-token"
	srv, _ := newTestServer(t, cfg, nil)
	ctx := context.Background()

	_, err := testClient(srv, "wrong").Entries(ctx, "proj")
	var apiErr *client.APIError
	if !asAPIError(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("error = %v, want 401", err)
	}

	if _, err := testClient(srv, "secret-token").Entries(ctx, "proj"); err != nil {
		t.Errorf("authorized request failed: %v", err)
	}

	// Health stays open.
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Errorf("healthz = %v, %v", resp, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
}

func TestResolveNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	_, err := testClient(srv, "").Resolve(context.Background(), "proj", 42, sync.ResolutionKeepLocal, "")
	var apiErr *client.APIError
	if !asAPIError(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("error = %v, want 404", err)
	}
}

func TestRevertEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	c := testClient(srv, "")
	ctx := context.Background()

	out, err := c.Push(ctx, &sync.ChangeSet{
		ProjectID: "proj", Source: sync.SourceCLI,
		Changes: []sync.EntryChange{
			{Kind: sync.ChangeAdded, Ref: sync.EntryRef{Key: "k", Language: "en"}, Value: "v"},
		},
	})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	entry, err := c.Revert(ctx, "proj", out.HistoryID)
	if err != nil {
		t.Fatalf("Revert() error = %v", err)
	}
	if entry.RevertedFromID != out.HistoryID {
		t.Errorf("RevertedFromID = %q, want %q", entry.RevertedFromID, out.HistoryID)
	}

	entries, _ := c.Entries(ctx, "proj")
	if len(entries) != 0 {
		t.Errorf("entries after revert = %d, want 0", len(entries))
	}
}

func TestSnapshotEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	c := testClient(srv, "")
	ctx := context.Background()

	if _, err := c.Push(ctx, &sync.ChangeSet{
		ProjectID: "proj", Source: sync.SourceCLI,
		Changes: []sync.EntryChange{
			{Kind: sync.ChangeAdded, Ref: sync.EntryRef{Key: "k", Language: "en"}, Value: "v"},
		},
	}); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	snap, err := c.CreateSnapshot(ctx, "proj", store.SnapshotManual, "checkpoint")
	if err != nil {
		t.Fatalf("CreateSnapshot() error = %v", err)
	}
	if snap.EntryCount != 1 {
		t.Errorf("EntryCount = %d, want 1", snap.EntryCount)
	}

	snaps, err := c.Snapshots(ctx, "proj")
	if err != nil || len(snaps) != 1 {
		t.Fatalf("Snapshots() = %v, %v", snaps, err)
	}

	if _, err := c.RestoreSnapshot(ctx, "proj", snap.ID); err != nil {
		t.Fatalf("RestoreSnapshot() error = %v", err)
	}
	if err := c.DeleteSnapshot(ctx, "proj", snap.ID); err != nil {
		t.Fatalf("DeleteSnapshot() error = %v", err)
	}
	if err := c.DeleteSnapshot(ctx, "proj", snap.ID); err == nil {
		t.Error("second delete should 404")
	}
}

func webhookEvent() string {
	return `{
        "ref": "refs/heads/main",
        "after": "sha-2",
        "repository": {"full_name": "acme/strings"},
        "commits": [{"id": "sha-2", "modified": ["strings.json"]}]
    }`
}

func postWebhook(t *testing.T, srv *httptest.Server, secret, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost,
		srv.URL+"/webhooks/github?project=proj&base=strings", strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set(github.EventHeader, "push")
	if secret != "" {
		req.Header.Set(github.SignatureHeader, github.Sign([]byte(secret), []byte(body)))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("webhook request error = %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestWebhookCleanApply(t *testing.T) {
	cfg := config.Default()
	cfg.GitHub.WebhookSecret = "hook-secret"
	contents := fakeContents{
		"strings.json@sha-2": []byte(`{"Welcome": "Hello"}`),
	}
	srv, _ := newTestServer(t, cfg, contents)

	resp := postWebhook(t, srv, "hook-secret", webhookEvent())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	entries, err := testClient(srv, "").Entries(context.Background(), "proj")
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Value != "Hello" || entries[0].Version != 1 {
		t.Errorf("entries = %+v", entries)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	cfg := config.Default()
	cfg.GitHub.WebhookSecret = "hook-secret"
	srv, _ := newTestServer(t, cfg, fakeContents{})

	resp := postWebhook(t, srv, "wrong-secret", webhookEvent())
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestWebhookIgnoresOtherBranches(t *testing.T) {
	srv, st := newTestServer(t, nil, fakeContents{})
	body := strings.Replace(webhookEvent(), "refs/heads/main", "refs/heads/feature", 1)

	resp := postWebhook(t, srv, "", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	entries, _ := st.ListTranslations(context.Background(), "proj")
	if len(entries) != 0 {
		t.Errorf("entries = %d, want 0 (untracked branch)", len(entries))
	}
}

func TestWebhookConflictPath(t *testing.T) {
	contents := fakeContents{
		"strings.json@sha-2": []byte(`{"Welcome": "Hello"}`),
	}
	srv, st := newTestServer(t, nil, contents)
	c := testClient(srv, "")
	ctx := context.Background()

	// Cloud already holds a different value with no GitHub baseline:
	// no common ancestor, so the webhook must surface a conflict.
	if _, err := c.Push(ctx, &sync.ChangeSet{
		ProjectID: "proj", Source: sync.SourceCLI,
		Changes: []sync.EntryChange{
			{Kind: sync.ChangeAdded, Ref: sync.EntryRef{Key: "Welcome", Language: "en"}, Value: "Hi"},
		},
	}); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	resp := postWebhook(t, srv, "", webhookEvent())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	conflicts, err := c.Conflicts(ctx, "proj")
	if err != nil {
		t.Fatalf("Conflicts() error = %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(conflicts))
	}

	// Resolve over the API; the cloud takes the GitHub value.
	if _, err := c.Resolve(ctx, "proj", conflicts[0].ID, sync.ResolutionKeepRemote, ""); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	entries, _ := st.ListTranslations(ctx, "proj")
	if len(entries) != 1 || entries[0].Value != "Hello" {
		t.Errorf("entries = %+v, want Hello", entries)
	}
}

func asAPIError(err error, target **client.APIError) bool {
	return errors.As(err, target)
}
