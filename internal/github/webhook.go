package github

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// SignatureHeader carries the HMAC-SHA256 signature of a webhook
// delivery body.
const SignatureHeader = "X-Hub-Signature-256"

// EventHeader names the delivered event type.
const EventHeader = "X-GitHub-Event"

// ErrBadSignature is returned when a webhook signature does not match.
var ErrBadSignature = errors.New("webhook signature mismatch")

// VerifySignature checks the HMAC-SHA256 signature of a webhook body
// against the shared secret. The comparison is constant-time.
func VerifySignature(secret, body []byte, header string) error {
	const prefix = "sha256="
	if !strings.HasPrefix(header, prefix) {
		return ErrBadSignature
	}
	want, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return ErrBadSignature
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), want) {
		return ErrBadSignature
	}
	return nil
}

// Sign computes the signature header value for a body. Used by tests
// and by the simulated-delivery path.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// PushEvent is the subset of a GitHub push event the reconciler needs.
type PushEvent struct {
	Ref        string `json:"ref"`
	After      string `json:"after"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Commits []PushCommit `json:"commits"`
}

// PushCommit is one commit of a push event.
type PushCommit struct {
	ID       string   `json:"id"`
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Removed  []string `json:"removed"`
}

// ParsePushEvent decodes a push event delivery body.
func ParsePushEvent(body []byte) (*PushEvent, error) {
	var ev PushEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode push event: %w", err)
	}
	if ev.After == "" {
		return nil, errors.New("push event has no head commit")
	}
	return &ev, nil
}

// ChangedPaths folds the event's commits into the set of paths that
// exist at the head commit and the set removed by it. A path touched
// by several commits takes its final disposition.
func (e *PushEvent) ChangedPaths() (changed, removed []string) {
	final := make(map[string]bool)
	for _, c := range e.Commits {
		for _, p := range c.Added {
			final[p] = true
		}
		for _, p := range c.Modified {
			final[p] = true
		}
		for _, p := range c.Removed {
			final[p] = false
		}
	}
	for p, exists := range final {
		if exists {
			changed = append(changed, p)
		} else {
			removed = append(removed, p)
		}
	}
	sort.Strings(changed)
	sort.Strings(removed)
	return changed, removed
}
