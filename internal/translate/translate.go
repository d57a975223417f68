// Package translate fills missing translations through a machine
// translation provider. Placeholders in source values are shielded
// from the provider so format verbs survive the round trip.
package translate

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Provider translates a single text between two language codes.
type Provider interface {
	// Name identifies the provider in logs and errors.
	Name() string
	// Translate returns text translated from sourceLang to targetLang.
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Error is a provider failure. Retryable errors (rate limits, server
// hiccups) are retried by the Translator; the rest abort immediately.
type Error struct {
	Provider  string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a provider error worth retrying.
func IsRetryable(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Retryable
}

// Translator drives a provider with bounded retries.
type Translator struct {
	provider   Provider
	maxRetries int
	sleep      func(time.Duration) // test seam
}

// NewTranslator wraps a provider. maxRetries bounds the extra attempts
// made after a retryable failure; values below zero mean no retries.
func NewTranslator(provider Provider, maxRetries int) *Translator {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Translator{provider: provider, maxRetries: maxRetries, sleep: time.Sleep}
}

// Translate translates one value, protecting placeholders and
// retrying retryable provider failures with linear backoff.
func (t *Translator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	protected, placeholders := protectPlaceholders(text)

	var lastErr error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			default:
			}
			t.sleep(time.Duration(attempt) * time.Second)
		}
		out, err := t.provider.Translate(ctx, protected, sourceLang, targetLang)
		if err == nil {
			return restorePlaceholders(strings.TrimSpace(out), placeholders), nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("translation failed after %d attempts: %w", t.maxRetries+1, lastErr)
}

// placeholderRe matches the substrings a provider must not touch:
// printf verbs (%s, %1$d), brace parameters ({name}, {{count}}), and
// URLs.
var placeholderRe = regexp.MustCompile(`(%(?:\d+\$)?[#+\- 0]*\d*(?:\.\d+)?[a-zA-Z]|\{\{?[A-Za-z0-9_.]+\}?\}|https?://[^\s]+)`)

func protectPlaceholders(text string) (string, map[string]string) {
	placeholders := make(map[string]string)
	protected := text
	for i, match := range placeholderRe.FindAllString(text, -1) {
		token := fmt.Sprintf("LFX%dX", i)
		placeholders[token] = match
		protected = strings.Replace(protected, match, token, 1)
	}
	return protected, placeholders
}

func restorePlaceholders(text string, placeholders map[string]string) string {
	for token, original := range placeholders {
		text = strings.ReplaceAll(text, token, original)
	}
	return text
}
