package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/locforge/locforge/internal/config"
)

const defaultDeepLBaseURL = "https://api-free.deepl.com"

// DeepLProvider calls the DeepL v2 REST API.
type DeepLProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewDeepLProvider creates a DeepL provider. An empty baseURL uses the
// free-tier endpoint.
func NewDeepLProvider(apiKey, baseURL string, timeout time.Duration) *DeepLProvider {
	if baseURL == "" {
		baseURL = defaultDeepLBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DeepLProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name implements Provider.
func (p *DeepLProvider) Name() string { return "deepl" }

// Translate implements Provider.
func (p *DeepLProvider) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	form := url.Values{
		"text":        {text},
		"target_lang": {strings.ToUpper(targetLang)},
	}
	if sourceLang != "" {
		form.Set("source_lang", strings.ToUpper(sourceLang))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v2/translate", strings.NewReader(form.Encode()))
	if err != nil {
		return "", &Error{Provider: p.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "DeepL-Auth-Key "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		// Transport failures are worth another attempt.
		return "", &Error{Provider: p.Name(), Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		err := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		return "", &Error{Provider: p.Name(), Retryable: retryableStatus(resp.StatusCode), Err: err}
	}

	var out struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &Error{Provider: p.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(out.Translations) == 0 {
		return "", &Error{Provider: p.Name(), Err: fmt.Errorf("empty translation result")}
	}
	return out.Translations[0].Text, nil
}

// retryableStatus: rate limits and server errors are transient; auth
// and quota failures are not.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// NewProvider builds the configured provider.
func NewProvider(cfg config.TranslateConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "deepl":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("translate: deepl requires an API key")
		}
		return NewDeepLProvider(cfg.APIKey, cfg.BaseURL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("translate: unknown provider %q", cfg.Provider)
	}
}
