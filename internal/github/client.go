package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultAPIBase = "https://api.github.com"

// ErrFileNotFound is returned when the requested path does not exist
// at the requested ref.
var ErrFileNotFound = errors.New("file not found at ref")

// ContentsClient fetches raw file contents from the GitHub contents
// API. Requests are bounded by the HTTP client's timeout.
type ContentsClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewContentsClient creates a contents client. An empty token means
// unauthenticated access (public repositories only).
func NewContentsClient(token string) *ContentsClient {
	return &ContentsClient{
		baseURL:    defaultAPIBase,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewContentsClientWithBase creates a contents client against a
// non-default API base, for GitHub Enterprise or tests.
func NewContentsClientWithBase(baseURL, token string) *ContentsClient {
	c := NewContentsClient(token)
	c.baseURL = baseURL
	return c
}

// FileContents returns the raw bytes of repo's file at path as of ref.
func (c *ContentsClient) FileContents(ctx context.Context, repo, path, ref string) ([]byte, error) {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	u := fmt.Sprintf("%s/repos/%s/contents/%s?ref=%s",
		c.baseURL, repo, strings.Join(segments, "/"), url.QueryEscape(ref))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build contents request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.raw+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s@%s: %w", path, ref, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s@%s: %w", path, ref, ErrFileNotFound)
	default:
		return nil, fmt.Errorf("fetch %s@%s: unexpected status %s", path, ref, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read contents response: %w", err)
	}
	return body, nil
}
