// Raw authenticated requests against the Calil API
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/desertthunder/bookx/internal/session"
	"github.com/desertthunder/bookx/internal/shared"
)

// APIService sends requests to Calil carrying the session cookie and, when present, the access token.
//
// Redirects are never followed: Calil answers an unauthenticated request by redirecting to the login page.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a new API service instance for the Calil site.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = "https://calil.jp"
	}
	if client == nil {
		client = http.DefaultClient
	}

	c := *client
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &c,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Err maps a data endpoint status onto the shared sentinels.
//
// A redirect means the session cookie was refused; 401 and 403 mean the access token was.
func (r *APIResponse) Err() error {
	switch code := r.StatusCode; {
	case code >= 200 && code < 300:
		return nil
	case code >= 300 && code < 400:
		return fmt.Errorf("%w: redirected to %s", shared.ErrSessionExpired, r.Headers.Get("Location"))
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", shared.ErrTokenExpired, code)
	case code >= 500:
		return fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, code)
	default:
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, code)
	}
}

// Decode unmarshals the body into v.
func (r *APIResponse) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string, creds session.Credentials) (*APIResponse, error) {
	return a.do(ctx, http.MethodGet, path, nil, creds)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte, creds session.Credentials) (*APIResponse, error) {
	return a.do(ctx, http.MethodPost, path, data, creds)
}

// PostJSON encodes payload and posts it.
func (a *APIService) PostJSON(ctx context.Context, path string, payload any, creds session.Credentials) (*APIResponse, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return a.Post(ctx, path, data, creds)
}

func (a *APIService) do(ctx context.Context, method, path string, data []byte, creds session.Credentials) (*APIResponse, error) {
	fullURL := a.baseURL + path

	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds.Cookie != "" {
		req.Header.Set("Cookie", creds.Cookie)
	}
	if creds.Token != nil {
		creds.Token.SetAuthHeader(req)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       raw,
	}

	var jsonData any
	if err := json.Unmarshal(raw, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}
