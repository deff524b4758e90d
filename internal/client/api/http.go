package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	pkgapi "github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/pkg/api"
)

// HTTPClient is the minimal transport shell satisfying SessionAPI for the
// bundled CLI. The protocol surface beyond the session endpoints lives
// outside the core.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
}

// Compile-time check that HTTPClient implements SessionAPI.
var _ SessionAPI = (*HTTPClient)(nil)

// NewHTTPClient creates a transport client for the given server base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type loginRequest struct {
	Server   string `json:"server"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// Login authenticates and returns the session descriptor.
func (c *HTTPClient) Login(ctx context.Context, server, user, password string) (*pkgapi.LoginResponse, error) {
	var resp pkgapi.LoginResponse
	req := loginRequest{Server: server, User: user, Password: password}
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/session/open", "", req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// ConfirmChallenge reports a locally solved challenge.
func (c *HTTPClient) ConfirmChallenge(ctx context.Context, sessionID string) error {
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/session/unlock", sessionID, nil, nil); err != nil {
		return fmt.Errorf("challenge confirmation failed: %w", err)
	}
	return nil
}

// Logout closes the session on the server.
func (c *HTTPClient) Logout(ctx context.Context, sessionID string) error {
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/session/close", sessionID, nil, nil); err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	return nil
}

func (c *HTTPClient) doRequest(ctx context.Context, method, path, sessionID string, body, result any) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.Header.Set("Authorization", "Bearer "+sessionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, string(respBody))
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrDeauthorized, string(respBody))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		var errResp pkgapi.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
