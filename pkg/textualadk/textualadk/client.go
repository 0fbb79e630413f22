package textualadk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/benoit-pereira-da-silva/textualadk/pkg/textualadk/textualshared"
)

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 4096

// Part is one part of an ADK message.
type Part struct {
	Text string `json:"text,omitempty"`
}

// Content is an ADK message.
type Content struct {
	Role  textualshared.Role `json:"role"`
	Parts []Part             `json:"parts"`
}

// RunRequest is the body of POST /run_sse.
type RunRequest struct {
	AppName    string  `json:"appName"`
	UserID     string  `json:"userId"`
	SessionID  string  `json:"sessionId"`
	NewMessage Content `json:"newMessage"`
	Streaming  bool    `json:"streaming"`
}

// NewRunRequest builds a streaming request carrying a single user text part.
func NewRunRequest(appName, userID, sessionID, text string) RunRequest {
	return RunRequest{
		AppName:   appName,
		UserID:    userID,
		SessionID: sessionID,
		NewMessage: Content{
			Role:  textualshared.RoleUser,
			Parts: []Part{{Text: text}},
		},
		Streaming: true,
	}
}

// Client talks to an ADK api server.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient returns a Client. A nil httpClient uses a client without a
// global timeout: streaming requests are bounded by their context instead.
func NewClient(config Config, httpClient *http.Client) Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 0}
	}
	return Client{config: config, httpClient: httpClient}
}

// Config returns the client configuration.
func (c Client) Config() Config {
	return c.config
}

// CreateSession registers (userID, sessionID) with the app.
func (c Client) CreateSession(ctx context.Context, userID, sessionID string) error {
	if err := c.config.validate(); err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/apps/%s/users/%s/sessions/%s",
		c.config.baseURL,
		url.PathEscape(c.config.appName),
		url.PathEscape(userID),
		url.PathEscape(sessionID))

	resp, err := c.post(ctx, endpoint, map[string]any{"state": nil}, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return nil
}

// RunSSE opens the event stream for r. Callers must close resp.Body.
func (c Client) RunSSE(ctx context.Context, r RunRequest) (*http.Response, error) {
	if err := c.config.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(r.UserID) == "" || strings.TrimSpace(r.SessionID) == "" {
		return nil, fmt.Errorf("textualadk: run request without user or session id")
	}
	return c.post(ctx, c.config.baseURL+"/run_sse", r, "text/event-stream")
}

func (c Client) post(ctx context.Context, endpoint string, body any, accept string) (*http.Response, error) {
	bodyBytes, err := sonic.ConfigStd.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("textualadk: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("textualadk: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("textualadk: http request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		msg := strings.TrimSpace(string(b))
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("%w: http %d: %s", ErrHTTPStatus, resp.StatusCode, msg)
	}
	return resp, nil
}
