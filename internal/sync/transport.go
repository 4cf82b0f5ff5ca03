package sync

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

	"liftlog/internal/apperr"
)

// Transport moves sync payloads to and from the remote authority.
type Transport interface {
	Pull(ctx context.Context, req PullRequest) (*PullResponse, error)
	Push(ctx context.Context, req PushRequest) (*PushResponse, error)
}

// HTTPTransport talks to the reference sync server (or any server
// speaking the same JSON protocol) over HTTP with bearer auth.
type HTTPTransport struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

// NewHTTPTransport creates a transport with a 30s request timeout.
func NewHTTPTransport(baseURL, token string) *HTTPTransport {
	return &HTTPTransport{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *HTTPTransport) Pull(ctx context.Context, req PullRequest) (*PullResponse, error) {
	var resp PullResponse
	if err := t.post(ctx, "pull", "/v1/sync/pull", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (t *HTTPTransport) Push(ctx context.Context, req PushRequest) (*PushResponse, error) {
	var resp PushResponse
	if err := t.post(ctx, "push", "/v1/sync/push", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (t *HTTPTransport) post(ctx context.Context, op, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &apperr.SyncError{Op: op, Cause: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &apperr.SyncError{Op: op, Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.Token)
	}
	httpResp, err := t.Client.Do(httpReq)
	if err != nil {
		return &apperr.SyncError{Op: op, Retryable: retryableNetErr(err), Cause: err}
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		cause := fmt.Errorf("remote returned %d: %s", httpResp.StatusCode, bytes.TrimSpace(msg))
		return &apperr.SyncError{
			Op:        op,
			Retryable: retryableStatus(httpResp.StatusCode),
			Cause:     cause,
		}
	}
	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return &apperr.SyncError{Op: op, Cause: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// retryableStatus treats server-side failures and throttling as
// transient; auth rejections and client errors are permanent.
func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

// retryableNetErr treats timeouts and network errors as transient,
// but not context cancellation.
func retryableNetErr(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
