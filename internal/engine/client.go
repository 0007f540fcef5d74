package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/properties"
	"golang.org/x/oauth2/clientcredentials"
)

// Client is the HTTP backend for the production compute service. It
// serializes a description graph to JSON, submits it in one request and
// blocks until the service returns the materialized value.
type Client struct {
	httpClients []*http.Client
	apiURL      string
	retries     int
	retryDelay  time.Duration
	timeout     time.Duration
}

const (
	defaultRetries    = 10
	defaultRetryDelay = 5 * time.Second
	defaultTimeout    = 5 * time.Minute
)

// NewClientFromEnv configures the client from COMPUTE_API_URL,
// COMPUTE_TOKEN_URL, COMPUTE_CLIENT_ID and COMPUTE_CLIENT_SECRET. Several
// credentials can be supplied comma separated; the client rotates to the
// next pair when one is rejected.
func NewClientFromEnv() (*Client, error) {
	apiURL := properties.ComputeAPIURL()
	tokenURL := properties.ComputeTokenURL()
	clientIDs := properties.ComputeClientIDs()
	clientSecrets := properties.ComputeClientSecrets()

	if apiURL == "" || tokenURL == "" || len(clientIDs) == 0 || len(clientSecrets) == 0 {
		return nil, &ConfigError{Op: "client", Reason: "missing required environment variables: COMPUTE_API_URL, COMPUTE_TOKEN_URL, COMPUTE_CLIENT_ID or COMPUTE_CLIENT_SECRET"}
	}
	if len(clientIDs) != len(clientSecrets) {
		return nil, &ConfigError{Op: "client", Reason: "mismatched number of client ids and secrets"}
	}

	httpClients := make([]*http.Client, 0, len(clientIDs))
	for i, clientID := range clientIDs {
		config := &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecrets[i],
			TokenURL:     tokenURL,
		}
		httpClients = append(httpClients, config.Client(context.Background()))
	}

	return &Client{
		httpClients: httpClients,
		apiURL:      apiURL,
		retries:     defaultRetries,
		retryDelay:  defaultRetryDelay,
		timeout:     defaultTimeout,
	}, nil
}

type resolveRequest struct {
	Expression *Expr `json:"expression"`
}

type resolveResponse struct {
	Format string          `json:"format,omitempty"`
	Value  json.RawMessage `json:"value"`
}

// Resolve submits the graph and blocks until the service answers or the
// timeout elapses. Transient failures are retried with a fixed delay;
// authorization rejections rotate to the next credential pair and graph
// rejections fail immediately.
func (c *Client) Resolve(ctx context.Context, expr *Expr) (any, error) {
	body, err := json.Marshal(resolveRequest{Expression: expr})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal computation graph: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error
	for _, httpClient := range c.httpClients {
		for attempt := 1; attempt <= c.retries; attempt++ {
			value, err := c.post(ctx, httpClient, body, expr.Op)
			if err == nil {
				return value, nil
			}
			lastErr = err

			var remote *RemoteError
			if errors.As(err, &remote) && !remote.Retryable {
				if remote.Status == http.StatusForbidden || remote.Status == http.StatusUnauthorized {
					// Try the next credential pair.
					break
				}
				return nil, err
			}
			fmt.Printf("Attempt %d failed: %v\n", attempt, err)

			select {
			case <-ctx.Done():
				return nil, &RemoteError{Op: expr.Op, Retryable: false, Err: ctx.Err()}
			case <-time.After(c.retryDelay):
			}
		}
	}

	return nil, fmt.Errorf("failed to resolve %s after %d attempts: %w", expr.Op, c.retries, lastErr)
}

func (c *Client) post(ctx context.Context, httpClient *http.Client, body []byte, op string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, &RemoteError{Op: op, Retryable: false, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &RemoteError{Op: op, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{Op: op, Status: resp.StatusCode, Retryable: true, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, &RemoteError{
			Op:        op,
			Status:    resp.StatusCode,
			Retryable: retryable,
			Err:       fmt.Errorf("%s", respBody),
		}
	}

	var parsed resolveResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &RemoteError{Op: op, Status: resp.StatusCode, Retryable: false, Err: fmt.Errorf("invalid response body: %v", err)}
	}

	if parsed.Format == "base64" {
		var encoded string
		if err := json.Unmarshal(parsed.Value, &encoded); err != nil {
			return nil, &RemoteError{Op: op, Retryable: false, Err: fmt.Errorf("invalid base64 payload: %v", err)}
		}
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, &RemoteError{Op: op, Retryable: false, Err: fmt.Errorf("invalid base64 payload: %v", err)}
		}
		return raw, nil
	}

	var value any
	if err := json.Unmarshal(parsed.Value, &value); err != nil {
		return nil, &RemoteError{Op: op, Retryable: false, Err: fmt.Errorf("invalid response value: %v", err)}
	}
	return value, nil
}
