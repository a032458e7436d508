package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/japaniel/entipedia/pkg/logging"
	"github.com/sirupsen/logrus"
)

const (
	DefaultAPIURL  = "https://api.rosette.com/rest/v1/"
	DefaultTimeout = 60 * time.Second

	keyHeader   = "X-RosetteAPI-Key"
	maxBodySize = 20 * 1024 * 1024
)

// APIError is a non-200 answer from the service.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" && e.Message == "" {
		return fmt.Sprintf("extract: service returned %d", e.Status)
	}
	return fmt.Sprintf("extract: service returned %d: %s: %s", e.Status, e.Code, e.Message)
}

// Client calls the remote analytics service over HTTP.
type Client struct {
	BaseURL    string
	UserKey    string
	HTTPClient *http.Client
	// Timeout bounds each call.
	Timeout time.Duration
	Logger  logrus.FieldLogger
}

// NewClient returns a client for the service at baseURL. An empty baseURL
// selects DefaultAPIURL.
func NewClient(baseURL, userKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	return &Client{
		BaseURL:    baseURL,
		UserKey:    userKey,
		HTTPClient: &http.Client{},
		Timeout:    DefaultTimeout,
	}
}

// Handlers returns a handler for every endpoint, each backed by Call.
func (c *Client) Handlers() map[Endpoint]Handler {
	hs := make(map[Endpoint]Handler, len(endpointPaths))
	for e := range endpointPaths {
		e := e
		hs[e] = func(ctx context.Context, req Request) (json.RawMessage, error) {
			return c.Call(ctx, e, req)
		}
	}
	return hs
}

// Call posts req to endpoint e and returns the raw JSON answer.
func (c *Client) Call(ctx context.Context, e Endpoint, req Request) (json.RawMessage, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimSuffix(c.BaseURL, "/") + "/" + e.String()
	if req.Verbose {
		endpoint += "?output=rosette"
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set(keyHeader, c.UserKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c.logger().WithFields(logrus.Fields{"endpoint": e.String(), "verbose": req.Verbose}).Debug("extraction request")
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", e, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("extract %s: read response: %w", e, err)
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(body, apiErr)
		return nil, apiErr
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("extract %s: response is not JSON", e)
	}
	return json.RawMessage(body), nil
}

func (c *Client) logger() logrus.FieldLogger {
	if c.Logger != nil {
		return c.Logger
	}
	return logging.Discard()
}
