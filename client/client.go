package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/totegamma/memorial"
)

const (
	defaultTimeout  = 30 * time.Second
	currentUserTTL  = time.Minute
	maxResponseSize = 8 << 20
	defaultAgent    = "memorial-client/1.0"
)

// Client talks to the memorial record store over HTTP. It satisfies
// records.Gateway, records.ObjectStore and records.Session.
type Client struct {
	client    *http.Client
	cache     *cache.Cache
	userAgent string
	endpoint  *url.URL

	mu    sync.RWMutex
	token string
}

func New(endpoint, token string) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %v", endpoint, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q: scheme and host are required", endpoint)
	}

	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:    &httpClient,
		cache:     cache.New(currentUserTTL, 5*time.Minute),
		userAgent: defaultAgent,
		endpoint:  base,
		token:     token,
	}
	httpClient.Transport = c
	return c, nil
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	if req.URL.Host == c.endpoint.Host {
		if token := c.Token(); token != "" && req.Header.Get("Authorization") == "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return http.DefaultTransport.RoundTrip(req)
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) url(path string, query url.Values) string {
	u := *c.endpoint
	u.Path = c.endpoint.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path, nil), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// send performs req and returns the raw body of a 2xx response. Other
// statuses become a *StatusError.
func (c *Client) send(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError(req.Method, req.URL.Path, resp.StatusCode, body)
	}
	return body, nil
}

// unwrap accepts either a {success, data} envelope or the bare payload.
func unwrap(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed, nil
	}

	var envelope struct {
		Success *bool           `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %v", err)
	}
	if envelope.Success == nil {
		return trimmed, nil
	}
	if !*envelope.Success {
		return nil, fmt.Errorf("request failed: %s", envelope.Error)
	}
	return envelope.Data, nil
}

func decodeInto(body []byte, result any) error {
	data, err := unwrap(body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}
	return nil
}

func (c *Client) List(ctx context.Context, collection string) ([]json.RawMessage, error) {
	req, err := c.newJSONRequest(ctx, http.MethodGet, "/api/"+collection, nil)
	if err != nil {
		return nil, err
	}
	body, err := c.send(req)
	if err != nil {
		return nil, err
	}

	data, err := unwrap(body)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s list: %v", collection, err)
	}
	return items, nil
}

func (c *Client) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	req, err := c.newJSONRequest(ctx, http.MethodGet, "/api/"+collection+"/"+id, nil)
	if err != nil {
		return nil, err
	}
	body, err := c.send(req)
	if err != nil {
		return nil, err
	}
	return unwrap(body)
}

func (c *Client) Create(ctx context.Context, collection string, draft any, idempotencyKey string) (json.RawMessage, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/api/"+collection, draft)
	if err != nil {
		return nil, err
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	body, err := c.send(req)
	if err != nil {
		return nil, err
	}
	return unwrap(body)
}

func (c *Client) Delete(ctx context.Context, collection string, id string) error {
	req, err := c.newJSONRequest(ctx, http.MethodDelete, "/api/"+collection+"/"+id, nil)
	if err != nil {
		return err
	}
	_, err = c.send(req)
	return err
}

// Resolve exchanges a durable media key for a signed URL valid for expiry.
func (c *Client) Resolve(ctx context.Context, key string, expiry time.Duration) (string, error) {
	query := url.Values{}
	query.Set("key", key)
	if expiry > 0 {
		query.Set("exp", strconv.FormatInt(int64(expiry/time.Second), 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/media/url", query), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %v", err)
	}
	body, err := c.send(req)
	if err != nil {
		return "", err
	}

	var signed memorial.SignedURL
	if err := decodeInto(body, &signed); err != nil {
		return "", err
	}
	if signed.URL == "" {
		return "", fmt.Errorf("empty signed url for %s", key)
	}

	ref, err := url.Parse(signed.URL)
	if err != nil {
		return "", fmt.Errorf("invalid signed url: %v", err)
	}
	return c.endpoint.ResolveReference(ref).String(), nil
}
