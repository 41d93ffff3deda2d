package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// APIError is a non-2xx answer from the session API.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Body)
}

// HTTPClient makes session API calls to the emulator.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient targets baseURL, e.g. "http://127.0.0.1:8080".
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateSession requests a session. The server drops features the device
// does not advertise.
func (c *HTTPClient) CreateSession(ctx context.Context, mode string, features []string) (*Session, error) {
	body := struct {
		Mode     string   `json:"mode"`
		Features []string `json:"features,omitempty"`
	}{mode, features}
	var out Session
	if err := c.do(ctx, http.MethodPost, "/api/sessions", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) EndSession(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, "/api/sessions/"+strconv.Itoa(id), nil, nil)
}

// Device fetches the current device snapshot.
func (c *HTTPClient) Device(ctx context.Context) (*SnapshotPayload, error) {
	var out SnapshotPayload
	if err := c.do(ctx, http.MethodGet, "/api/device", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
