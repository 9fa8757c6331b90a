package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error: %s %s: %d %s, Response: %s",
		e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

func isUnauthorized(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}

func (c *APIClient) get(ctx context.Context, path string) ([]byte, error) {
	return c.send(ctx, http.MethodGet, path, nil)
}

func (c *APIClient) post(ctx context.Context, path string, data any) ([]byte, error) {
	return c.send(ctx, http.MethodPost, path, data)
}

func (c *APIClient) patch(ctx context.Context, path string, data any) ([]byte, error) {
	return c.send(ctx, http.MethodPatch, path, data)
}

func (c *APIClient) delete(ctx context.Context, path string) ([]byte, error) {
	return c.send(ctx, http.MethodDelete, path, nil)
}

// send performs the request and, on a 401, refreshes the token pair once and
// replays it.
func (c *APIClient) send(ctx context.Context, method, path string, data any) ([]byte, error) {
	var payload []byte
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		payload = b
	}

	body, err := c.doRequest(ctx, method, path, payload)
	if err != nil && isUnauthorized(err) && c.tokenPair().RefreshToken != "" {
		if rerr := c.refreshTokens(ctx); rerr != nil {
			c.log.Warn().Err(rerr).Str("path", path).Msg("token refresh failed")
			return nil, err
		}
		return c.doRequest(ctx, method, path, payload)
	}
	return body, err
}

func (c *APIClient) doRequest(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// decodeList unmarshals a list response that may be a bare array or wrapped
// under one of keys.
func decodeList[T any](body []byte, keys ...string) ([]T, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}
	if body[0] == '[' {
		var items []T
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, err
	}
	for _, k := range keys {
		raw, ok := wrapper[k]
		if !ok {
			continue
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '{' {
			// {"data": {"notifications": [...]}}
			return decodeList[T](raw, keys...)
		}
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decoding %q: %w", k, err)
		}
		return items, nil
	}
	return nil, fmt.Errorf("unexpected list response: %s", truncate(body, 200))
}

// decodeObject unmarshals an object response that may be wrapped under one
// of keys.
func decodeObject[T any](body []byte, keys ...string) (T, error) {
	var zero T
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return zero, err
	}
	for _, k := range keys {
		if raw, ok := wrapper[k]; ok && len(bytes.TrimSpace(raw)) > 0 && bytes.TrimSpace(raw)[0] == '{' {
			var v T
			if err := json.Unmarshal(raw, &v); err != nil {
				return zero, fmt.Errorf("decoding %q: %w", k, err)
			}
			return v, nil
		}
	}
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return zero, err
	}
	return v, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
