// Package netx holds the small HTTP helpers used by the federation client.
package netx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/exposurekeys/internal/common"
)

// maxErrorBody bounds how much of an unexpected response ends up in errors.
const maxErrorBody = 512

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Status     string
	Body       []byte
}

// Decode unmarshals the body into v, reporting common.ErrMalformedBody on
// failure.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: %v", common.ErrMalformedBody, err)
	}
	return nil
}

// UnexpectedStatus builds the error returned for a status the caller does
// not handle.
func (r *Response) UnexpectedStatus() error {
	body := r.Body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return fmt.Errorf("%w: %s; body: %s", common.ErrUnexpectedStatus, r.Status, string(body))
}

// DoJSON sends a request with an optional JSON body and bearer token and
// reads the whole response.
func DoJSON(ctx context.Context, client *http.Client, method, url, bearer string, in any) (*Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", common.ContentTypeJSON)
	}
	if bearer != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+bearer)
	}

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Status: resp.Status, Body: b}, nil
}
