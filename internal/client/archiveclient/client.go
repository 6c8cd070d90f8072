// Package archiveclient implements the scan repository over the server's archive endpoints.
package archiveclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	domain "github.com/bryanwahyu/resolve-ai/internal/domain/scans"
	"github.com/bryanwahyu/resolve-ai/internal/middleware"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path, device string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, eris.Wrap(err, "encode body")
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return nil, eris.Wrapf(err, "build %s %s", method, path)
	}
	req.Header.Set(middleware.DeviceHeader, device)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "%s %s", method, path)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&e)
		return nil, eris.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, e.Error)
	}
	return resp, nil
}

func (c *Client) Insert(ctx context.Context, s *domain.StoredScan) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/scans", s.DeviceID, s)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) ListByDevice(ctx context.Context, deviceID string) ([]*domain.StoredScan, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/scans", deviceID, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out []*domain.StoredScan
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "decode scans")
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, deviceID string, id domain.ScanID) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/scans/"+url.PathEscape(string(id)), deviceID, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
