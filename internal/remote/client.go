// Package remote implements contracts.DeviceService over HTTP against the
// device server's /jack endpoints.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leandrodaf/midiports/sdk/contracts"
)

// Resource paths served by the device server.
const (
	GetDevicesPath = "/jack/get_midi_devices"
	SetDevicesPath = "/jack/set_midi_devices"
)

// ErrRemoteCall is the only error kind returned by Client. It covers transport
// failures, non-success statuses and malformed responses.
var ErrRemoteCall = errors.New("remote call failed")

// maxBody bounds how much of a response is read.
const maxBody = 1 << 20

// Client talks to the device server.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger contracts.Logger
	now    func() time.Time
}

// NewClient validates baseURL and returns a client using hc for transport.
func NewClient(baseURL string, hc *http.Client, logger contracts.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: u, http: hc, logger: logger, now: time.Now}, nil
}

// GetDevices fetches the current device state.
func (c *Client) GetDevices(ctx context.Context) (contracts.DeviceState, error) {
	var state contracts.DeviceState

	resp, err := c.do(ctx, http.MethodGet, GetDevicesPath, nil)
	if err != nil {
		return state, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&state); err != nil {
		return state, fmt.Errorf("%w: decoding %s: %v", ErrRemoteCall, GetDevicesPath, err)
	}
	if state.DevList == nil {
		return state, fmt.Errorf("%w: %s: response has no devList", ErrRemoteCall, GetDevicesPath)
	}
	if state.Names == nil {
		state.Names = map[string]string{}
	}
	return state, nil
}

// SetDevices posts the selection. The response body is ignored.
func (c *Client) SetDevices(ctx context.Context, sel contracts.Selection) error {
	body, err := json.Marshal(sel)
	if err != nil {
		return fmt.Errorf("%w: encoding selection: %v", ErrRemoteCall, err)
	}

	resp, err := c.do(ctx, http.MethodPost, SetDevicesPath, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	u := *c.base
	u.Path = c.base.Path + path
	// Cache buster, requests must always reach the live server.
	q := u.Query()
	q.Set("_", strconv.FormatInt(c.now().UnixNano(), 10))
	u.RawQuery = q.Encode()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrRemoteCall, err)
	}

	reqID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("X-Request-Id", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("remote call failed",
			c.logger.Field().String("path", path),
			c.logger.Field().String("request_id", reqID),
			c.logger.Field().Error("error", err))
		return nil, fmt.Errorf("%w: %s %s: %v", ErrRemoteCall, method, path, err)
	}

	c.logger.Debug("remote call",
		c.logger.Field().String("method", method),
		c.logger.Field().String("path", path),
		c.logger.Field().String("request_id", reqID),
		c.logger.Field().Int("status", resp.StatusCode),
		c.logger.Field().Int64("elapsed_ms", c.now().Sub(start).Milliseconds()))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s %s: status %d", ErrRemoteCall, method, path, resp.StatusCode)
	}
	return resp, nil
}
