package network

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the backend on behalf of one agent.
type Client struct {
	BaseURL        string
	HTTP           *http.Client
	RequestTimeout time.Duration
	// Token returns the current bearer token, or "" to send none.
	Token     func() string
	UserAgent string
}

// NewClient returns a Client for baseURL. Per-request deadlines come from
// contexts so that long-polls and short calls can share one transport.
func NewClient(baseURL string, requestTimeout time.Duration) *Client {
	return &Client{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		HTTP:           &http.Client{},
		RequestTimeout: requestTimeout,
		UserAgent:      "patchpilot-agent",
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := JSON.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if c.Token != nil {
		if tok := c.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = JSON.Unmarshal(data, &e)
		return &StatusError{Code: resp.StatusCode, Message: e.Error}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := JSON.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) short(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.RequestTimeout)
}

// Register announces the device and returns the id the server assigned.
func (c *Client) Register(ctx context.Context, report DeviceReport) (DeviceStatus, error) {
	ctx, cancel := c.short(ctx)
	defer cancel()
	var st DeviceStatus
	err := c.do(ctx, http.MethodPost, "/api/register", report, &st)
	return st, err
}

// Heartbeat reports liveness and host facts; the answer carries adoption state.
func (c *Client) Heartbeat(ctx context.Context, report DeviceReport) (DeviceStatus, error) {
	ctx, cancel := c.short(ctx)
	defer cancel()
	var st DeviceStatus
	err := c.do(ctx, http.MethodPost, "/api/devices/heartbeat", report, &st)
	return st, err
}

// UpdateDevice refreshes the server's record of the device.
func (c *Client) UpdateDevice(ctx context.Context, report DeviceReport) (DeviceStatus, error) {
	ctx, cancel := c.short(ctx)
	defer cancel()
	var st DeviceStatus
	err := c.do(ctx, http.MethodPost, "/api/devices/"+url.PathEscape(report.DeviceID), report, &st)
	return st, err
}

// PollCommands long-polls for the device's pending commands. The request is
// abandoned after timeout; callers should treat IsTimeout(err) as "no work".
func (c *Client) PollCommands(ctx context.Context, deviceID string, timeout time.Duration) ([]RemoteCommand, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var cmds []RemoteCommand
	err := c.do(ctx, http.MethodGet, "/api/devices/"+url.PathEscape(deviceID)+"/commands/poll", nil, &cmds)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
		return nil, fmt.Errorf("long-poll: %w", err)
	}
	return cmds, err
}

// PostResult delivers one CommandResult. It makes a single attempt.
func (c *Client) PostResult(ctx context.Context, deviceID string, res CommandResult) error {
	ctx, cancel := c.short(ctx)
	defer cancel()
	path := "/api/devices/" + url.PathEscape(deviceID) + "/commands/" + url.PathEscape(res.ID) + "/result"
	return c.do(ctx, http.MethodPost, path, res, nil)
}
