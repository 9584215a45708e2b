// Package deviceapi is the REST client for the controller's configuration,
// setup, sensor and log endpoints.
package deviceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/irrigo/irrigo/internal/protocol"
)

const (
	defaultTimeout = 10 * time.Second
	maxLogPages    = 10_000
	maxBodyBytes   = 1 << 20
)

// ErrRelayRejected is returned when the controller refuses a relay request.
var ErrRelayRejected = errors.New("relay request rejected")

// StatusError is returned for unexpected HTTP status codes.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
	}

	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

// New builds a client for the controller at host:port.
func New(host string, port int, logger *slog.Logger) *Client {
	if port <= 0 {
		port = 80
	}
	if logger == nil {
		logger = slog.Default().With("component", "deviceapi")
	}

	return &Client{
		base:   &url.URL{Scheme: "http", Host: net.JoinHostPort(host, strconv.Itoa(port))},
		http:   &http.Client{Timeout: defaultTimeout},
		logger: logger,
	}
}

// NewWithBaseURL builds a client for an explicit base URL.
func NewWithBaseURL(raw string, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = slog.Default().With("component", "deviceapi")
	}

	return &Client{base: base, http: httpClient, logger: logger}, nil
}

func (c *Client) GetConfig(ctx context.Context) (ControllerConfig, error) {
	var cfg ControllerConfig
	if err := c.getJSON(ctx, "/api/config", &cfg); err != nil {
		return ControllerConfig{}, err
	}

	return cfg, nil
}

func (c *Client) GetDefaultConfig(ctx context.Context) (ControllerConfig, error) {
	var cfg ControllerConfig
	if err := c.getJSON(ctx, "/api/defaultConfig", &cfg); err != nil {
		return ControllerConfig{}, err
	}

	return cfg, nil
}

// SaveConfig validates cfg and posts it wrapped in a "config" field.
func (c *Client) SaveConfig(ctx context.Context, cfg ControllerConfig) error {
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid controller config")
	}
	_, err := c.postJSON(ctx, "/api/config", configEnvelope{Config: cfg})

	return err
}

func (c *Client) GetSetup(ctx context.Context) (Setup, error) {
	var setup Setup
	if err := c.getJSON(ctx, "/api/setup", &setup); err != nil {
		return Setup{}, err
	}

	return setup, nil
}

// SaveSetup posts new hardware wiring. The controller restarts afterwards.
func (c *Client) SaveSetup(ctx context.Context, setup Setup) error {
	if err := setup.Validate(); err != nil {
		return errors.Wrap(err, "invalid setup")
	}
	_, err := c.postJSON(ctx, "/api/setup", setup)

	return err
}

func (c *Client) ResetToDefault(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/resetToDefault", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return expectOK(resp)
}

func (c *Client) GetSensorData(ctx context.Context) (SensorData, error) {
	var data SensorData
	if err := c.getJSON(ctx, "/api/sensorData", &data); err != nil {
		return SensorData{}, err
	}

	return data, nil
}

// SetRelay switches a relay through the REST endpoint.
func (c *Client) SetRelay(ctx context.Context, index int, active bool) (RelayResult, error) {
	raw, err := c.postJSON(ctx, "/api/relay", relayRequest{Relay: index, Active: active})
	var result RelayResult
	if len(raw) > 0 {
		if decodeErr := json.Unmarshal(raw, &result); decodeErr != nil && err == nil {
			return RelayResult{}, errors.Wrap(decodeErr, "decode relay result")
		}
	}
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusBadRequest {
			return result, errors.Wrapf(ErrRelayRejected, "relay %d: %s", index, result.Message)
		}

		return RelayResult{}, err
	}
	if !result.Success {
		return result, errors.Wrapf(ErrRelayRejected, "relay %d: %s", index, result.Message)
	}

	return result, nil
}

// FetchLogs drains the log endpoint. The controller hands out one entry per
// request and answers 204 once it has nothing left.
func (c *Client) FetchLogs(ctx context.Context) ([]protocol.LogEntry, error) {
	out := make([]protocol.LogEntry, 0)
	for page := 0; page < maxLogPages; page++ {
		entries, done, err := c.fetchLogPage(ctx)
		if err != nil {
			return out, err
		}
		out = append(out, entries...)
		if done {
			return out, nil
		}
	}
	c.logger.Warn("log fetch stopped at page limit", "pages", maxLogPages)

	return out, nil
}

// fetchLogPage accepts either a single entry or a {"logs": [...]} batch.
func (c *Client) fetchLogPage(ctx context.Context) ([]protocol.LogEntry, bool, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/logs", nil)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, true, nil
	}
	if err := expectOK(resp); err != nil {
		return nil, false, err
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, false, errors.Wrap(err, "read log page")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, true, nil
	}

	var batch struct {
		Logs *[]protocol.LogEntry `json:"logs"`
	}
	if err := json.Unmarshal(raw, &batch); err == nil && batch.Logs != nil {
		// A batch is the whole buffer.
		return *batch.Logs, true, nil
	}

	var entry protocol.LogEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, errors.Wrap(err, "decode log entry")
	}

	return []protocol.LogEntry{entry}, false, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := expectOK(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(dst); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}

	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s body", path)
	}
	resp, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return raw, &StatusError{Method: http.MethodPost, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if readErr != nil {
		return nil, errors.Wrapf(readErr, "read %s response", path)
	}

	return raw, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	u := c.base.ResolveReference(&url.URL{Path: path})
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, errors.Wrapf(err, "build %s %s", method, path)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("request", "method", method, "path", path)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}

	return resp, nil
}

func expectOK(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	return &StatusError{
		Method: resp.Request.Method,
		Path:   resp.Request.URL.Path,
		Code:   resp.StatusCode,
		Body:   strings.TrimSpace(string(raw)),
	}
}
