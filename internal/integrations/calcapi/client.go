// Package calcapi talks to the remote calculator service. Every request goes
// to one configured base URL and carries the session's bearer token when one
// is held. Calls are fire-once: no retries and no queuing.
package calcapi

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

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"calcweb/internal/domain"
	"calcweb/internal/metrics"
)

const maxResponseBytes = 1 << 20

const (
	endpointLogin      = "/api/v1/auth/login"
	endpointBalance    = "/api/v1/balance"
	endpointOperations = "/api/v1/operations"
	endpointRecords    = "/api/v1/records"
	endpointRecord     = "/api/v1/records/{id}"
)

// TokenSource yields the current bearer token, if any.
type TokenSource interface {
	Token() (string, bool)
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds each request. Zero leaves the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	timeout    time.Duration
	log        logrus.FieldLogger
}

func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c
}

// Do issues one request. path is resolved against the base URL unless it is
// already absolute. body, when non-nil, is sent as JSON; out, when non-nil,
// receives the decoded 2xx body. The returned status is 0 when no response
// arrived.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) (int, error) {
	endpoint := path
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}
	return c.do(ctx, method, endpoint, path, body, out)
}

func (c *Client) do(ctx context.Context, method, endpoint, path string, body, out interface{}) (int, error) {
	target := c.resolve(path)

	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token, ok := c.tokens.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveUpstream(method, endpoint, metrics.OutcomeTransportError, time.Since(start))
		c.log.WithError(err).WithFields(logrus.Fields{"method": method, "endpoint": endpoint}).Warn("calculator service unreachable")
		return 0, &TransportError{Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveUpstream(method, endpoint, metrics.OutcomeTransportError, elapsed)
		return resp.StatusCode, &TransportError{Method: method, URL: target, Err: err}
	}
	c.log.WithFields(logrus.Fields{
		"method":   method,
		"endpoint": endpoint,
		"status":   resp.StatusCode,
		"elapsed":  elapsed.String(),
	}).Debug("calculator service call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ObserveUpstream(method, endpoint, strconv.Itoa(resp.StatusCode), elapsed)
		return resp.StatusCode, &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil {
		metrics.ObserveUpstream(method, endpoint, strconv.Itoa(resp.StatusCode), elapsed)
		return resp.StatusCode, nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		metrics.ObserveUpstream(method, endpoint, metrics.OutcomeShapeError, elapsed)
		return resp.StatusCode, &ShapeError{Endpoint: endpoint, Err: errors.New("empty body")}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		metrics.ObserveUpstream(method, endpoint, metrics.OutcomeShapeError, elapsed)
		return resp.StatusCode, &ShapeError{Endpoint: endpoint, Err: err}
	}
	metrics.ObserveUpstream(method, endpoint, strconv.Itoa(resp.StatusCode), elapsed)
	return resp.StatusCode, nil
}

func (c *Client) resolve(path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// errorMessage extracts the server's explanation from an error body. Bodies
// that are not JSON, or carry no message, yield "".
func errorMessage(raw []byte) string {
	if !gjson.ValidBytes(raw) {
		return ""
	}
	for _, field := range []string{"message", "error"} {
		if v := gjson.GetBytes(raw, field); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

func (c *Client) Login(ctx context.Context, creds domain.Credentials) (domain.LoginResponse, error) {
	var out domain.LoginResponse
	if _, err := c.do(ctx, http.MethodPost, endpointLogin, endpointLogin, creds, &out); err != nil {
		return domain.LoginResponse{}, err
	}
	if out.Token == "" {
		return domain.LoginResponse{}, &ShapeError{Endpoint: endpointLogin, Err: errors.New("token missing")}
	}
	return out, nil
}

func (c *Client) Balance(ctx context.Context) (decimal.Decimal, error) {
	var out struct {
		Balance *decimal.Decimal `json:"balance"`
	}
	if _, err := c.do(ctx, http.MethodGet, endpointBalance, endpointBalance, nil, &out); err != nil {
		return decimal.Zero, err
	}
	if out.Balance == nil {
		return decimal.Zero, &ShapeError{Endpoint: endpointBalance, Err: errors.New("balance missing")}
	}
	return *out.Balance, nil
}

func (c *Client) Calculate(ctx context.Context, req domain.CalculateRequest) (domain.CalculateResponse, error) {
	var out struct {
		Result     domain.Result    `json:"result"`
		NewBalance *decimal.Decimal `json:"newBalance"`
	}
	if _, err := c.do(ctx, http.MethodPost, endpointOperations, endpointOperations, req, &out); err != nil {
		return domain.CalculateResponse{}, err
	}
	if out.NewBalance == nil {
		return domain.CalculateResponse{}, &ShapeError{Endpoint: endpointOperations, Err: errors.New("newBalance missing")}
	}
	return domain.CalculateResponse{Result: out.Result, NewBalance: *out.NewBalance}, nil
}

func (c *Client) Records(ctx context.Context, q domain.RecordsQuery) (domain.RecordsPage, error) {
	values := url.Values{}
	values.Set("page", strconv.Itoa(q.Page))
	values.Set("size", strconv.Itoa(q.Size))
	values.Set("search", q.Search)

	var out domain.RecordsPage
	if _, err := c.do(ctx, http.MethodGet, endpointRecords, endpointRecords+"?"+values.Encode(), nil, &out); err != nil {
		return domain.RecordsPage{}, err
	}
	if out.Content == nil {
		out.Content = []domain.OperationRecord{}
	}
	return out, nil
}

func (c *Client) DeleteRecord(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, endpointRecord, endpointRecords+"/"+url.PathEscape(id), nil, nil)
	return err
}
