package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	maxResponseBytes = 1 << 20
	tracerName       = "github.com/xiaoshenming/bilibili-Api-front/backend"
)

// HTTPClient matches the subset of http.Client used by Client.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Client issues authenticated requests against the download assistant backend and decodes its
// {code, message, data} envelope exactly once.
type Client struct {
	base   *url.URL
	client HTTPClient
	logger *zap.Logger
	tracer trace.Tracer
}

// Option customises a Client.
type Option func(*Client)

// WithLogger attaches a structured logger used for request diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracer overrides the tracer used to open client spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// NewClient constructs a Client rooted at baseURL.
func NewClient(baseURL string, client HTTPClient, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("backend: base URL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("backend: parse base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("backend: base URL must be absolute: %q", baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	c := &Client{
		base:   parsed,
		client: client,
		logger: zap.NewNop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Call describes one backend request.
type Call struct {
	// Op names the operation for logs and spans, e.g. "accounts.list".
	Op     string
	Method string
	Path   string
	Query  url.Values
	Token  string
	Body   any
}

// Result is the decoded envelope. Data holds the raw "data" member.
type Result struct {
	Status  int
	Code    int
	Message string
	Data    json.RawMessage
}

// OK reports whether the envelope carries a success code.
func (r Result) OK() bool {
	return r.Code == http.StatusOK || r.Code == http.StatusCreated
}

// Decode unmarshals the data member into out. Missing or null data leaves out untouched.
func (r Result) Decode(out any) error {
	if out == nil || len(r.Data) == 0 || string(r.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(r.Data, out); err != nil {
		return fmt.Errorf("backend: decode data: %w", err)
	}
	return nil
}

// Do performs call and decodes the data member of a successful envelope into out.
func (c *Client) Do(ctx context.Context, call Call, out any) (Result, error) {
	method := call.Method
	if method == "" {
		method = http.MethodGet
	}
	op := call.Op
	if op == "" {
		op = strings.ToLower(method) + " " + call.Path
	}

	ctx, span := c.tracer.Start(ctx, "backend "+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("backend.operation", op),
		),
	)
	defer span.End()

	start := time.Now()
	res, err := c.do(ctx, method, op, call)
	if err == nil {
		err = res.Decode(out)
	}

	fields := []zap.Field{
		zap.String("op", op),
		zap.String("method", method),
		zap.Int("status", res.Status),
		zap.Int("code", res.Code),
		zap.Duration("latency", time.Since(start)),
	}
	if err != nil {
		kind := KindOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		span.SetAttributes(attribute.String("backend.error_kind", string(kind)))
		c.logger.Debug("backend call failed", append(fields, zap.String("kind", string(kind)), zap.Error(err))...)
		return res, err
	}
	span.SetAttributes(attribute.Int("backend.code", res.Code))
	c.logger.Debug("backend call", fields...)
	return res, nil
}

func (c *Client) do(ctx context.Context, method, op string, call Call) (Result, error) {
	req, err := c.newRequest(ctx, method, call)
	if err != nil {
		return Result{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{Status: resp.StatusCode}, &NetworkError{Op: op, Err: err}
	}
	return decodeEnvelope(resp.StatusCode, body)
}

func (c *Client) newRequest(ctx context.Context, method string, call Call) (*http.Request, error) {
	var body io.Reader
	if call.Body != nil {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(call.Body); err != nil {
			return nil, fmt.Errorf("backend: encode payload: %w", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(call.Path, call.Query), body)
	if err != nil {
		return nil, fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token := strings.TrimSpace(call.Token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) resolve(endpoint string, query url.Values) string {
	var target *url.URL
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return endpoint
		}
		target = parsed
	} else {
		ref, err := url.Parse(strings.TrimPrefix(endpoint, "/"))
		if err != nil {
			ref = &url.URL{Path: strings.TrimPrefix(endpoint, "/")}
		}
		base := *c.base
		if !strings.HasSuffix(base.Path, "/") {
			base.Path += "/"
		}
		target = base.ResolveReference(ref)
	}
	if len(query) > 0 {
		merged := target.Query()
		for key, values := range query {
			for _, v := range values {
				merged.Add(key, v)
			}
		}
		target.RawQuery = merged.Encode()
	}
	return target.String()
}

func decodeEnvelope(status int, body []byte) (Result, error) {
	res := Result{Status: status, Code: status}
	trimmed := bytes.TrimSpace(body)

	if len(trimmed) == 0 || !gjson.ValidBytes(trimmed) {
		res.Message = http.StatusText(status)
		if len(trimmed) > 0 && status >= http.StatusBadRequest {
			res.Message = truncate(string(trimmed), 200)
		}
		switch {
		case status == http.StatusUnauthorized:
			return res, ErrUnauthenticated
		case status >= http.StatusBadRequest:
			return res, &APIError{Status: status, Code: status, Message: res.Message}
		case len(trimmed) == 0:
			return res, nil
		default:
			return res, fmt.Errorf("backend: malformed envelope (status %d)", status)
		}
	}

	parsed := gjson.ParseBytes(trimmed)
	if code := parsed.Get("code"); code.Exists() {
		res.Code = int(code.Int())
	} else if success := parsed.Get("success"); success.Exists() {
		if success.Bool() {
			res.Code = http.StatusOK
		} else if status < http.StatusBadRequest {
			res.Code = http.StatusBadRequest
		}
	}
	res.Message = parsed.Get("message").String()
	if data := parsed.Get("data"); data.Exists() {
		res.Data = json.RawMessage(data.Raw)
	}

	if status == http.StatusUnauthorized || res.Code == http.StatusUnauthorized {
		if strings.TrimSpace(res.Message) != "" {
			return res, fmt.Errorf("%w: %s", ErrUnauthenticated, res.Message)
		}
		return res, ErrUnauthenticated
	}
	if !res.OK() {
		return res, &APIError{Status: status, Code: res.Code, Message: res.Message}
	}
	return res, nil
}

// truncate keeps at most limit runes of value.
func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit]) + "…"
}

// Get issues a GET and decodes data into out.
func (c *Client) Get(ctx context.Context, op, endpoint, token string, query url.Values, out any) error {
	_, err := c.Do(ctx, Call{Op: op, Method: http.MethodGet, Path: endpoint, Query: query, Token: token}, out)
	return err
}

// PostJSON issues a POST with a JSON payload and decodes data into out.
func (c *Client) PostJSON(ctx context.Context, op, endpoint, token string, payload, out any) (Result, error) {
	return c.Do(ctx, Call{Op: op, Method: http.MethodPost, Path: endpoint, Token: token, Body: payload}, out)
}

// PutJSON issues a PUT with a JSON payload and decodes data into out.
func (c *Client) PutJSON(ctx context.Context, op, endpoint, token string, payload, out any) (Result, error) {
	return c.Do(ctx, Call{Op: op, Method: http.MethodPut, Path: endpoint, Token: token, Body: payload}, out)
}

// Delete issues a DELETE and returns the envelope.
func (c *Client) Delete(ctx context.Context, op, endpoint, token string, query url.Values) (Result, error) {
	return c.Do(ctx, Call{Op: op, Method: http.MethodDelete, Path: endpoint, Query: query, Token: token}, nil)
}
