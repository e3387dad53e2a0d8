package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TokenSource supplies the bearer token. It is consulted on every request so
// a login or logout takes effect on the very next call.
type TokenSource interface {
	Token() string
}

// Client is a thin HTTP client for the bug-tracking REST API.
// Each method performs exactly one round trip. There are no retries and no
// client-imposed timeout; pass a context with a deadline to bound a call.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	log        *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default traced HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// New creates a client for the API rooted at baseURL
// (e.g. http://localhost:3000/api). tokens may be nil for a client that only
// calls the unauthenticated endpoints.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanOptions(trace.WithSpanKind(trace.SpanKindClient)),
			),
		},
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// call describes one request.
type call struct {
	op          string
	fallback    string
	method      string
	path        string
	auth        bool
	body        any
	contentType string
	raw         io.Reader
}

// doJSON sends a JSON request and decodes the {data: ...} envelope into result.
func (c *Client) doJSON(ctx context.Context, cl call, result any) error {
	if cl.body != nil {
		data, err := json.Marshal(cl.body)
		if err != nil {
			return &Error{Kind: KindValidation, Op: cl.op, Message: "invalid request", Err: err}
		}
		cl.raw = bytes.NewReader(data)
		cl.contentType = "application/json"
	}

	respBody, err := c.send(ctx, cl)
	if err != nil {
		return err
	}

	if result == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	if err := decodeEnvelope(respBody, result); err != nil {
		return &Error{
			Kind:    KindDecode,
			Op:      cl.op,
			Message: cl.fallback,
			Err:     fmt.Errorf("decoding response from %s %s: %w", cl.method, cl.path, err),
		}
	}
	return nil
}

// send performs the round trip and maps transport and status failures to
// *Error. It returns the body of a 2xx response.
func (c *Client) send(ctx context.Context, cl call) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, cl.raw)
	if err != nil {
		return nil, &Error{Kind: KindConnection, Op: cl.op, Message: connectionMessage, Err: err}
	}

	req.Header.Set("Accept", "application/json")
	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}
	if cl.auth && c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("api request failed",
			zap.String("method", cl.method),
			zap.String("path", cl.path),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, &Error{Kind: KindConnection, Op: cl.op, Message: connectionMessage, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindConnection, Op: cl.op, Message: connectionMessage, Err: fmt.Errorf("reading response body: %w", err)}
	}

	c.log.Debug("api request",
		zap.String("method", cl.method),
		zap.String("path", cl.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Kind:    KindStatus,
			Op:      cl.op,
			Status:  resp.StatusCode,
			Message: errorMessage(respBody, cl.fallback),
		}
	}

	return respBody, nil
}

// decodeEnvelope unwraps {"data": X} into result, or decodes the whole body
// when there is no data member.
func decodeEnvelope(body []byte, result any) error {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		data := bytes.TrimSpace(env.Data)
		if bytes.Equal(data, []byte("null")) {
			return nil
		}
		if len(data) > 0 {
			return json.Unmarshal(data, result)
		}
	}
	return json.Unmarshal(body, result)
}

// errorMessage extracts the server's message from a failure body.
func errorMessage(body []byte, fallback string) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if msg := strings.TrimSpace(eb.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(eb.Error); msg != "" {
			return msg
		}
	}
	return fallback
}

// multipartBody encodes one image under the screenshot field plus the
// bug_id field.
func multipartBody(file File, bugID string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="screenshot"; filename=%q`, file.Name))
	contentType := file.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("creating screenshot part: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", fmt.Errorf("writing screenshot part: %w", err)
	}
	if err := w.WriteField("bug_id", bugID); err != nil {
		return nil, "", fmt.Errorf("writing bug_id field: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

// Message returns the user-facing text for err. For *Error this is the
// server's message or the operation fallback; anything else is shown as-is.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// Ping checks that an API answers at the base URL. It sends an
// unauthenticated list request: a 401 or any 2xx counts as reachable, while a
// 404 means the base URL points somewhere else.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.send(ctx, call{op: "ping", fallback: "API not reachable", method: http.MethodGet, path: "/bugs"})
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Kind == KindStatus && apiErr.Status != http.StatusNotFound {
		return nil
	}
	return err
}
