// Package apiclient wraps outbound requests to the TRAZIO REST backend.
package apiclient

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
	"regexp"
	"strconv"
	"strings"

	"trazio/internal/models"
	"trazio/internal/observability"

	"go.opentelemetry.io/otel/propagation"
)

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// TokenSource yields the bearer token of the current session, or "" when
// the session is anonymous.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Config configures a Client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenSource
	// OnUnauthorized runs once for every 401 answered to a request that
	// carried a bearer token.
	OnUnauthorized func(ctx context.Context)
}

// Client issues JSON and multipart requests against the backend.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokens         TokenSource
	onUnauthorized func(ctx context.Context)
}

// New builds a Client. A nil HTTPClient means http.Client{} with no timeout.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:     hc,
		tokens:         cfg.Tokens,
		onUnauthorized: cfg.OnUnauthorized,
	}
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

// Do sends a JSON request and decodes a successful response into out (when non-nil).
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return models.NewInternalError(fmt.Errorf("marshal request body: %w", err))
		}
		reader = bytes.NewReader(payload)
	}
	contentType := ""
	if body != nil {
		contentType = "application/json"
	}
	return c.send(ctx, method, path, reader, contentType, out)
}

// Upload streams r as a multipart form file under field and decodes the response into out.
func (c *Client) Upload(ctx context.Context, path, field, filename, contentType string, r io.Reader, out any) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	err := c.send(ctx, http.MethodPost, path, pr, mw.FormDataContentType(), out)
	_ = pr.Close()
	return err
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	route := RouteLabel(path)
	ctx, span := observability.StartClientSpan(ctx, method, route)
	done := observability.TrackAPICall(method, route)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		observability.EndSpan(span, 0, err)
		done("error")
		return models.NewInternalError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	observability.InjectHeaders(ctx, propagation.HeaderCarrier(req.Header))

	token := ""
	if c.tokens != nil {
		token, err = c.tokens.Token(ctx)
		if err != nil {
			observability.EndSpan(span, 0, err)
			done("error")
			return models.NewInternalError(fmt.Errorf("read session token: %w", err))
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.EndSpan(span, 0, err)
		observability.LogAPICall(ctx, method, path, 0, err)
		if ctx.Err() != nil {
			done("cancelled")
			return ctx.Err()
		}
		done("network_error")
		return models.NewNetworkError(err)
	}
	defer resp.Body.Close()

	status := strconv.Itoa(resp.StatusCode)
	if resp.StatusCode >= 400 {
		apiErr := c.decodeError(ctx, resp, token != "")
		observability.EndSpan(span, resp.StatusCode, apiErr)
		observability.LogAPICall(ctx, method, path, resp.StatusCode, apiErr)
		done(status)
		return apiErr
	}

	var decodeErr error
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			decodeErr = models.NewInternalError(fmt.Errorf("decode %s %s: %w", method, route, err))
		}
	} else {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	}
	observability.EndSpan(span, resp.StatusCode, decodeErr)
	observability.LogAPICall(ctx, method, path, resp.StatusCode, decodeErr)
	done(status)
	return decodeErr
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) decodeError(ctx context.Context, resp *http.Response, authenticated bool) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body errorBody
	message := ""
	if json.Unmarshal(raw, &body) == nil {
		message = body.Message
		if message == "" {
			message = body.Error
		}
	}

	if resp.StatusCode == http.StatusUnauthorized && authenticated {
		if c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		if message == "" {
			message = "Tu sesión ha expirado"
		}
		return models.NewUnauthorizedError(message)
	}
	return models.NewBackendError(resp.StatusCode, message)
}

var idSegment = regexp.MustCompile(`^([0-9]+|[0-9a-fA-F-]{12,})$`)

// RouteLabel collapses id-like path segments so metrics keep a bounded cardinality.
func RouteLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if idSegment.MatchString(s) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}
