// Package curl performs single blocking HTTP transfers with a deliberately
// small surface: a verb, a URL, ordered headers and an optional body go in;
// the full response body, or nothing at all, comes out.
package curl

import (
	"fmt"
	"io"

	"go.uber.org/zap"
)

const (
	// DefaultTimeout is the whole-second transfer limit applied by New.
	DefaultTimeout = 3

	// defaultBodyContentType is sent with a payload when the caller names none.
	defaultBodyContentType = "application/x-www-form-urlencoded"
)

// Curl issues requests. The zero value is usable and has no time limit;
// New applies DefaultTimeout. A Curl holds no per-request state, so one value
// may serve concurrent callers.
type Curl struct {
	// Timeout bounds the whole round trip in seconds. Zero disables the limit.
	Timeout int
	// Verbose dumps every request and response to the verbose writer.
	Verbose bool

	logger     *zap.Logger
	verboseOut io.Writer
}

// Option configures a Curl.
type Option func(*Curl)

// WithTimeout sets the transfer limit in whole seconds.
func WithTimeout(seconds int) Option {
	return func(c *Curl) { c.Timeout = seconds }
}

// WithVerbose toggles transfer tracing.
func WithVerbose(v bool) Option {
	return func(c *Curl) { c.Verbose = v }
}

// WithLogger routes failure diagnostics to l instead of the global zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Curl) { c.logger = l }
}

// WithVerboseOutput redirects verbose traces (stderr by default).
func WithVerboseOutput(w io.Writer) Option {
	return func(c *Curl) { c.verboseOut = w }
}

// New returns a Curl with DefaultTimeout and verbose off.
func New(opts ...Option) *Curl {
	c := &Curl{Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Curl) log() *zap.Logger {
	if c.logger != nil {
		return c.logger
	}
	return zap.L()
}

// Get fetches url. The second result is false when the transfer failed.
func (c *Curl) Get(url string, headers Headers) ([]byte, bool) {
	return c.Execute(MethodGet, url, headers, nil)
}

// Post sends body to url. A nil or empty body posts without a payload.
func (c *Curl) Post(url string, headers Headers, body []byte) ([]byte, bool) {
	return c.Execute(MethodPost, url, headers, body)
}

// Execute runs one transfer with any verb. On failure the cause is logged and
// the result is absent (nil, false); callers only learn success or absence.
// GET and HEAD never carry a payload, so body is ignored for them.
func (c *Curl) Execute(method Method, url string, headers Headers, body []byte) ([]byte, bool) {
	data, err := c.Perform(method, url, headers, body)
	if err != nil {
		code := CodeOf(err)
		c.log().Error("transfer failed",
			zap.Int("code", int(code)),
			zap.String("status", code.String()),
			zap.Error(err),
			zap.String("method", method.String()),
			zap.String("url", url),
		)
		return nil, false
	}
	return data, true
}

// Perform is Execute with the failure surfaced as a *TransferError instead of
// a log line. Any completed HTTP exchange counts as success whatever its
// status code; partially received bodies are dropped on failure.
func (c *Curl) Perform(method Method, url string, headers Headers, body []byte) ([]byte, error) {
	resp, err := c.Do(method, url, headers, body)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Response is a completed exchange.
type Response struct {
	Status int
	Body   []byte
}

// IsError reports a 4xx or 5xx status.
func (r *Response) IsError() bool { return r.Status > 399 }

// Do is Perform that also reports the HTTP status, for callers that treat
// error statuses as failures.
func (c *Curl) Do(method Method, url string, headers Headers, body []byte) (*Response, error) {
	if c.Timeout < 0 {
		return nil, &TransferError{
			Code: BadFunctionArgument,
			Err:  fmt.Errorf("timeout must not be negative, got %d", c.Timeout),
		}
	}

	var payload []byte
	if len(body) > 0 && method.sendsBody() {
		payload = body
	}

	h := c.newHandle(payload)
	defer h.cleanup()

	req := h.client.R().SetDoNotParseResponse(true)
	headers.apply(req.Header)

	if payload != nil {
		if !headers.Has("Content-Type") {
			req.Header.Set("Content-Type", defaultBodyContentType)
		}
		req.SetBody(payload)
	}

	resp, err := req.Execute(method.String(), url)
	if err != nil {
		if resp != nil && resp.RawBody() != nil {
			resp.RawBody().Close()
		}
		return nil, newTransferError(stageExchange, err)
	}
	raw := resp.RawBody()
	defer raw.Close()

	var sink responseBuffer
	if method == MethodHead {
		return &Response{Status: resp.StatusCode(), Body: sink.Bytes()}, nil
	}
	if _, err := io.Copy(&sink, raw); err != nil {
		return nil, newTransferError(stageBody, err)
	}
	return &Response{Status: resp.StatusCode(), Body: sink.Bytes()}, nil
}
