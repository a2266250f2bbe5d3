package curl

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// handle owns the transfer engine state for exactly one call.
type handle struct {
	client *resty.Client
}

// keepLastResponse stops the engine from chasing redirects; a 3xx response is
// returned to the caller as is.
var keepLastResponse = resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
})

// newHandle builds a fresh resty client configured for a single transfer.
// payload is attached by the pre-request hook when resty drops it for the verb.
func (c *Curl) newHandle(payload []byte) *handle {
	client := resty.New().
		SetTimeout(time.Duration(c.Timeout) * time.Second).
		SetRedirectPolicy(keepLastResponse).
		SetLogger(c.log().Sugar()).
		SetPreRequestHook(attachPayload(payload))

	if c.Verbose {
		client.SetDebug(true).SetLogger(verboseLogger(c.verboseOut))
	}
	return &handle{client: client}
}

// attachPayload restores the body on verbs resty treats as payload-less
// (OPTIONS and custom verbs it gates).
func attachPayload(payload []byte) resty.PreRequestHook {
	return func(_ *resty.Client, hr *http.Request) error {
		if len(payload) == 0 || (hr.Body != nil && hr.Body != http.NoBody) {
			return nil
		}
		hr.Body = io.NopCloser(bytes.NewReader(payload))
		hr.ContentLength = int64(len(payload))
		hr.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(payload)), nil
		}
		return nil
	}
}

// cleanup releases every connection the handle opened.
func (h *handle) cleanup() {
	if h == nil || h.client == nil {
		return
	}
	h.client.GetClient().CloseIdleConnections()
}

// verboseLogger writes transfer traces to w (stderr when nil) in console form.
func verboseLogger(w io.Writer) *zap.SugaredLogger {
	if w == nil {
		w = os.Stderr
	}
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		zapcore.DebugLevel,
	)
	return zap.New(core).Sugar()
}
