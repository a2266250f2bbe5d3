package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/samvad-hq/curlkit/pkg/curl"
)

type httpSink struct {
	id      string
	method  curl.Method
	url     string
	headers curl.Headers
	client  *curl.Curl
}

func newHTTPSink(_ context.Context, cfg SinkConfig, _ Logger) (Sink, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("sink %q missing http configuration", cfg.ID)
	}

	return &httpSink{
		id:      cfg.ID,
		method:  curl.ParseMethod(cfg.HTTP.Method),
		url:     cfg.HTTP.URL,
		headers: sinkHeaders(cfg.HTTP.Headers),
		client:  curl.New(curl.WithTimeout(cfg.HTTP.TimeoutSeconds)),
	}, nil
}

// sinkHeaders orders configured headers by name and forces a JSON content type.
func sinkHeaders(m map[string]string) curl.Headers {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make(curl.Headers, 0, len(names)+1)
	for _, k := range names {
		if strings.EqualFold(k, "Content-Type") {
			continue
		}
		out = append(out, curl.Header{Name: k, Value: m[k]})
	}
	return out.Add("Content-Type", "application/json")
}

func (h *httpSink) ID() string   { return h.id }
func (h *httpSink) Type() string { return TypeHTTP }
func (h *httpSink) Close() error { return nil }

// Deliver posts the JSON encoded result. The transfer is bounded by the
// configured timeout rather than ctx.
func (h *httpSink) Deliver(_ context.Context, res Result) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	resp, err := h.client.Do(h.method, h.url, h.headers, payload)
	if err != nil {
		return fmt.Errorf("http delivery: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("http response status %d: %s", resp.Status, readBodySnippet(resp.Body))
	}
	return nil
}

func readBodySnippet(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if len(body) > 512 {
		body = body[:512]
	}
	return strings.TrimSpace(string(body))
}
