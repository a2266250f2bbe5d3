package curl

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGetReturnsExactBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/ok" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, "pong")
	}))
	defer srv.Close()

	body, ok := New().Get(srv.URL+"/ok", nil)
	if !ok {
		t.Fatalf("expected present result")
	}
	if string(body) != "pong" {
		t.Fatalf("body = %q, want pong", body)
	}
}

func TestGetEmptyBodyIsPresent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	body, ok := New().Get(srv.URL, nil)
	if !ok {
		t.Fatalf("expected present result")
	}
	if body == nil || len(body) != 0 {
		t.Fatalf("expected empty non-nil body, got %#v", body)
	}
}

func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Method", r.Method)
		w.Header().Set("X-Content-Type", r.Header.Get("Content-Type"))
		if _, err := io.Copy(w, r.Body); err != nil {
			t.Errorf("read request body: %v", err)
		}
	}))
}

func TestPostEchoesPayloadVerbatim(t *testing.T) {
	srv := newEchoServer(t)
	defer srv.Close()

	headers := Headers{{Name: "Content-Type", Value: "text/plain"}}
	body, ok := New().Post(srv.URL+"/echo", headers, []byte("hello"))
	if !ok {
		t.Fatalf("expected present result")
	}
	if string(body) != "hello" {
		t.Fatalf("body = %q, want hello", body)
	}
}

func TestPostBinaryPayloadIsUntouched(t *testing.T) {
	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	payload := []byte{0x00, 0xff, '\n', '\r', 0x7f, 'a'}
	if _, ok := New().Post(srv.URL, nil, payload); !ok {
		t.Fatalf("expected present result")
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("server saw %v, want %v", got, payload)
	}
}

func TestPostDefaultsContentType(t *testing.T) {
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
	}))
	defer srv.Close()

	if _, ok := New().Post(srv.URL, nil, []byte("a=1")); !ok {
		t.Fatalf("expected present result")
	}
	if contentType != defaultBodyContentType {
		t.Fatalf("Content-Type = %q, want %q", contentType, defaultBodyContentType)
	}
}

func TestPostWithoutBodySendsNoPayload(t *testing.T) {
	var (
		method string
		length int64
	)
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		method = r.Method
		length = r.ContentLength
	}))
	defer srv.Close()

	if _, ok := New().Post(srv.URL, nil, nil); !ok {
		t.Fatalf("expected present result")
	}
	if method != http.MethodPost {
		t.Fatalf("method = %s, want POST", method)
	}
	if length != 0 {
		t.Fatalf("expected no payload, content length %d", length)
	}
}

func TestHeadersKeepOrderForRepeatedNames(t *testing.T) {
	var (
		traces []string
		single string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		traces = r.Header.Values("X-Trace")
		single = r.Header.Get("X-Single")
	}))
	defer srv.Close()

	headers := Headers{}.
		Add("X-Trace", "first").
		Add("X-Single", "only").
		Add("X-Trace", "second").
		Add("X-Trace", "third")

	if _, ok := New().Get(srv.URL, headers); !ok {
		t.Fatalf("expected present result")
	}
	want := []string{"first", "second", "third"}
	if strings.Join(traces, ",") != strings.Join(want, ",") {
		t.Fatalf("X-Trace = %v, want %v", traces, want)
	}
	if single != "only" {
		t.Fatalf("X-Single = %q", single)
	}
}

func TestHeadNeverReturnsBody(t *testing.T) {
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.Header().Set("Content-Length", "4")
		_, _ = io.WriteString(w, "pong")
	}))
	defer srv.Close()

	body, ok := New().Execute(MethodHead, srv.URL, nil, []byte("ignored"))
	if !ok {
		t.Fatalf("expected present result")
	}
	if method != http.MethodHead {
		t.Fatalf("wire method = %s, want HEAD", method)
	}
	if len(body) != 0 {
		t.Fatalf("expected empty body for HEAD, got %q", body)
	}
}

func TestCustomVerbsAreForwarded(t *testing.T) {
	srv := newEchoServer(t)
	defer srv.Close()

	cases := []struct {
		method  Method
		payload string
	}{
		{method: MethodPut, payload: "put-body"},
		{method: MethodDelete, payload: "delete-body"},
		{method: Method("PURGE"), payload: ""},
		{method: ParseMethod("patch"), payload: "patched"},
		{method: Method("OPTIONS"), payload: "options-body"},
	}

	for _, tc := range cases {
		t.Run(tc.method.String(), func(t *testing.T) {
			data, err := New().Perform(tc.method, srv.URL, nil, []byte(tc.payload))
			if err != nil {
				t.Fatalf("Perform: %v", err)
			}
			if string(data) != tc.payload {
				t.Fatalf("echo = %q, want %q", data, tc.payload)
			}
		})
	}
}

func TestGetIgnoresBody(t *testing.T) {
	var length int64
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		length = r.ContentLength
	}))
	defer srv.Close()

	if _, ok := New().Execute(MethodGet, srv.URL, nil, []byte("payload")); !ok {
		t.Fatalf("expected present result")
	}
	if length > 0 {
		t.Fatalf("GET should not carry a payload, content length %d", length)
	}
}

func TestHTTPErrorStatusIsStillSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	body, ok := New().Get(srv.URL, nil)
	if !ok {
		t.Fatalf("HTTP 500 is a completed transfer and must be present")
	}
	if strings.TrimSpace(string(body)) != "boom" {
		t.Fatalf("body = %q", body)
	}
}

func TestDoReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	resp, err := New().Do(MethodPost, srv.URL, nil, []byte("x"))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.Status != http.StatusServiceUnavailable || !resp.IsError() {
		t.Fatalf("status = %d, IsError = %v", resp.Status, resp.IsError())
	}
	if !strings.Contains(string(resp.Body), "down for maintenance") {
		t.Fatalf("body = %q", resp.Body)
	}
}

func TestHeaderNamesGoOutAsSupplied(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	received := make(chan []string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			received <- nil
			return
		}
		defer conn.Close()

		var lines []string
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				break
			}
			line = strings.TrimRight(line, "\r\n")
			if line == "" {
				break
			}
			lines = append(lines, line)
		}
		_, _ = io.WriteString(conn, "HTTP/1.1 200 OK\r\nContent-Length: 2\r\nConnection: close\r\n\r\nok")
		received <- lines
	}()

	headers := Headers{}.
		Add("x-zeta", "1").
		Add("X-Alpha", "2").
		Add("x-zeta", "3").
		Add("content-type", "text/plain")

	body, ok := New().Get("http://"+ln.Addr().String()+"/", headers)
	if !ok || string(body) != "ok" {
		t.Fatalf("unexpected result %q %v", body, ok)
	}

	lines := <-received
	pos := make(map[string]int, len(lines))
	for i, line := range lines {
		pos[line] = i
	}
	for _, want := range []string{"x-zeta: 1", "x-zeta: 3", "X-Alpha: 2", "Content-Type: text/plain"} {
		if _, ok := pos[want]; !ok {
			t.Fatalf("missing %q in request %q", want, lines)
		}
	}
	if pos["x-zeta: 1"] > pos["x-zeta: 3"] {
		t.Fatalf("repeated header out of order: %q", lines)
	}
	for _, line := range lines {
		if strings.HasPrefix(line, "X-Zeta:") || strings.HasPrefix(line, "content-type:") {
			t.Fatalf("header name rewritten: %q", lines)
		}
	}
}

func TestRedirectsAreNotFollowed(t *testing.T) {
	var targetHits int
	mux := http.NewServeMux()
	mux.HandleFunc("/target", func(w http.ResponseWriter, _ *http.Request) {
		targetHits++
		_, _ = io.WriteString(w, "target")
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", "/target")
		w.WriteHeader(http.StatusFound)
		_, _ = io.WriteString(w, "moved")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	body, ok := New().Get(srv.URL+"/moved", nil)
	if !ok {
		t.Fatalf("expected present result")
	}
	if string(body) != "moved" {
		t.Fatalf("body = %q, want the redirect response itself", body)
	}
	if targetHits != 0 {
		t.Fatalf("redirect target was requested %d times", targetHits)
	}
}

func TestChunkedResponseIsAssembledInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		flusher, _ := w.(http.Flusher)
		for i := 0; i < 5; i++ {
			fmt.Fprintf(w, "chunk-%d;", i)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	defer srv.Close()

	body, ok := New().Get(srv.URL, nil)
	if !ok {
		t.Fatalf("expected present result")
	}
	if string(body) != "chunk-0;chunk-1;chunk-2;chunk-3;chunk-4;" {
		t.Fatalf("body = %q", body)
	}
}

func TestTimeoutYieldsAbsent(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	data, err := New(WithTimeout(1)).Perform(MethodGet, srv.URL, nil, nil)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatalf("expected timeout, got body %q", data)
	}
	if data != nil {
		t.Fatalf("expected absent data on failure")
	}
	if code := CodeOf(err); code != OperationTimedOut {
		t.Fatalf("code = %v (%d), want OperationTimedOut", code, int(code))
	}
	if elapsed > 2500*time.Millisecond {
		t.Fatalf("timeout took %v", elapsed)
	}
}

func TestNonRoutableHostIsAbsent(t *testing.T) {
	if testing.Short() {
		t.Skip("network dependent")
	}
	start := time.Now()
	body, ok := New(WithTimeout(1), WithLogger(zap.NewNop())).Get("http://10.255.255.1/", nil)
	if ok || body != nil {
		t.Fatalf("expected absent result, got %q", body)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("non-routable request took %v", elapsed)
	}
}

func TestConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	_, err = New().Perform(MethodGet, "http://"+addr+"/", nil, nil)
	if got := CodeOf(err); got != CouldNotConnect {
		t.Fatalf("code = %v, want CouldNotConnect (err %v)", got, err)
	}
}

func TestBadInputsMapToCodes(t *testing.T) {
	cases := []struct {
		name string
		curl *Curl
		url  string
		want Code
	}{
		{name: "malformed url", curl: New(), url: "://nope", want: URLMalformat},
		{name: "empty url", curl: New(), url: "", want: URLMalformat},
		{name: "unsupported scheme", curl: New(), url: "gopher://127.0.0.1/", want: UnsupportedProtocol},
		{name: "negative timeout", curl: &Curl{Timeout: -1}, url: "http://127.0.0.1/", want: BadFunctionArgument},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := tc.curl.Perform(MethodGet, tc.url, nil, nil)
			if err == nil {
				t.Fatalf("expected error, got %q", data)
			}
			var te *TransferError
			if !errors.As(err, &te) {
				t.Fatalf("expected *TransferError, got %T", err)
			}
			if te.Code != tc.want {
				t.Fatalf("code = %v, want %v (err %v)", te.Code, tc.want, err)
			}
		})
	}
}

func TestFailureIsLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	c := New(WithLogger(zap.New(core)))

	body, ok := c.Get("://broken", nil)
	if ok || body != nil {
		t.Fatalf("expected absent result")
	}

	entries := logs.FilterMessage("transfer failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 failure log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["code"] != int64(URLMalformat) {
		t.Fatalf("code field = %v", fields["code"])
	}
	if fields["status"] != URLMalformat.String() {
		t.Fatalf("status field = %v", fields["status"])
	}
	if fields["method"] != "GET" || fields["url"] != "://broken" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestVerboseTracesTransfer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	}))
	defer srv.Close()

	var trace bytes.Buffer
	c := New(WithVerbose(true), WithVerboseOutput(&trace))
	body, ok := c.Get(srv.URL, Headers{{Name: "X-Debug", Value: "yes"}})
	if !ok || string(body) != "pong" {
		t.Fatalf("verbose mode must not alter the result: %q %v", body, ok)
	}
	out := trace.String()
	if !strings.Contains(out, "REQUEST") || !strings.Contains(out, "RESPONSE") {
		t.Fatalf("expected request/response trace, got %q", out)
	}
	if !strings.Contains(out, "X-Debug") {
		t.Fatalf("expected header in trace, got %q", out)
	}
}

func TestConcurrentCallsDoNotShareBuffers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat(r.URL.Query().Get("c"), 1024))
	}))
	defer srv.Close()

	c := New()
	letters := "abcdefgh"
	var wg sync.WaitGroup
	errs := make(chan error, len(letters))
	for _, l := range letters {
		wg.Add(1)
		go func(letter string) {
			defer wg.Done()
			body, ok := c.Get(srv.URL+"/?c="+letter, nil)
			if !ok {
				errs <- fmt.Errorf("%s: absent", letter)
				return
			}
			if string(body) != strings.Repeat(letter, 1024) {
				errs <- fmt.Errorf("%s: body mixed with another request", letter)
			}
		}(string(l))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestResponseBufferAppendsChunks(t *testing.T) {
	var sink responseBuffer
	if got := sink.Bytes(); got == nil || len(got) != 0 {
		t.Fatalf("empty buffer must be non-nil and empty")
	}
	for _, chunk := range []string{"ab", "", "cde", "f"} {
		if _, err := sink.Write([]byte(chunk)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if string(sink.Bytes()) != "abcdef" {
		t.Fatalf("Bytes = %q", sink.Bytes())
	}
	if sink.total != 6 || sink.chunks != 4 {
		t.Fatalf("total=%d chunks=%d", sink.total, sink.chunks)
	}
}
