// Package requests loads the catalog of named requests the runner executes.
package requests

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/samvad-hq/curlkit/pkg/curl"
	"gopkg.in/yaml.v3"
)

// Entry is one request declared in the catalog file.
type Entry struct {
	ID      string        `json:"id" yaml:"id"`
	Method  string        `json:"method" yaml:"method"`
	URL     string        `json:"url" yaml:"url"`
	Headers []curl.Header `json:"headers" yaml:"headers"`
	Body    string        `json:"body" yaml:"body"`
	// TimeoutSeconds overrides the global transfer timeout when positive.
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds"`
	// Extract is an optional CSS selector applied to HTML responses.
	Extract string `json:"extract" yaml:"extract"`
}

type catalogFile struct {
	Requests []Entry `json:"requests" yaml:"requests"`
}

// Catalog is an immutable, validated set of entries.
type Catalog struct {
	entries []Entry
	idx     map[string]Entry
}

// Load reads a YAML or JSON catalog.
func Load(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("requests file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open requests file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read requests file: %w", err)
	}

	parsed, err := parseCatalog(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(parsed.Requests) == 0 {
		return nil, errors.New("requests file contains no requests entries")
	}

	cat := &Catalog{
		entries: make([]Entry, len(parsed.Requests)),
		idx:     make(map[string]Entry, len(parsed.Requests)),
	}
	for i := range parsed.Requests {
		e := sanitizeEntry(parsed.Requests[i])
		if err := validateEntry(e); err != nil {
			return nil, fmt.Errorf("requests[%d]: %w", i, err)
		}
		if _, exists := cat.idx[e.ID]; exists {
			return nil, fmt.Errorf("duplicate request id %q", e.ID)
		}
		cat.entries[i] = e
		cat.idx[e.ID] = e
	}
	return cat, nil
}

type unmarshalFn func([]byte, any) error

func parseCatalog(data []byte, ext string) (catalogFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	var lastErr error
	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var cat catalogFile
		if err := d.fn(data, &cat); err != nil {
			lastErr = fmt.Errorf("decode %s requests: %w", d.name, err)
			continue
		}
		return cat, nil
	}
	if lastErr != nil {
		return catalogFile{}, lastErr
	}
	return catalogFile{}, errors.New("requests file format not recognized (expected YAML or JSON)")
}

func sanitizeEntry(e Entry) Entry {
	e.ID = strings.TrimSpace(e.ID)
	e.URL = strings.TrimSpace(e.URL)
	e.Extract = strings.TrimSpace(e.Extract)
	e.Method = curl.ParseMethod(e.Method).String()
	if e.Method == "" {
		e.Method = curl.MethodGet.String()
	}

	headers := make([]curl.Header, 0, len(e.Headers))
	for _, h := range e.Headers {
		h.Name = strings.TrimSpace(h.Name)
		if h.Name == "" {
			continue
		}
		headers = append(headers, h)
	}
	e.Headers = headers
	return e
}

func validateEntry(e Entry) error {
	if e.ID == "" {
		return errors.New("id is required")
	}
	if e.URL == "" {
		return fmt.Errorf("url is required for request %q", e.ID)
	}
	if strings.ContainsAny(e.Method, " \t\r\n") {
		return fmt.Errorf("method %q is not a single token for request %q", e.Method, e.ID)
	}
	if e.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must not be negative for request %q", e.ID)
	}
	return nil
}

// All returns a copy of every entry, in file order.
func (c *Catalog) All() []Entry {
	if c == nil {
		return nil
	}
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// ByID looks an entry up by id.
func (c *Catalog) ByID(id string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	e, ok := c.idx[strings.TrimSpace(id)]
	return e, ok
}

// MethodValue returns the verb to hand to curl.
func (e Entry) MethodValue() curl.Method { return curl.ParseMethod(e.Method) }

// HeaderList returns the ordered header list.
func (e Entry) HeaderList() curl.Headers { return curl.Headers(e.Headers) }

// BodyBytes returns the payload, nil when no body is configured.
func (e Entry) BodyBytes() []byte {
	if e.Body == "" {
		return nil
	}
	return []byte(e.Body)
}
