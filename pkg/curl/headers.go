package curl

import (
	"fmt"
	"net/http"
	"strings"
)

// Header is a single request header as supplied by the caller.
type Header struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// String renders the header the way it appears on the wire.
func (h Header) String() string {
	return h.Name + ": " + h.Value
}

// Headers is an ordered header list. Repeated names are allowed and keep their
// relative order on the wire. Names go out as supplied, except those the
// transport itself manages (see reservedNames), which are canonicalized.
// net/http writes distinct names sorted, so order across names is not kept.
type Headers []Header

// Add appends a header and returns the extended list.
func (h Headers) Add(name, value string) Headers {
	return append(h, Header{Name: name, Value: value})
}

// Lines returns every header as "Name: value", in order.
func (h Headers) Lines() []string {
	if len(h) == 0 {
		return nil
	}
	out := make([]string, 0, len(h))
	for _, hdr := range h {
		out = append(out, hdr.String())
	}
	return out
}

// Has reports whether a header with the given name (case-insensitive) is present.
func (h Headers) Has(name string) bool {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return true
		}
	}
	return false
}

// reservedNames are looked up by canonical key in net/http or resty; a
// lower-case spelling would be written twice.
var reservedNames = map[string]struct{}{
	"Accept":            {},
	"Accept-Encoding":   {},
	"Connection":        {},
	"Content-Length":    {},
	"Content-Type":      {},
	"Host":              {},
	"Trailer":           {},
	"Transfer-Encoding": {},
	"User-Agent":        {},
}

// wireName returns the key used on the wire for name.
func wireName(name string) string {
	canonical := http.CanonicalHeaderKey(name)
	if _, ok := reservedNames[canonical]; ok {
		return canonical
	}
	return name
}

// apply copies the list onto an http.Header keeping name text and per-name
// order as supplied.
func (h Headers) apply(dst http.Header) {
	for _, hdr := range h {
		key := wireName(hdr.Name)
		dst[key] = append(dst[key], hdr.Value)
	}
}

// ParseHeader splits a "Name: value" line.
func ParseHeader(line string) (Header, error) {
	name, value, ok := strings.Cut(line, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return Header{}, fmt.Errorf("malformed header %q (expected \"Name: value\")", line)
	}
	return Header{Name: name, Value: strings.TrimSpace(value)}, nil
}

// ParseHeaders parses every line, stopping at the first malformed entry.
func ParseHeaders(lines []string) (Headers, error) {
	out := make(Headers, 0, len(lines))
	for _, line := range lines {
		hdr, err := ParseHeader(line)
		if err != nil {
			return nil, err
		}
		out = append(out, hdr)
	}
	return out, nil
}
