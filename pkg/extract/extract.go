// Package extract pulls text out of HTML response bodies.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Text returns the trimmed text of every node matching selector, skipping
// empty matches. An empty selector yields nil.
func Text(body []byte, selector string) ([]string, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var out []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out, nil
}

// Attr returns the attribute values of every node matching selector.
func Attr(body []byte, selector, attr string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var out []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if val, ok := s.Attr(attr); ok {
			if val = strings.TrimSpace(val); val != "" {
				out = append(out, val)
			}
		}
	})
	return out, nil
}

// Parse splits a rule of the form "selector" or "selector@attr" and applies it.
func Parse(body []byte, rule string) ([]string, error) {
	rule = strings.TrimSpace(rule)
	if sel, attr, ok := strings.Cut(rule, "@"); ok && strings.TrimSpace(attr) != "" {
		return Attr(body, strings.TrimSpace(sel), strings.TrimSpace(attr))
	}
	return Text(body, rule)
}
