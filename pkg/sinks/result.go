package sinks

import "time"

// Result is the payload delivered downstream for one executed request.
// Body is absent (nil) when the transfer failed.
type Result struct {
	RequestID string    `json:"request_id"`
	Method    string    `json:"method"`
	URL       string    `json:"url"`
	OK        bool      `json:"ok"`
	Body      []byte    `json:"body,omitempty"`
	Extracted []string  `json:"extracted,omitempty"`
	Digest    string    `json:"digest,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// NewResult constructs a Result stamped with the current time.
func NewResult(requestID, method, url string, body []byte, ok bool) Result {
	return Result{
		RequestID: requestID,
		Method:    method,
		URL:       url,
		OK:        ok,
		Body:      body,
		FetchedAt: time.Now().UTC(),
	}
}
