package curl

import "strings"

// Method is the request verb handed to the transfer engine.
type Method string

const (
	MethodHead   Method = "HEAD"
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
)

// ParseMethod normalizes a verb string. Unknown verbs are kept as custom verbs.
func ParseMethod(s string) Method {
	return Method(strings.ToUpper(strings.TrimSpace(s)))
}

// Known reports whether m is one of the five verbs with dedicated handling.
func (m Method) Known() bool {
	switch m {
	case MethodHead, MethodGet, MethodPost, MethodPut, MethodDelete:
		return true
	}
	return false
}

// sendsBody reports whether a non-empty payload is attached for this verb.
// HEAD and GET never carry one.
func (m Method) sendsBody() bool {
	return m != MethodHead && m != MethodGet
}

func (m Method) String() string { return string(m) }
