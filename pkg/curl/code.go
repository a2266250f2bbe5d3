package curl

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// Code classifies the outcome of a transfer. Values follow the numbering
// operators already know from command line transfer tools.
type Code int

const (
	OK                  Code = 0
	UnsupportedProtocol Code = 1
	URLMalformat        Code = 3
	CouldNotResolveHost Code = 6
	CouldNotConnect     Code = 7
	OperationTimedOut   Code = 28
	SSLConnectError     Code = 35
	BadFunctionArgument Code = 43
	GotNothing          Code = 52
	SendError           Code = 55
	RecvError           Code = 56
)

var codeText = map[Code]string{
	OK:                  "No error",
	UnsupportedProtocol: "Unsupported protocol",
	URLMalformat:        "URL using bad/illegal format or missing URL",
	CouldNotResolveHost: "Couldn't resolve host name",
	CouldNotConnect:     "Couldn't connect to server",
	OperationTimedOut:   "Timeout was reached",
	SSLConnectError:     "SSL connect error",
	BadFunctionArgument: "A transfer option was given a bad argument",
	GotNothing:          "Server returned nothing (no headers, no data)",
	SendError:           "Failed sending data to the peer",
	RecvError:           "Failure when receiving data from the peer",
}

// String returns the human readable status text for the code.
func (c Code) String() string {
	if s, ok := codeText[c]; ok {
		return s
	}
	return fmt.Sprintf("Unknown error (%d)", int(c))
}

// TransferError is the structured failure returned by Perform.
type TransferError struct {
	Code Code
	Err  error
}

func (e *TransferError) Error() string {
	if e.Err == nil {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Err.Error()
}

func (e *TransferError) Unwrap() error { return e.Err }

// CodeOf extracts the transfer code from err. Nil maps to OK.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var te *TransferError
	if errors.As(err, &te) {
		return te.Code
	}
	return classify(err, RecvError)
}

type stage int

const (
	stageExchange stage = iota // request sent, waiting for headers
	stageBody                  // headers received, draining body
)

func newTransferError(st stage, err error) *TransferError {
	fallback := RecvError
	if st == stageExchange && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
		fallback = GotNothing
	}
	return &TransferError{Code: classify(err, fallback), Err: err}
}

// classify maps a Go network error onto a Code, using fallback when nothing
// more specific matches.
func classify(err error, fallback Code) Code {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return OperationTimedOut
	case errors.As(err, &netErr) && netErr.Timeout():
		return OperationTimedOut
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CouldNotResolveHost
	}

	if isTLSError(err) {
		return SSLConnectError
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch opErr.Op {
		case "dial":
			return CouldNotConnect
		case "write":
			return SendError
		case "read":
			return RecvError
		}
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return CouldNotConnect
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, `unsupported protocol scheme ""`),
		strings.Contains(msg, "no Host in request URL"):
		return URLMalformat
	case strings.Contains(msg, "unsupported protocol scheme"):
		return UnsupportedProtocol
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Op == "parse" {
		return URLMalformat
	}

	return fallback
}

func isTLSError(err error) bool {
	var (
		recordErr   tls.RecordHeaderError
		verifyErr   *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidErr  x509.CertificateInvalidError
	)
	return errors.As(err, &recordErr) ||
		errors.As(err, &verifyErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidErr)
}
