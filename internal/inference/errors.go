package inference

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"google.golang.org/genai"
)

// ErrorKind classifies inference failures.
type ErrorKind int

const (
	KindInvalidRequest ErrorKind = iota
	KindAuth
	KindQuota
	KindSafetyBlocked
	KindIncomplete
	KindEmpty
	KindNetwork
	KindProtocol
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindAuth:
		return "auth"
	case KindQuota:
		return "quota"
	case KindSafetyBlocked:
		return "safety_blocked"
	case KindIncomplete:
		return "incomplete"
	case KindEmpty:
		return "empty"
	case KindNetwork:
		return "network"
	case KindProtocol:
		return "protocol"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var userMessages = map[ErrorKind]string{
	KindInvalidRequest: "There is nothing to send. Type a message first.",
	KindAuth:           "The Gemini API key was rejected. Check the api_key in your configuration.",
	KindQuota:          "The Gemini API refused the request because the quota is used up or access is denied. Try again later.",
	KindSafetyBlocked:  "The response was blocked by the model's safety filters. Try rephrasing your request.",
	KindIncomplete:     "The model stopped before it produced an answer. Try again or shorten the request.",
	KindEmpty:          "The model returned an empty response. Try again.",
	KindNetwork:        "Could not reach the Gemini API. Check your connection and try again.",
	KindProtocol:       "The Gemini API sent a response that could not be understood.",
}

// Error is the only error type Send returns. The underlying cause is kept for
// logs; callers show UserMessage.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

// ErrInvalidRequest is returned when no well-formed turn remains to send.
var ErrInvalidRequest = &Error{Kind: KindInvalidRequest, Detail: "no well-formed turns"}

func (e *Error) Error() string {
	msg := "inference " + e.Kind.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// UserMessage is the text shown in the panel.
func (e *Error) UserMessage() string {
	if msg, ok := userMessages[e.Kind]; ok {
		return msg
	}
	return userMessages[KindProtocol]
}

// KindOf returns the kind of an inference error, or KindProtocol for anything else.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindProtocol
}

func newError(kind ErrorKind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// classifyTransport maps an error from the SDK call to an *Error.
func classifyTransport(err error) *Error {
	var ie *Error
	if errors.As(err, &ie) {
		return ie
	}

	if apiErr, ok := asAPIError(err); ok {
		return classifyStatus(apiErr, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newError(KindNetwork, "request abandoned", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return newError(KindNetwork, "", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return newError(KindNetwork, "", err)
	}
	return newError(KindProtocol, "", err)
}

func asAPIError(err error) (genai.APIError, bool) {
	var v genai.APIError
	if errors.As(err, &v) {
		return v, true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return *p, true
	}
	return genai.APIError{}, false
}

func classifyStatus(apiErr genai.APIError, err error) *Error {
	detail := fmt.Sprintf("HTTP %d %s", apiErr.Code, apiErr.Status)
	switch {
	case apiErr.Code == http.StatusUnauthorized:
		return newError(KindAuth, detail, err)
	case apiErr.Code == http.StatusBadRequest && mentionsAPIKey(apiErr.Message):
		return newError(KindAuth, detail, err)
	case apiErr.Code == http.StatusBadRequest:
		return newError(KindInvalidRequest, detail, err)
	case apiErr.Code == http.StatusForbidden || apiErr.Code == http.StatusTooManyRequests:
		return newError(KindQuota, detail, err)
	case apiErr.Code >= 500:
		return newError(KindNetwork, detail, err)
	default:
		return newError(KindProtocol, detail, err)
	}
}

func mentionsAPIKey(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "api key not valid") || strings.Contains(m, "api_key_invalid")
}
