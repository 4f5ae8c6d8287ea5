// Package types defines the shared request and response vocabulary used by
// the koala client, its transports, and its endpoint modules.
package types

import (
	"net/http"
	"strconv"
)

// Verb is the HTTP method used for an API call.
type Verb string

const (
	VerbGet    Verb = "get"
	VerbPost   Verb = "post"
	VerbDelete Verb = "delete"
)

// Method returns the net/http method name for the verb.
func (v Verb) Method() string {
	switch v {
	case VerbPost:
		return http.MethodPost
	case VerbDelete:
		return http.MethodDelete
	default:
		return http.MethodGet
	}
}

// HTTPComponent selects a raw piece of the HTTP response to return from a
// call instead of the parsed JSON body.
type HTTPComponent string

const (
	ComponentStatus  HTTPComponent = "status"
	ComponentHeaders HTTPComponent = "headers"
	ComponentBody    HTTPComponent = "body"
)

// Params holds the parameters for a single API call. Values are attached as
// query parameters for GET and DELETE requests and as a form-encoded body for
// POST requests.
type Params map[string]string

// Clone returns a shallow copy so callers never observe mutations made during
// dispatch, such as access token attachment.
func (p Params) Clone() Params {
	out := make(Params, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	return out
}

// RequestOptions carries per-call behavior flags through the dispatcher down
// to the transport.
type RequestOptions struct {
	// UseSSL forces the request over HTTPS. Requests carrying an access
	// token are always sent over HTTPS regardless of this flag.
	UseSSL bool

	// RestServer routes the request to the legacy REST API host instead of
	// the Graph API host.
	RestServer bool

	// HTTPComponent, when set, makes the call return the selected raw
	// response component (status, headers, or body) instead of the parsed
	// JSON value. Component requests tolerate non-JSON bodies such as
	// form-encoded token responses and redirect headers, but the error check
	// still runs when the body does parse.
	HTTPComponent HTTPComponent

	// ErrorCheck, when set, is invoked with the parsed JSON body before the
	// call returns, including component requests whose body parses. A
	// non-nil result aborts the call with that error. This hook is how
	// endpoint modules detect error shapes that are structurally valid JSON,
	// such as Graph {"error": ...} objects.
	ErrorCheck func(body any) error
}

// Response is the transport-level result of one HTTP request.
type Response struct {
	StatusCode int
	Body       string
	Headers    http.Header
}

// CookieSession is the verified field set of an application cookie session.
// Keys mirror the cookie's wire names: uid, access_token, expires, sig, plus
// any extra fields the service included.
type CookieSession map[string]string

// UID returns the user id recorded in the session.
func (s CookieSession) UID() string { return s["uid"] }

// AccessToken returns the session's access token.
func (s CookieSession) AccessToken() string { return s["access_token"] }

// Expires returns the session expiration as epoch seconds, or 0 for a
// non-expiring session.
func (s CookieSession) Expires() int64 {
	n, err := strconv.ParseInt(s["expires"], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// TokenInfo is one access token record returned by the OAuth endpoints. The
// access_token endpoint answers with form-encoded pairs rather than JSON, so
// every field stays a string; Expires converts on demand.
type TokenInfo map[string]string

// AccessToken returns the token string, or "" when the record is absent.
func (t TokenInfo) AccessToken() string {
	if t == nil {
		return ""
	}
	return t["access_token"]
}

// Expires returns the token lifetime in seconds, or 0 when not reported.
func (t TokenInfo) Expires() int64 {
	if t == nil {
		return 0
	}
	n, err := strconv.ParseInt(t["expires"], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
