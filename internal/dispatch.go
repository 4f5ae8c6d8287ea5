// Package internal contains the request dispatch pipeline and the credential
// verification primitives behind the public koala API.
package internal

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	pkgerrs "github.com/pulsd/koala/pkg/errors"
	"github.com/pulsd/koala/pkg/types"
	slogctx "github.com/veqryn/slog-context"
)

// Transport performs one HTTP request on behalf of the dispatcher. It is the
// injection point for the HTTP backend: the caller supplies an implementation
// at construction and the dispatcher never consults a process-wide default.
type Transport interface {
	Request(ctx context.Context, path string, params types.Params, verb types.Verb, opts *types.RequestOptions) (*types.Response, error)
}

// Dispatcher builds authenticated requests, invokes the transport, classifies
// the response, and either returns the parsed JSON value or a typed error.
// It holds no mutable state after construction and is safe for concurrent use.
type Dispatcher struct {
	transport      Transport
	accessToken    string
	appAccessToken string
	logger         *slog.Logger
}

// NewDispatcher returns a dispatcher bound to the given transport. The user
// access token takes precedence over the app access token when both are set.
func NewDispatcher(transport Transport, accessToken, appAccessToken string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		transport:      transport,
		accessToken:    accessToken,
		appAccessToken: appAccessToken,
		logger:         logger,
	}
}

// Call issues one API request and returns the parsed JSON body, or the raw
// response component selected by opts.HTTPComponent. Bare scalar bodies
// (true, false, numbers, quoted strings) parse directly since encoding/json
// accepts non-object roots. An empty body yields a nil value. The error hook
// runs before a component is returned, so upstream error bodies are not
// masked by component requests.
func (d *Dispatcher) Call(ctx context.Context, path string, params types.Params, verb types.Verb, opts *types.RequestOptions) (any, error) {
	if opts == nil {
		opts = &types.RequestOptions{}
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	params = params.Clone()
	if _, ok := params["access_token"]; !ok {
		if tok := d.token(); tok != "" {
			params["access_token"] = tok
		}
	}

	resp, err := d.transport.Request(ctx, path, params, verb, opts)
	if err != nil {
		return nil, &pkgerrs.RequestError{Operation: path, Err: err}
	}

	d.log(ctx).Debug("api call", "path", path, "verb", string(verb), "status", resp.StatusCode)

	// Server-error bodies are not guaranteed to be valid JSON, so they are
	// surfaced raw without any parse attempt.
	if resp.StatusCode >= 500 {
		return nil, &pkgerrs.TransportError{StatusCode: resp.StatusCode, Body: resp.Body}
	}

	// Component requests may carry non-JSON bodies (form-encoded token
	// responses, redirect headers), so a parse failure is only an error when
	// the parsed body itself was requested. The error hook still sees the
	// body whenever it parses: an upstream error object is valid JSON even
	// when the caller asked for a raw component.
	var body any
	if trimmed := strings.TrimSpace(resp.Body); trimmed != "" {
		if err := json.Unmarshal([]byte(trimmed), &body); err != nil && opts.HTTPComponent == "" {
			return nil, &pkgerrs.ParseError{Operation: path, Err: err}
		}
	}

	if opts.ErrorCheck != nil {
		if err := opts.ErrorCheck(body); err != nil {
			return nil, err
		}
	}

	if opts.HTTPComponent != "" {
		return component(resp, opts.HTTPComponent), nil
	}

	return body, nil
}

// token picks the credential attached to outgoing requests. The app-level
// token is used only when no user token is present.
func (d *Dispatcher) token() string {
	if d.accessToken != "" {
		return d.accessToken
	}
	return d.appAccessToken
}

func (d *Dispatcher) log(ctx context.Context) *slog.Logger {
	if d.logger != nil {
		return d.logger
	}
	return slogctx.FromCtx(ctx)
}

func component(resp *types.Response, c types.HTTPComponent) any {
	switch c {
	case types.ComponentStatus:
		return resp.StatusCode
	case types.ComponentHeaders:
		return resp.Headers
	default:
		return resp.Body
	}
}
