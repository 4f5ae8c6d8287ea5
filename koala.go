package koala

import (
	"context"
	"log/slog"

	"github.com/pulsd/koala/internal"
	pkgerrs "github.com/pulsd/koala/pkg/errors"
	"github.com/pulsd/koala/pkg/types"
)

const (
	// DefaultGraphHost is the Graph API host.
	DefaultGraphHost = "graph.facebook.com"
	// DefaultRestHost is the legacy REST API host.
	DefaultRestHost = "api.facebook.com"
	// DefaultUserAgent identifies this library to the API.
	DefaultUserAgent = "koala-go/1.0"
)

// Transport performs one HTTP request on behalf of the client. The caller
// supplies an implementation at construction; there is no process-wide
// default. NewHTTPTransport returns the net/http-backed implementation.
type Transport interface {
	Request(ctx context.Context, path string, params types.Params, verb types.Verb, opts *types.RequestOptions) (*types.Response, error)
}

// Caller dispatches one API call and returns the parsed JSON value, or the
// raw response component selected in the options. Endpoint modules take a
// Caller as a constructor dependency.
type Caller interface {
	Call(ctx context.Context, path string, params types.Params, verb types.Verb, opts *types.RequestOptions) (any, error)
}

// Config holds the configuration for an API client.
//
// For user-level calls, provide AccessToken. For app-level calls, provide
// AppAccessToken; it is only attached when no user token is set.
type Config struct {
	// AccessToken is the user-level access token attached to requests.
	AccessToken string

	// AppAccessToken is the application-level access token, used only when
	// AccessToken is empty.
	AppAccessToken string

	// AppID and AppSecret identify the application. They are required for
	// OAuth, cookie verification, and realtime subscriptions, and unused for
	// plain Graph calls.
	AppID     string
	AppSecret string

	// Transport performs the HTTP requests. Defaults to NewHTTPTransport(nil).
	Transport Transport

	// Logger for structured diagnostics.
	// Optional. If provided, debug information will be logged during API
	// calls. When nil, a logger carried in the request context (via
	// veqryn/slog-context) is used instead.
	Logger *slog.Logger
}

// Client is the main API client. It composes the Graph and REST endpoint
// modules over a single dispatcher and is safe for concurrent use: nothing
// is mutated after construction.
type Client struct {
	*GraphAPI
	*RestAPI

	dispatcher *internal.Dispatcher
	config     *Config
}

// NewClient creates a new API client with the provided configuration.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, &pkgerrs.ConfigError{Message: "config cannot be nil"}
	}
	if config.Transport == nil {
		config.Transport = NewHTTPTransport(nil)
	}

	dispatcher := internal.NewDispatcher(config.Transport, config.AccessToken, config.AppAccessToken, config.Logger)

	return &Client{
		GraphAPI:   NewGraphAPI(dispatcher),
		RestAPI:    NewRestAPI(dispatcher),
		dispatcher: dispatcher,
		config:     config,
	}, nil
}

// Call issues a raw API call. Most callers should prefer the typed endpoint
// methods; Call is the escape hatch for endpoints without one.
func (c *Client) Call(ctx context.Context, path string, params types.Params, verb types.Verb, opts *types.RequestOptions) (any, error) {
	return c.dispatcher.Call(ctx, path, params, verb, opts)
}
