package koala

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrs "github.com/pulsd/koala/pkg/errors"
	"github.com/pulsd/koala/pkg/types"
)

// fakeTransport records requests and plays back canned responses, one per
// call when queue is set, else resp for every call.
type fakeTransport struct {
	resp  *types.Response
	queue []*types.Response
	err   error

	lastPath   string
	lastParams types.Params
	lastVerb   types.Verb
	lastOpts   *types.RequestOptions
	calls      int
}

func (f *fakeTransport) Request(ctx context.Context, path string, params types.Params, verb types.Verb, opts *types.RequestOptions) (*types.Response, error) {
	f.calls++
	f.lastPath = path
	f.lastParams = params
	f.lastVerb = verb
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	if len(f.queue) > 0 {
		next := f.queue[0]
		f.queue = f.queue[1:]
		return next, nil
	}
	return f.resp, nil
}

func jsonResponse(body string) *types.Response {
	return &types.Response{StatusCode: 200, Body: body, Headers: http.Header{}}
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	_, err := NewClient(nil)

	var cfgErr *pkgerrs.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestNewClientDefaultsTransport(t *testing.T) {
	t.Parallel()

	client, err := NewClient(&Config{AccessToken: "token"})
	require.NoError(t, err)
	assert.NotNil(t, client.config.Transport)
	assert.IsType(t, &HTTPTransport{}, client.config.Transport)
}

func TestClientCallDelegatesToDispatcher(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{resp: jsonResponse(`{"id":"1"}`)}
	client, err := NewClient(&Config{AccessToken: "user-token", Transport: transport})
	require.NoError(t, err)

	got, err := client.Call(context.Background(), "me", nil, types.VerbGet, nil)
	require.NoError(t, err)

	assert.Equal(t, "/me", transport.lastPath)
	assert.Equal(t, "user-token", transport.lastParams["access_token"])
	assert.Equal(t, map[string]any{"id": "1"}, got)
}

func TestClientAppTokenFallback(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{resp: jsonResponse(`{}`)}
	client, err := NewClient(&Config{AppAccessToken: "app-token", Transport: transport})
	require.NoError(t, err)

	_, err = client.Call(context.Background(), "/app", nil, types.VerbGet, nil)
	require.NoError(t, err)
	assert.Equal(t, "app-token", transport.lastParams["access_token"])
}
