package koala

import (
	"context"
	"errors"
	"net/http"
	"strings"

	pkgerrs "github.com/pulsd/koala/pkg/errors"
	"github.com/pulsd/koala/pkg/types"
)

var errUnexpectedShape = errors.New("unexpected response shape")

// GraphAPI provides the Graph API endpoint methods. It takes a Caller as a
// constructor dependency rather than embedding dispatch logic of its own.
type GraphAPI struct {
	caller Caller
}

// NewGraphAPI returns a Graph endpoint module bound to the given caller.
func NewGraphAPI(caller Caller) *GraphAPI {
	return &GraphAPI{caller: caller}
}

// GetObject fetches a single object by id or alias, e.g. "me" or "koppel".
func (g *GraphAPI) GetObject(ctx context.Context, id string, params types.Params) (any, error) {
	return g.call(ctx, id, params, types.VerbGet, nil)
}

// GetObjects fetches several objects in one request. The result maps each id
// to its object.
func (g *GraphAPI) GetObjects(ctx context.Context, ids []string, params types.Params) (map[string]any, error) {
	params = params.Clone()
	params["ids"] = strings.Join(ids, ",")

	body, err := g.call(ctx, "", params, types.VerbGet, nil)
	if err != nil {
		return nil, err
	}

	objects, ok := body.(map[string]any)
	if !ok {
		return nil, &pkgerrs.ParseError{Operation: "get objects", Err: errUnexpectedShape}
	}
	return objects, nil
}

// GetConnections fetches a connection of an object, e.g. ("me", "feed").
func (g *GraphAPI) GetConnections(ctx context.Context, id, connection string, params types.Params) (any, error) {
	return g.call(ctx, id+"/"+connection, params, types.VerbGet, nil)
}

// PutObject writes an object into a connection of a parent object, e.g.
// ("me", "feed", {"message": "hi"}). Requires a token with publish rights.
func (g *GraphAPI) PutObject(ctx context.Context, parentID, connection string, params types.Params) (any, error) {
	return g.call(ctx, parentID+"/"+connection, params, types.VerbPost, nil)
}

// PutWallPost posts a message, optionally with attachment fields, to the
// target profile's feed. An empty target posts to the current user.
func (g *GraphAPI) PutWallPost(ctx context.Context, message string, attachment types.Params, target string) (any, error) {
	if target == "" {
		target = "me"
	}
	params := attachment.Clone()
	if message != "" {
		params["message"] = message
	}
	return g.PutObject(ctx, target, "feed", params)
}

// PutComment comments on an object.
func (g *GraphAPI) PutComment(ctx context.Context, objectID, message string) (any, error) {
	return g.PutObject(ctx, objectID, "comments", types.Params{"message": message})
}

// PutLike likes an object.
func (g *GraphAPI) PutLike(ctx context.Context, objectID string) (any, error) {
	return g.PutObject(ctx, objectID, "likes", nil)
}

// DeleteObject deletes an object. Requires a token with publish rights.
func (g *GraphAPI) DeleteObject(ctx context.Context, id string) (any, error) {
	return g.call(ctx, id, nil, types.VerbDelete, nil)
}

// DeleteConnections deletes a connection entry of an object, e.g. unliking
// via ("post-id", "likes", nil).
func (g *GraphAPI) DeleteConnections(ctx context.Context, id, connection string, params types.Params) (any, error) {
	return g.call(ctx, id+"/"+connection, params, types.VerbDelete, nil)
}

// Search runs a Graph search, optionally scoped by params such as "type".
func (g *GraphAPI) Search(ctx context.Context, query string, params types.Params) (any, error) {
	params = params.Clone()
	params["q"] = query
	return g.call(ctx, "search", params, types.VerbGet, nil)
}

// GetPicture resolves the picture URL of an object. The endpoint answers
// with a redirect, so the URL is read from the Location header instead of a
// JSON body.
func (g *GraphAPI) GetPicture(ctx context.Context, id string, params types.Params) (string, error) {
	body, err := g.call(ctx, id+"/picture", params, types.VerbGet, &types.RequestOptions{
		HTTPComponent: types.ComponentHeaders,
	})
	if err != nil {
		return "", err
	}

	headers, ok := body.(http.Header)
	if !ok {
		return "", &pkgerrs.ParseError{Operation: "get picture", Err: errUnexpectedShape}
	}
	return headers.Get("Location"), nil
}

func (g *GraphAPI) call(ctx context.Context, path string, params types.Params, verb types.Verb, opts *types.RequestOptions) (any, error) {
	if opts == nil {
		opts = &types.RequestOptions{}
	}
	if opts.ErrorCheck == nil {
		opts.ErrorCheck = checkGraphError
	}
	return g.caller.Call(ctx, path, params, verb, opts)
}

// checkGraphError detects the Graph error shape: a JSON object carrying an
// "error" member, which is itself structurally valid JSON.
func checkGraphError(body any) error {
	object, ok := body.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := object["error"]
	if !ok {
		return nil
	}

	apiErr := &pkgerrs.APIError{}
	if details, ok := raw.(map[string]any); ok {
		apiErr.Type, _ = details["type"].(string)
		apiErr.Message, _ = details["message"].(string)
		if code, ok := details["code"].(float64); ok {
			apiErr.Code = int(code)
		}
	}
	return apiErr
}
