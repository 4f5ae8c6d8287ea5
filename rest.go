package koala

import (
	"context"

	pkgerrs "github.com/pulsd/koala/pkg/errors"
	"github.com/pulsd/koala/pkg/types"
)

// RestAPI provides access to the legacy REST API. Like GraphAPI it is an
// endpoint module over a Caller; the REST flag routes requests to the legacy
// host.
type RestAPI struct {
	caller Caller
}

// NewRestAPI returns a REST endpoint module bound to the given caller.
func NewRestAPI(caller Caller) *RestAPI {
	return &RestAPI{caller: caller}
}

// RestCall invokes a legacy REST method, e.g. "fql.query". The json format
// flag is always set so responses parse uniformly with the rest of the
// client.
func (r *RestAPI) RestCall(ctx context.Context, method string, params types.Params) (any, error) {
	merged := params.Clone()
	merged["format"] = "json"

	return r.caller.Call(ctx, "method/"+method, merged, types.VerbGet, &types.RequestOptions{
		RestServer: true,
		ErrorCheck: checkRestError,
	})
}

// checkRestError detects the REST error shape: a JSON object carrying
// error_code and error_msg members with a 200 status.
func checkRestError(body any) error {
	object, ok := body.(map[string]any)
	if !ok {
		return nil
	}
	code, ok := object["error_code"].(float64)
	if !ok {
		return nil
	}

	message, _ := object["error_msg"].(string)
	return &pkgerrs.APIError{Code: int(code), Message: message}
}
