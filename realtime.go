package koala

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/pulsd/koala/internal"
	pkgerrs "github.com/pulsd/koala/pkg/errors"
	"github.com/pulsd/koala/pkg/types"
)

// RealtimeUpdates manages realtime update subscriptions for an application
// and verifies the update notifications the service delivers. Subscription
// management calls authenticate with the app access token.
type RealtimeUpdates struct {
	appID     string
	appSecret string
	caller    Caller
}

// NewRealtimeUpdates creates a realtime updates client. AppID and AppSecret
// are required; AppAccessToken is required for the subscription management
// calls (MeetChallenge and ValidateUpdate work without it).
func NewRealtimeUpdates(config *Config) (*RealtimeUpdates, error) {
	if config == nil {
		return nil, &pkgerrs.ConfigError{Message: "config cannot be nil"}
	}
	if config.AppID == "" || config.AppSecret == "" {
		return nil, &pkgerrs.ConfigError{Field: "AppID/AppSecret", Message: "app id and app secret are required"}
	}

	transport := config.Transport
	if transport == nil {
		transport = NewHTTPTransport(nil)
	}

	return &RealtimeUpdates{
		appID:     config.AppID,
		appSecret: config.AppSecret,
		caller:    internal.NewDispatcher(transport, "", config.AppAccessToken, config.Logger),
	}, nil
}

// Subscribe registers a callback URL for updates to the given fields of an
// object type, e.g. ("user", "name,picture", url, token).
func (r *RealtimeUpdates) Subscribe(ctx context.Context, object, fields, callbackURL, verifyToken string) error {
	params := types.Params{
		"object":       object,
		"fields":       fields,
		"callback_url": callbackURL,
	}
	if verifyToken != "" {
		params["verify_token"] = verifyToken
	}

	_, err := r.caller.Call(ctx, r.subscriptionPath(), params, types.VerbPost, &types.RequestOptions{
		UseSSL:     true,
		ErrorCheck: checkGraphError,
	})
	return err
}

// ListSubscriptions fetches the application's active subscriptions.
func (r *RealtimeUpdates) ListSubscriptions(ctx context.Context) (any, error) {
	return r.caller.Call(ctx, r.subscriptionPath(), nil, types.VerbGet, &types.RequestOptions{
		UseSSL:     true,
		ErrorCheck: checkGraphError,
	})
}

// Unsubscribe removes the subscription for an object type, or every
// subscription when object is empty.
func (r *RealtimeUpdates) Unsubscribe(ctx context.Context, object string) error {
	params := types.Params{}
	if object != "" {
		params["object"] = object
	}

	_, err := r.caller.Call(ctx, r.subscriptionPath(), params, types.VerbDelete, &types.RequestOptions{
		UseSSL:     true,
		ErrorCheck: checkGraphError,
	})
	return err
}

func (r *RealtimeUpdates) subscriptionPath() string {
	return "/" + r.appID + "/subscriptions"
}

// ValidateUpdate verifies the X-Hub-Signature header of an update
// notification against the raw request body. The signature is an HMAC-SHA1
// of the body keyed by the app secret, prefixed with "sha1=".
func (r *RealtimeUpdates) ValidateUpdate(body []byte, headers http.Header) bool {
	signature := headers.Get("X-Hub-Signature")
	hexDigest, found := strings.CutPrefix(signature, "sha1=")
	if !found {
		return false
	}

	provided, err := hex.DecodeString(hexDigest)
	if err != nil {
		return false
	}

	mac := hmac.New(sha1.New, []byte(r.appSecret))
	mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}

// MeetChallenge answers the subscription verification handshake: when the
// query parameters describe a subscribe challenge with the expected verify
// token, it returns the challenge string to echo back. A request without a
// challenge fails the handshake so callers never echo an empty body.
func MeetChallenge(params map[string]string, verifyToken string) (string, bool) {
	if params["hub.mode"] != "subscribe" {
		return "", false
	}
	if verifyToken != "" && params["hub.verify_token"] != verifyToken {
		return "", false
	}
	challenge := params["hub.challenge"]
	if challenge == "" {
		return "", false
	}
	return challenge, true
}
