package koala

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pulsd/koala/internal"
	pkgerrs "github.com/pulsd/koala/pkg/errors"
	"github.com/pulsd/koala/pkg/types"
)

// DefaultSignedRequestMaxAge bounds how old an encrypted signed request may
// be before it is rejected.
const DefaultSignedRequestMaxAge = time.Hour

// OAuthConfig holds the configuration for an OAuth client.
type OAuthConfig struct {
	// AppID and AppSecret identify the application. Required.
	AppID     string
	AppSecret string

	// RedirectURI is the default OAuth callback, used when a URL builder or
	// code exchange is not given an explicit one.
	RedirectURI string

	// SignedRequestMaxAge bounds the issued_at freshness of encrypted signed
	// requests. Defaults to DefaultSignedRequestMaxAge.
	SignedRequestMaxAge time.Duration

	// Transport performs the HTTP requests. Defaults to NewHTTPTransport(nil).
	Transport Transport

	// Logger for structured diagnostics. Optional.
	Logger *slog.Logger
}

// OAuth handles authorization URLs, token exchange, cookie-session
// verification, and signed-request parsing for one application. Token
// exchange funnels through the same dispatcher as regular API calls and
// always travels over HTTPS.
type OAuth struct {
	appID       string
	appSecret   string
	redirectURI string
	maxAge      time.Duration
	caller      Caller
}

// NewOAuth creates an OAuth client for the given application.
func NewOAuth(config *OAuthConfig) (*OAuth, error) {
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
	maxAge := config.SignedRequestMaxAge
	if maxAge <= 0 {
		maxAge = DefaultSignedRequestMaxAge
	}

	return &OAuth{
		appID:       config.AppID,
		appSecret:   config.AppSecret,
		redirectURI: config.RedirectURI,
		maxAge:      maxAge,
		caller:      internal.NewDispatcher(transport, "", "", config.Logger),
	}, nil
}

// OAuthURLOptions adjusts the URL builders.
type OAuthURLOptions struct {
	// Callback overrides the instance's default redirect URI.
	Callback string
	// Permissions lists the scopes to request on the authorization URL.
	Permissions []string
	// Display selects the dialog rendering, e.g. "popup".
	Display string
}

// URLForOAuthCode builds the authorization dialog URL the user is sent to in
// order to obtain an OAuth code.
func (o *OAuth) URLForOAuthCode(opts *OAuthURLOptions) (string, error) {
	if opts == nil {
		opts = &OAuthURLOptions{}
	}
	callback, err := o.callback(opts.Callback)
	if err != nil {
		return "", err
	}

	values := url.Values{}
	values.Set("client_id", o.appID)
	values.Set("redirect_uri", callback)
	if len(opts.Permissions) > 0 {
		values.Set("scope", strings.Join(opts.Permissions, ","))
	}
	if opts.Display != "" {
		values.Set("display", opts.Display)
	}

	return "https://" + DefaultGraphHost + "/oauth/authorize?" + values.Encode(), nil
}

// URLForAccessToken builds the URL that exchanges an OAuth code for an
// access token.
func (o *OAuth) URLForAccessToken(code string, opts *OAuthURLOptions) (string, error) {
	if opts == nil {
		opts = &OAuthURLOptions{}
	}
	callback, err := o.callback(opts.Callback)
	if err != nil {
		return "", err
	}

	values := url.Values{}
	values.Set("client_id", o.appID)
	values.Set("client_secret", o.appSecret)
	values.Set("redirect_uri", callback)
	values.Set("code", code)

	return "https://" + DefaultGraphHost + "/oauth/access_token?" + values.Encode(), nil
}

func (o *OAuth) callback(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if o.redirectURI != "" {
		return o.redirectURI, nil
	}
	return "", &pkgerrs.ArgumentError{Field: "callback", Message: "no callback URL given and no default redirect URI configured"}
}

// GetAccessTokenInfo exchanges an OAuth code for token info. The endpoint
// answers with form-encoded pairs rather than JSON; that wire format is
// preserved in the returned TokenInfo.
func (o *OAuth) GetAccessTokenInfo(ctx context.Context, code string) (types.TokenInfo, error) {
	if code == "" {
		return nil, &pkgerrs.ArgumentError{Field: "code", Message: "OAuth code is required"}
	}
	callback, err := o.callback("")
	if err != nil {
		return nil, err
	}

	body, err := o.fetchTokenString(ctx, types.Params{"code": code, "redirect_uri": callback}, false, "access_token")
	if err != nil {
		return nil, err
	}
	return parseTokenBody(body), nil
}

// GetAccessToken exchanges an OAuth code for the bare access token string.
func (o *OAuth) GetAccessToken(ctx context.Context, code string) (string, error) {
	info, err := o.GetAccessTokenInfo(ctx, code)
	if err != nil {
		return "", err
	}
	return info.AccessToken(), nil
}

// GetAppAccessTokenInfo fetches token info for the application itself, as
// opposed to a specific user.
func (o *OAuth) GetAppAccessTokenInfo(ctx context.Context) (types.TokenInfo, error) {
	body, err := o.fetchTokenString(ctx, types.Params{"type": "client_cred"}, true, "access_token")
	if err != nil {
		return nil, err
	}
	return parseTokenBody(body), nil
}

// GetAppAccessToken fetches the bare application access token string.
func (o *OAuth) GetAppAccessToken(ctx context.Context) (string, error) {
	info, err := o.GetAppAccessTokenInfo(ctx)
	if err != nil {
		return "", err
	}
	return info.AccessToken(), nil
}

// GetTokenInfoFromSessionKeys exchanges legacy session keys for token info
// records. The response is a JSON array aligned with the input: invalid keys
// yield nil entries.
func (o *OAuth) GetTokenInfoFromSessionKeys(ctx context.Context, sessionKeys []string) ([]types.TokenInfo, error) {
	params := types.Params{
		"type":     "client_cred",
		"sessions": strings.Join(sessionKeys, ","),
	}
	body, err := o.fetchTokenString(ctx, params, true, "exchange_sessions")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, &pkgerrs.EmptyResponseError{Operation: "exchange_sessions"}
	}

	var entries []map[string]any
	if err := json.Unmarshal([]byte(body), &entries); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "exchange_sessions", Err: err}
	}

	infos := make([]types.TokenInfo, len(entries))
	for i, entry := range entries {
		if entry == nil {
			continue
		}
		info := types.TokenInfo{}
		for key, value := range entry {
			info[key] = stringifyField(value)
		}
		infos[i] = info
	}
	return infos, nil
}

// GetTokensFromSessionKeys exchanges legacy session keys for bare token
// strings, preserving input order; invalid keys yield empty strings.
func (o *OAuth) GetTokensFromSessionKeys(ctx context.Context, sessionKeys []string) ([]string, error) {
	infos, err := o.GetTokenInfoFromSessionKeys(ctx, sessionKeys)
	if err != nil {
		return nil, err
	}

	tokens := make([]string, len(infos))
	for i, info := range infos {
		tokens[i] = info.AccessToken()
	}
	return tokens, nil
}

// ParseSignedRequest verifies and decodes a signed request using the app
// secret. See internal.ParseSignedRequest for the verification contract.
func (o *OAuth) ParseSignedRequest(input string) (map[string]any, error) {
	return internal.ParseSignedRequest(input, o.appSecret, o.maxAge, time.Now())
}

// GetUserInfoFromCookies verifies the application cookie session and returns
// its fields. ok is false when the cookie is missing, tampered, or expired;
// that is the normal "not logged in" state, not an error.
func (o *OAuth) GetUserInfoFromCookies(cookies map[string]string) (types.CookieSession, bool) {
	return internal.ParseCookieSession(cookies, o.appID, o.appSecret, time.Now())
}

// GetUserFromCookies returns the user id of the verified cookie session, or
// "" when no valid session is present.
func (o *OAuth) GetUserFromCookies(cookies map[string]string) string {
	session, ok := o.GetUserInfoFromCookies(cookies)
	if !ok {
		return ""
	}
	return session.UID()
}

// fetchTokenString is the single primitive behind all token exchange
// operations: an HTTPS request to /oauth/<endpoint> with the app credentials
// merged in, returning the raw response body.
func (o *OAuth) fetchTokenString(ctx context.Context, args types.Params, usePost bool, endpoint string) (string, error) {
	params := types.Params{
		"client_id":     o.appID,
		"client_secret": o.appSecret,
	}
	for key, value := range args {
		params[key] = value
	}

	verb := types.VerbGet
	if usePost {
		verb = types.VerbPost
	}

	result, err := o.caller.Call(ctx, "/oauth/"+endpoint, params, verb, &types.RequestOptions{
		UseSSL:        true,
		HTTPComponent: types.ComponentBody,
	})
	if err != nil {
		return "", err
	}

	body, _ := result.(string)
	if err := checkTokenError(body); err != nil {
		return "", err
	}
	return body, nil
}

// checkTokenError treats any body matching the generic error marker as an
// upstream failure, using the parsed error object when the body is JSON and
// an empty-details APIError otherwise.
func checkTokenError(body string) error {
	if !strings.Contains(body, "error") {
		return nil
	}

	var parsed struct {
		Error struct {
			Type    string  `json:"type"`
			Message string  `json:"message"`
			Code    float64 `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return &pkgerrs.APIError{}
	}
	return &pkgerrs.APIError{
		Type:    parsed.Error.Type,
		Message: parsed.Error.Message,
		Code:    int(parsed.Error.Code),
	}
}

// parseTokenBody decodes the access_token endpoint's form-encoded body,
// e.g. "access_token=AT&expires=5000".
func parseTokenBody(body string) types.TokenInfo {
	info := types.TokenInfo{}
	for _, pair := range strings.Split(strings.TrimSpace(body), "&") {
		if key, value, found := strings.Cut(pair, "="); found && key != "" {
			info[key] = value
		}
	}
	return info
}

func stringifyField(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}
