package koala

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrs "github.com/pulsd/koala/pkg/errors"
	"github.com/pulsd/koala/pkg/types"
)

const (
	testAppID     = "123"
	testAppSecret = "app-secret"
	testCallback  = "https://example.com/callback"
)

func newTestOAuth(t *testing.T, transport Transport) *OAuth {
	t.Helper()

	oauth, err := NewOAuth(&OAuthConfig{
		AppID:       testAppID,
		AppSecret:   testAppSecret,
		RedirectURI: testCallback,
		Transport:   transport,
	})
	require.NoError(t, err)
	return oauth
}

func TestNewOAuthValidation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		config *OAuthConfig
	}{
		{name: "nil config", config: nil},
		{name: "missing app id", config: &OAuthConfig{AppSecret: "s"}},
		{name: "missing app secret", config: &OAuthConfig{AppID: "1"}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewOAuth(tc.config)

			var cfgErr *pkgerrs.ConfigError
			require.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestGetAccessTokenInfo(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{resp: jsonResponse("access_token=AT&expires=5000")}
	oauth := newTestOAuth(t, transport)

	info, err := oauth.GetAccessTokenInfo(context.Background(), "the-code")
	require.NoError(t, err)

	assert.Equal(t, "/oauth/access_token", transport.lastPath)
	assert.Equal(t, types.VerbGet, transport.lastVerb)
	assert.Equal(t, testAppID, transport.lastParams["client_id"])
	assert.Equal(t, testAppSecret, transport.lastParams["client_secret"])
	assert.Equal(t, "the-code", transport.lastParams["code"])
	assert.Equal(t, testCallback, transport.lastParams["redirect_uri"])
	require.NotNil(t, transport.lastOpts)
	assert.True(t, transport.lastOpts.UseSSL, "token exchange must go over a secure transport")
	assert.Equal(t, types.ComponentBody, transport.lastOpts.HTTPComponent)

	// The access_token endpoint answers form-encoded pairs, not JSON.
	assert.Equal(t, "AT", info.AccessToken())
	assert.Equal(t, int64(5000), info.Expires())
}

func TestGetAccessToken(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{resp: jsonResponse("access_token=AT&expires=5000")}
	oauth := newTestOAuth(t, transport)

	token, err := oauth.GetAccessToken(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "AT", token)
}

func TestGetAccessTokenInfoRequiresCode(t *testing.T) {
	t.Parallel()

	oauth := newTestOAuth(t, &fakeTransport{resp: jsonResponse("")})

	_, err := oauth.GetAccessTokenInfo(context.Background(), "")

	var argErr *pkgerrs.ArgumentError
	require.ErrorAs(t, err, &argErr)
}

func TestGetAccessTokenInfoRequiresCallback(t *testing.T) {
	t.Parallel()

	oauth, err := NewOAuth(&OAuthConfig{
		AppID:     testAppID,
		AppSecret: testAppSecret,
		Transport: &fakeTransport{resp: jsonResponse("")},
	})
	require.NoError(t, err)

	_, err = oauth.GetAccessTokenInfo(context.Background(), "the-code")

	var argErr *pkgerrs.ArgumentError
	require.ErrorAs(t, err, &argErr)
}

func TestGetAppAccessTokenInfo(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{resp: jsonResponse("access_token=123|app-token")}
	oauth := newTestOAuth(t, transport)

	info, err := oauth.GetAppAccessTokenInfo(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/oauth/access_token", transport.lastPath)
	assert.Equal(t, types.VerbPost, transport.lastVerb)
	assert.Equal(t, "client_cred", transport.lastParams["type"])
	assert.Equal(t, "123|app-token", info.AccessToken())
}

func TestTokenExchangeUpstreamError(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		body        string
		wantType    string
		wantMessage string
	}{
		{
			name:        "parseable error",
			body:        `{"error":{"type":"OAuthException","message":"Code was invalid","code":100}}`,
			wantType:    "OAuthException",
			wantMessage: "Code was invalid",
		},
		{
			name: "unparseable error marker",
			body: "error=bad_request",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			transport := &fakeTransport{resp: &types.Response{StatusCode: 400, Body: tc.body}}
			oauth := newTestOAuth(t, transport)

			_, err := oauth.GetAccessTokenInfo(context.Background(), "bad-code")

			var apiErr *pkgerrs.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.wantType, apiErr.Type)
			assert.Equal(t, tc.wantMessage, apiErr.Message)
		})
	}
}

func TestGetTokenInfoFromSessionKeys(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{resp: jsonResponse(
		`[{"access_token":"t1","expires":1281049200},null,{"access_token":"t3"}]`,
	)}
	oauth := newTestOAuth(t, transport)

	infos, err := oauth.GetTokenInfoFromSessionKeys(context.Background(), []string{"k1", "k2", "k3"})
	require.NoError(t, err)

	assert.Equal(t, "/oauth/exchange_sessions", transport.lastPath)
	assert.Equal(t, types.VerbPost, transport.lastVerb)
	assert.Equal(t, "client_cred", transport.lastParams["type"])
	assert.Equal(t, "k1,k2,k3", transport.lastParams["sessions"])

	require.Len(t, infos, 3)
	assert.Equal(t, "t1", infos[0].AccessToken())
	assert.Equal(t, int64(1281049200), infos[0].Expires())
	assert.Nil(t, infos[1])
	assert.Equal(t, "t3", infos[2].AccessToken())
}

func TestGetTokensFromSessionKeysPreservesOrder(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{resp: jsonResponse(`[{"access_token":"t1"},null]`)}
	oauth := newTestOAuth(t, transport)

	tokens, err := oauth.GetTokensFromSessionKeys(context.Background(), []string{"k1", "k2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", ""}, tokens)
}

func TestGetTokenInfoFromSessionKeysEmptyBody(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{resp: jsonResponse("")}
	oauth := newTestOAuth(t, transport)

	_, err := oauth.GetTokenInfoFromSessionKeys(context.Background(), []string{"k1"})

	var emptyErr *pkgerrs.EmptyResponseError
	require.ErrorAs(t, err, &emptyErr)
	assert.Equal(t, "exchange_sessions", emptyErr.Operation)
}

func TestURLForOAuthCode(t *testing.T) {
	t.Parallel()

	oauth := newTestOAuth(t, &fakeTransport{})

	raw, err := oauth.URLForOAuthCode(&OAuthURLOptions{Permissions: []string{"email", "read_stream"}})
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "https", parsed.Scheme)
	assert.Equal(t, DefaultGraphHost, parsed.Host)
	assert.Equal(t, "/oauth/authorize", parsed.Path)
	assert.Equal(t, testAppID, parsed.Query().Get("client_id"))
	assert.Equal(t, testCallback, parsed.Query().Get("redirect_uri"))
	assert.Equal(t, "email,read_stream", parsed.Query().Get("scope"))
}

func TestURLForOAuthCodeExplicitCallback(t *testing.T) {
	t.Parallel()

	oauth := newTestOAuth(t, &fakeTransport{})

	raw, err := oauth.URLForOAuthCode(&OAuthURLOptions{Callback: "https://other.example.com/cb"})
	require.NoError(t, err)
	assert.Contains(t, raw, url.QueryEscape("https://other.example.com/cb"))
}

func TestURLBuildersRequireCallback(t *testing.T) {
	t.Parallel()

	oauth, err := NewOAuth(&OAuthConfig{
		AppID:     testAppID,
		AppSecret: testAppSecret,
		Transport: &fakeTransport{},
	})
	require.NoError(t, err)

	_, err = oauth.URLForOAuthCode(nil)
	var argErr *pkgerrs.ArgumentError
	require.ErrorAs(t, err, &argErr)

	_, err = oauth.URLForAccessToken("the-code", nil)
	require.ErrorAs(t, err, &argErr)
}

func TestURLForAccessToken(t *testing.T) {
	t.Parallel()

	oauth := newTestOAuth(t, &fakeTransport{})

	raw, err := oauth.URLForAccessToken("the-code", nil)
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/oauth/access_token", parsed.Path)
	assert.Equal(t, "the-code", parsed.Query().Get("code"))
	assert.Equal(t, testAppSecret, parsed.Query().Get("client_secret"))
	assert.Equal(t, testCallback, parsed.Query().Get("redirect_uri"))
}

func TestParseSignedRequestThroughOAuth(t *testing.T) {
	t.Parallel()

	// End-to-end through the public surface; the verification details are
	// covered by the internal package tests.
	secret := strings.Repeat("s", 32)
	oauth, err := NewOAuth(&OAuthConfig{
		AppID:     testAppID,
		AppSecret: secret,
		Transport: &fakeTransport{},
	})
	require.NoError(t, err)

	_, err = oauth.ParseSignedRequest("bogus.payload")
	require.Error(t, err)
}

// cookieSig computes the MD5 session signature over the sorted non-sig
// fields with the test app secret appended.
func cookieSig(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var payload strings.Builder
	for _, key := range keys {
		payload.WriteString(key + "=" + fields[key])
	}
	payload.WriteString(testAppSecret)

	sum := md5.Sum([]byte(payload.String()))
	return hex.EncodeToString(sum[:])
}

func TestGetUserFromCookies(t *testing.T) {
	t.Parallel()

	oauth := newTestOAuth(t, &fakeTransport{})

	// Signature computed over "expires=0uid=77" + secret.
	uid := oauth.GetUserFromCookies(map[string]string{
		"fbs_" + testAppID: `"uid=77&expires=0&sig=` + cookieSig(map[string]string{"uid": "77", "expires": "0"}) + `"`,
	})
	assert.Equal(t, "77", uid)

	assert.Empty(t, oauth.GetUserFromCookies(map[string]string{}))
}
