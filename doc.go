// Package koala is a Go client for the Facebook Graph API and the legacy
// REST API.
//
// # Overview
//
// The library is organized around three cooperating pieces:
//
//   - A request dispatcher that normalizes paths, attaches access tokens,
//     classifies responses, and maps failures to typed errors.
//   - Credential verification for cookie sessions and signed requests,
//     including the AES-256-CBC encrypted signed-request variant.
//   - An OAuth client covering authorization URLs, code exchange, app
//     access tokens, and legacy session key exchange.
//
// # Features
//
//   - Explicit transport injection: construct with NewHTTPTransport or any
//     Transport implementation; nothing global is consulted
//   - Typed errors for transport failures, upstream API errors, signature
//     failures, and argument problems
//   - Client-side rate limiting with server throttle-hint handling
//   - Structured logging support via Go's slog package
//   - Realtime update subscription management and notification verification
//
// # Quick start
//
//	client, err := koala.NewClient(&koala.Config{
//		AccessToken: os.Getenv("FB_ACCESS_TOKEN"),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	me, err := client.GetObject(ctx, "me", nil)
//
// # Token exchange
//
//	oauth, err := koala.NewOAuth(&koala.OAuthConfig{
//		AppID:       appID,
//		AppSecret:   appSecret,
//		RedirectURI: "https://example.com/callback",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	token, err := oauth.GetAccessToken(ctx, code)
//
// # Signed requests and cookies
//
//	fields, err := oauth.ParseSignedRequest(signedRequest)
//	session, ok := oauth.GetUserInfoFromCookies(cookieMap)
//
// Signature verification always precedes decryption and field access, and
// all signature comparisons are constant-time.
//
// # Concurrency
//
// Clients hold no mutable state after construction and may be used from
// multiple goroutines without additional synchronization. Each call is one
// blocking request/response cycle; timeouts and cancellation arrive through
// the context and the injected transport.
package koala
