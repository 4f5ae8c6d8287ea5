package koala

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pulsd/koala/pkg/types"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerMinute caps steady-state throughput. The Graph API
	// throttles per app and per user; this default stays well under both.
	DefaultRequestsPerMinute = 180
	// DefaultRateLimitBurst allows short spikes above the steady-state rate.
	DefaultRateLimitBurst = 10
	// usageCooldown is how long requests are deferred once the API reports
	// the app usage quota as exhausted.
	usageCooldown = time.Minute

	parseFloatBitSize = 64
)

// RateLimitConfig controls how requests are throttled before reaching the API.
type RateLimitConfig struct {
	// RequestsPerMinute caps steady-state throughput. Defaults to
	// DefaultRequestsPerMinute if zero.
	RequestsPerMinute float64
	// Burst allows short spikes above the steady-state rate. Defaults to
	// DefaultRateLimitBurst if zero.
	Burst int
}

// TransportConfig holds the configuration for the net/http transport.
type TransportConfig struct {
	// HTTPClient to use for requests. Defaults to a client with
	// DefaultTimeout that does not follow redirects, so that redirect
	// responses (e.g. picture endpoints) surface their Location header.
	HTTPClient *http.Client

	// GraphHost and RestHost override the API hosts. A bare host picks its
	// scheme per request (HTTPS when the call carries a token or asks for
	// SSL); a value with an explicit scheme, such as a test server URL, is
	// used as-is.
	GraphHost string
	RestHost  string

	// UserAgent string sent with every request.
	UserAgent string

	// RateLimit tunes client-side throttling.
	RateLimit *RateLimitConfig
}

// HTTPTransport is the net/http-backed Transport implementation. It applies
// client-side rate limiting and honors server throttle hints (Retry-After
// and the X-App-Usage header).
type HTTPTransport struct {
	client    *http.Client
	graphHost string
	restHost  string
	userAgent string

	limiter        *rate.Limiter
	mu             sync.Mutex
	forceWaitUntil time.Time
}

// NewHTTPTransport returns a transport configured from cfg. A nil cfg uses
// all defaults.
func NewHTTPTransport(cfg *TransportConfig) *HTTPTransport {
	if cfg == nil {
		cfg = &TransportConfig{}
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	graphHost := cfg.GraphHost
	if graphHost == "" {
		graphHost = DefaultGraphHost
	}
	restHost := cfg.RestHost
	if restHost == "" {
		restHost = DefaultRestHost
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	rateCfg := cfg.RateLimit
	if rateCfg == nil {
		rateCfg = &RateLimitConfig{}
	}

	return &HTTPTransport{
		client:    client,
		graphHost: graphHost,
		restHost:  restHost,
		userAgent: userAgent,
		limiter:   buildLimiter(*rateCfg),
	}
}

// Request performs one HTTP request. GET and DELETE parameters travel in the
// query string; POST parameters are form-encoded into the body.
func (t *HTTPTransport) Request(ctx context.Context, path string, params types.Params, verb types.Verb, opts *types.RequestOptions) (*types.Response, error) {
	if opts == nil {
		opts = &types.RequestOptions{}
	}

	if err := t.waitForRateLimit(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(t.baseURL(params, opts) + path)
	if err != nil {
		return nil, err
	}

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}

	var body io.Reader
	if verb == types.VerbPost {
		body = strings.NewReader(values.Encode())
	} else {
		u.RawQuery = values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, verb.Method(), u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", t.userAgent)
	if verb == types.VerbPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	t.applyRateHeaders(resp)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &types.Response{
		StatusCode: resp.StatusCode,
		Body:       string(raw),
		Headers:    resp.Header,
	}, nil
}

// baseURL picks the host and scheme for a request. Calls carrying an access
// token and OAuth calls always go over HTTPS.
func (t *HTTPTransport) baseURL(params types.Params, opts *types.RequestOptions) string {
	host := t.graphHost
	if opts.RestServer {
		host = t.restHost
	}
	if strings.Contains(host, "://") {
		return host
	}

	scheme := "http"
	if opts.UseSSL || params["access_token"] != "" {
		scheme = "https"
	}
	return scheme + "://" + host
}

func buildLimiter(cfg RateLimitConfig) *rate.Limiter {
	requestsPerMinute := cfg.RequestsPerMinute
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultRateLimitBurst
	}

	limitPerSecond := rate.Limit(requestsPerMinute / 60.0)
	if limitPerSecond <= 0 {
		limitPerSecond = rate.Limit(1)
	}

	return rate.NewLimiter(limitPerSecond, burst)
}

func (t *HTTPTransport) waitForRateLimit(ctx context.Context) error {
	if err := t.waitForForcedDelay(ctx); err != nil {
		return err
	}

	if t.limiter == nil {
		return nil
	}

	return t.limiter.Wait(ctx)
}

func (t *HTTPTransport) waitForForcedDelay(ctx context.Context) error {
	for {
		t.mu.Lock()
		waitUntil := t.forceWaitUntil
		t.mu.Unlock()

		if waitUntil.IsZero() {
			return nil
		}

		now := time.Now()
		if !now.Before(waitUntil) {
			t.clearForcedDelay(waitUntil)
			return nil
		}

		timer := time.NewTimer(waitUntil.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			t.clearForcedDelay(waitUntil)
		}
	}
}

func (t *HTTPTransport) clearForcedDelay(previous time.Time) {
	t.mu.Lock()
	if previous.Equal(t.forceWaitUntil) {
		t.forceWaitUntil = time.Time{}
	}
	t.mu.Unlock()
}

// applyRateHeaders inspects throttle hints on the response. Retry-After
// defers all requests for the given interval; an X-App-Usage call_count at or
// above 100% defers for usageCooldown.
func (t *HTTPTransport) applyRateHeaders(resp *http.Response) {
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.ParseFloat(retryAfter, parseFloatBitSize); err == nil && seconds > 0 {
			t.deferRequests(time.Duration(seconds * float64(time.Second)))
		}
	}

	usageHeader := resp.Header.Get("X-App-Usage")
	if usageHeader == "" {
		return
	}

	var usage struct {
		CallCount float64 `json:"call_count"`
	}
	if err := json.Unmarshal([]byte(usageHeader), &usage); err != nil {
		return
	}

	if usage.CallCount >= 100 {
		t.deferRequests(usageCooldown)
	}
}

func (t *HTTPTransport) deferRequests(d time.Duration) {
	if d <= 0 {
		return
	}

	until := time.Now().Add(d)

	t.mu.Lock()
	if until.After(t.forceWaitUntil) {
		t.forceWaitUntil = until
	}
	t.mu.Unlock()
}
