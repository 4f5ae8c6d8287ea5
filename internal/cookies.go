package internal

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pulsd/koala/pkg/types"
)

// ParseCookieSession verifies the application cookie "fbs_<appID>" from the
// given cookie map and returns the session fields it carries. A missing
// cookie, a bad signature, or an expired session all report ok=false rather
// than an error: an absent session is the normal "not logged in" state.
func ParseCookieSession(cookies map[string]string, appID, appSecret string, now time.Time) (types.CookieSession, bool) {
	raw, ok := cookies["fbs_"+appID]
	if !ok {
		return nil, false
	}

	session := types.CookieSession{}
	for _, pair := range strings.Split(strings.Trim(raw, `"`), "&") {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, false
		}
		session[key] = value
	}

	if !validCookieSignature(session, appSecret) {
		return nil, false
	}

	expires := session["expires"]
	if expires != "0" {
		n, err := strconv.ParseInt(expires, 10, 64)
		if err != nil || !now.Before(time.Unix(n, 0)) {
			return nil, false
		}
	}

	return session, true
}

// validCookieSignature recomputes the session signature: every field except
// "sig", sorted by key, concatenated as "key=value" pairs with no separator,
// with the app secret appended, MD5-hashed and hex-encoded.
func validCookieSignature(session types.CookieSession, appSecret string) bool {
	keys := make([]string, 0, len(session))
	for key := range session {
		if key != "sig" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var payload strings.Builder
	for _, key := range keys {
		payload.WriteString(key)
		payload.WriteString("=")
		payload.WriteString(session[key])
	}
	payload.WriteString(appSecret)

	sum := md5.Sum([]byte(payload.String()))
	return hex.EncodeToString(sum[:]) == session["sig"]
}
