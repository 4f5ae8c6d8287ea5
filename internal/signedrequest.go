package internal

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	pkgerrs "github.com/pulsd/koala/pkg/errors"
)

const (
	algorithmHMAC      = "HMAC-SHA256"
	algorithmEncrypted = "AES-256-CBC HMAC-SHA256"
)

// signedEnvelope is the decoded JSON envelope of a signed request. For the
// encrypted algorithm the cleartext fields live inside Payload; for the plain
// algorithm the envelope itself carries them (captured in Fields).
type signedEnvelope struct {
	Algorithm string  `json:"algorithm"`
	IssuedAt  float64 `json:"issued_at"`
	IV        string  `json:"iv"`
	Payload   string  `json:"payload"`
}

// ParseSignedRequest verifies and decodes a "signature.envelope" signed
// request using appSecret. Signature verification always happens before any
// decryption or field access. maxAge bounds the issued_at freshness of
// encrypted envelopes; plain HMAC envelopes carry no expiry.
func ParseSignedRequest(input, appSecret string, maxAge time.Duration, now time.Time) (map[string]any, error) {
	encodedSig, encodedEnvelope, found := strings.Cut(input, ".")
	if !found || encodedSig == "" || encodedEnvelope == "" {
		return nil, &pkgerrs.ArgumentError{Field: "signed_request", Message: "expected two dot-separated base64url segments"}
	}

	rawEnvelope, err := base64URLDecode(encodedEnvelope)
	if err != nil {
		return nil, &pkgerrs.ArgumentError{Field: "signed_request", Message: "envelope is not valid base64url"}
	}

	var envelope signedEnvelope
	if err := json.Unmarshal(rawEnvelope, &envelope); err != nil {
		return nil, &pkgerrs.ArgumentError{Field: "signed_request", Message: "envelope is not valid JSON"}
	}

	switch envelope.Algorithm {
	case algorithmHMAC:
	case algorithmEncrypted:
		if int64(envelope.IssuedAt) < now.Add(-maxAge).Unix() {
			return nil, &pkgerrs.SignatureError{Reason: "too old, issued at " + time.Unix(int64(envelope.IssuedAt), 0).UTC().Format(time.RFC3339)}
		}
	default:
		return nil, &pkgerrs.SignatureError{Reason: "unsupported algorithm " + envelope.Algorithm}
	}

	sig, err := base64URLDecode(encodedSig)
	if err != nil {
		return nil, &pkgerrs.ArgumentError{Field: "signed_request", Message: "signature is not valid base64url"}
	}

	// The signature covers the raw encoded envelope string, not its decoded
	// bytes. hmac.Equal keeps the comparison constant-time.
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write([]byte(encodedEnvelope))
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return nil, &pkgerrs.SignatureError{Reason: "invalid signature"}
	}

	if envelope.Algorithm == algorithmHMAC {
		var fields map[string]any
		if err := json.Unmarshal(rawEnvelope, &fields); err != nil {
			return nil, &pkgerrs.ArgumentError{Field: "signed_request", Message: "envelope is not a JSON object"}
		}
		return fields, nil
	}

	return decryptEnvelope(&envelope, appSecret)
}

// decryptEnvelope recovers the cleartext fields of an AES-256-CBC payload.
// The cipher applies no padding scheme: the ciphertext must already be
// block-aligned and trailing NUL/whitespace filler is stripped manually.
func decryptEnvelope(envelope *signedEnvelope, appSecret string) (map[string]any, error) {
	block, err := aes.NewCipher([]byte(appSecret))
	if err != nil {
		return nil, &pkgerrs.ArgumentError{Field: "app_secret", Message: "secret is not a valid AES-256 key: " + err.Error()}
	}

	iv, err := base64URLDecode(envelope.IV)
	if err != nil || len(iv) != aes.BlockSize {
		return nil, &pkgerrs.ArgumentError{Field: "signed_request", Message: "iv must be one base64url-encoded cipher block"}
	}

	ciphertext, err := base64URLDecode(envelope.Payload)
	if err != nil {
		return nil, &pkgerrs.ArgumentError{Field: "signed_request", Message: "payload is not valid base64url"}
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, &pkgerrs.ArgumentError{Field: "signed_request", Message: "payload is not block-aligned"}
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	plaintext = bytes.TrimFunc(plaintext, func(r rune) bool {
		return r == 0 || r == ' ' || r == '\t' || r == '\r' || r == '\n'
	})

	var fields map[string]any
	if err := json.Unmarshal(plaintext, &fields); err != nil {
		return nil, &pkgerrs.SignatureError{Reason: "decrypted payload is not valid JSON"}
	}
	return fields, nil
}

// base64URLDecode decodes base64url input that may arrive unpadded: - and _
// translate to + and /, then = padding is restored to a multiple of four.
func base64URLDecode(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, "-", "+")
	s = strings.ReplaceAll(s, "_", "/")
	if n := len(s) % 4; n != 0 {
		s += strings.Repeat("=", 4-n)
	}
	return base64.StdEncoding.DecodeString(s)
}
