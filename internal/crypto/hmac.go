package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// DefaultRecvWindow is the request validity window in milliseconds the venue
// checks the signed timestamp against.
const DefaultRecvWindow int64 = 5000

// HMACAuth holds the API credentials for signed venue requests.
type HMACAuth struct {
	Key    string // API key
	Secret string // API secret
}

// RestHeaders returns the HTTP headers for a signed REST request. payload is
// the canonical query string for GET requests and the raw JSON body for
// POST. The signature is HMAC-SHA256(secret, timestamp+key+recvWindow+payload)
// encoded as lowercase hex.
//
// Returned header keys:
//   - X-BAPI-API-KEY
//   - X-BAPI-TIMESTAMP
//   - X-BAPI-RECV-WINDOW
//   - X-BAPI-SIGN
func (h *HMACAuth) RestHeaders(payload string, recvWindow int64) map[string]string {
	return h.RestHeadersAt(payload, recvWindow, time.Now().UnixMilli())
}

// RestHeadersAt is like RestHeaders but lets the caller supply the
// millisecond timestamp (useful for deterministic testing).
func (h *HMACAuth) RestHeadersAt(payload string, recvWindow, unixMs int64) map[string]string {
	if recvWindow <= 0 {
		recvWindow = DefaultRecvWindow
	}
	ts := strconv.FormatInt(unixMs, 10)
	rw := strconv.FormatInt(recvWindow, 10)

	sig := hmacSHA256Hex([]byte(h.Secret), ts+h.Key+rw+payload)

	return map[string]string{
		"X-BAPI-API-KEY":     h.Key,
		"X-BAPI-TIMESTAMP":   ts,
		"X-BAPI-RECV-WINDOW": rw,
		"X-BAPI-SIGN":        sig,
	}
}

// WSAuthArgs returns the args array for the private stream's auth frame:
// api key, expiry in Unix milliseconds, and
// HMAC-SHA256(secret, "GET/realtime"+expires) as lowercase hex.
func (h *HMACAuth) WSAuthArgs(ttl time.Duration) []any {
	return h.WSAuthArgsAt(time.Now().Add(ttl).UnixMilli())
}

// WSAuthArgsAt is like WSAuthArgs but lets the caller supply the expiry
// timestamp (useful for deterministic testing).
func (h *HMACAuth) WSAuthArgsAt(expiresMs int64) []any {
	exp := strconv.FormatInt(expiresMs, 10)
	sig := hmacSHA256Hex([]byte(h.Secret), "GET/realtime"+exp)
	return []any{h.Key, expiresMs, sig}
}

// hmacSHA256Hex computes HMAC-SHA256 of message using key and returns the
// result as a lowercase hex string.
func hmacSHA256Hex(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// String returns a redacted representation suitable for logging.
func (h *HMACAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", redact(h.Key), redact(h.Secret))
}
