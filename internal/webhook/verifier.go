package webhook

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA512 of the raw request body.
const SignatureHeader = "x-paystack-signature"

// Verify checks signature against HMAC-SHA512(rawBody, secret). rawBody must be
// the exact bytes received; re-serialized JSON will not match. Any missing
// input fails closed.
func Verify(rawBody []byte, signature, secret string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" || secret == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil || len(got) != sha512.Size {
		return false
	}
	return hmac.Equal(got, mac(rawBody, secret))
}

// Sign returns the header value the gateway would send for rawBody.
func Sign(rawBody []byte, secret string) string {
	return hex.EncodeToString(mac(rawBody, secret))
}

func mac(body []byte, secret string) []byte {
	h := hmac.New(sha512.New, []byte(secret))
	h.Write(body)
	return h.Sum(nil)
}
