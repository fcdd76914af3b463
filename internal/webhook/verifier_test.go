package webhook

import (
	"encoding/hex"
	"testing"
)

const testSecret = "sk_test_webhook"

var sampleBody = []byte(`{"event":"charge.success","data":{"reference":"trip-abc-170000-xyz","amount":50000,"metadata":{"tripId":"abc"}}}`)

func TestVerifyAcceptsGatewaySignature(t *testing.T) {
	sig := Sign(sampleBody, testSecret)
	if !Verify(sampleBody, sig, testSecret) {
		t.Fatalf("valid signature rejected")
	}
}

func TestVerifyRejectsEveryBodyBitFlip(t *testing.T) {
	sig := Sign(sampleBody, testSecret)
	for i := 0; i < len(sampleBody); i++ {
		for bit := 0; bit < 8; bit++ {
			mutated := append([]byte(nil), sampleBody...)
			mutated[i] ^= 1 << bit
			if Verify(mutated, sig, testSecret) {
				t.Fatalf("mutated body accepted (byte %d bit %d)", i, bit)
			}
		}
	}
}

func TestVerifyRejectsEverySignatureBitFlip(t *testing.T) {
	raw, _ := hex.DecodeString(Sign(sampleBody, testSecret))
	for i := 0; i < len(raw); i++ {
		for bit := 0; bit < 8; bit++ {
			mutated := append([]byte(nil), raw...)
			mutated[i] ^= 1 << bit
			if Verify(sampleBody, hex.EncodeToString(mutated), testSecret) {
				t.Fatalf("mutated signature accepted (byte %d bit %d)", i, bit)
			}
		}
	}
}

func TestVerifyFailsClosed(t *testing.T) {
	sig := Sign(sampleBody, testSecret)
	cases := []struct {
		name      string
		body      []byte
		signature string
		secret    string
	}{
		{"missing header", sampleBody, "", testSecret},
		{"missing secret", sampleBody, sig, ""},
		{"wrong secret", sampleBody, sig, "other"},
		{"not hex", sampleBody, "zz" + sig[2:], testSecret},
		{"truncated", sampleBody, sig[:64], testSecret},
	}
	for _, tc := range cases {
		if Verify(tc.body, tc.signature, tc.secret) {
			t.Fatalf("%s: expected rejection", tc.name)
		}
	}
}

func TestVerifyUsesRawBytes(t *testing.T) {
	reformatted := []byte(`{"event": "charge.success", "data": {"reference": "trip-abc-170000-xyz", "amount": 50000, "metadata": {"tripId": "abc"}}}`)
	if Verify(reformatted, Sign(sampleBody, testSecret), testSecret) {
		t.Fatalf("re-serialized body must not verify")
	}
}
