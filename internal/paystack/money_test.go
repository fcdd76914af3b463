package paystack

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestToMinor(t *testing.T) {
	cases := map[string]int64{
		"500":     50000,
		"1000":    100000,
		"0.01":    1,
		"12.345":  1235,
		"12.344":  1234,
		"199.999": 20000,
	}
	for in, want := range cases {
		if got := ToMinor(decimal.RequireFromString(in)); got != want {
			t.Fatalf("ToMinor(%s) = %d, want %d", in, got, want)
		}
	}
}

func TestFromMinorRoundTrip(t *testing.T) {
	for _, minor := range []int64{0, 1, 99, 50000, 100000, 123456789} {
		if got := ToMinor(FromMinor(minor)); got != minor {
			t.Fatalf("round trip of %d gave %d", minor, got)
		}
	}
	if !FromMinor(50000).Equal(decimal.NewFromInt(500)) {
		t.Fatalf("FromMinor(50000) = %s, want 500", FromMinor(50000))
	}
}
