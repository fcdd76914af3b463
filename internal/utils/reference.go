package utils

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewPaymentReference builds trip-<tripId>-<unixMillis>-<random>.
// The random part comes from a v4 uuid so concurrent calls within the same
// millisecond for the same trip still differ.
func NewPaymentReference(tripID string, now time.Time) string {
	rnd := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return "trip-" + SanitizeRefPart(tripID) + "-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + rnd
}

// SanitizeRefPart keeps references within the gateway's allowed charset
// (alphanumerics, '-', '.', '=').
func SanitizeRefPart(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.', r == '=':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "NA"
	}
	return b.String()
}
