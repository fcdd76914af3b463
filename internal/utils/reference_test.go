package utils

import (
	"regexp"
	"sync"
	"testing"
	"time"
)

var refPattern = regexp.MustCompile(`^trip-abc-1700000000000-[0-9a-f]{8}$`)

func TestNewPaymentReferenceFormat(t *testing.T) {
	ref := NewPaymentReference("abc", time.UnixMilli(1700000000000))
	if !refPattern.MatchString(ref) {
		t.Fatalf("unexpected reference format: %s", ref)
	}
}

func TestNewPaymentReferenceUniqueUnderConcurrency(t *testing.T) {
	const n = 2000
	now := time.UnixMilli(1700000000000)

	var mu sync.Mutex
	seen := make(map[string]struct{}, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref := NewPaymentReference("abc", now)
			mu.Lock()
			seen[ref] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Fatalf("expected %d unique references, got %d", n, len(seen))
	}
}

func TestSanitizeRefPart(t *testing.T) {
	cases := map[string]string{
		"abc":       "abc",
		" a b/c ":   "a-b-c",
		"":          "NA",
		"id.1=2":    "id.1=2",
		"trip_9001": "trip-9001",
	}
	for in, want := range cases {
		if got := SanitizeRefPart(in); got != want {
			t.Fatalf("SanitizeRefPart(%q) = %q, want %q", in, got, want)
		}
	}
}
