package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "yesterday", "-5"} {
		if _, ok := ParseTime(s); ok {
			t.Errorf("%q: expected not ok", s)
		}
	}
}

func TestTimeframeDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"15m":   15 * time.Minute,
		"30m":   30 * time.Minute,
		"1h":    time.Hour,
		"4h":    4 * time.Hour,
		"1d":    24 * time.Hour,
		"bogus": time.Hour,
	}
	for tf, want := range cases {
		if got := TimeframeDuration(tf); got != want {
			t.Errorf("%s: expected %v, got %v", tf, want, got)
		}
	}
}
