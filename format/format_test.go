package format

import (
	"testing"
	"time"
)

func TestHumanBytes(t *testing.T) {
	cases := map[int64]string{
		0:             "0 B",
		999:           "999 B",
		1000:          "1 KB",
		1500:          "1.5 KB",
		151_000_000:   "151 MB",
		2_300_000_000: "2.3 GB",
	}

	for in, want := range cases {
		if got := HumanBytes(in); got != want {
			t.Errorf("HumanBytes(%d) = %q, erwartet %q", in, got, want)
		}
	}
}

func TestHumanTime(t *testing.T) {
	if got := HumanTime(time.Time{}, "Never"); got != "Never" {
		t.Errorf("Nullzeit: %q", got)
	}

	if got := HumanTime(time.Now().Add(-3*time.Minute), ""); got != "3 minutes ago" {
		t.Errorf("Unerwartet: %q", got)
	}

	if got := HumanTime(time.Now().Add(-61*time.Minute), ""); got != "1 hour ago" {
		t.Errorf("Unerwartet: %q", got)
	}
}
