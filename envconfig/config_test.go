package envconfig

import (
	"log/slog"
	"math"
	"testing"
	"time"
)

func TestHost(t *testing.T) {
	cases := map[string]struct {
		value  string
		expect string
	}{
		"empty":               {"", "127.0.0.1:11535"},
		"only address":        {"1.2.3.4", "1.2.3.4:11535"},
		"only port":           {":1234", ":1234"},
		"address and port":    {"1.2.3.4:1234", "1.2.3.4:1234"},
		"hostname":            {"example.com", "example.com:11535"},
		"hostname and port":   {"example.com:1234", "example.com:1234"},
		"zero port":           {":0", ":0"},
		"too large port":      {":66000", ":11535"},
		"too small port":      {":-1", ":11535"},
		"ipv6 localhost":      {"[::1]", "[::1]:11535"},
		"ipv6 world open":     {"[::]", "[::]:11535"},
		"ipv6 no brackets":    {"::1", "[::1]:11535"},
		"ipv6 + port":         {"[::1]:1337", "[::1]:1337"},
		"extra space":         {" 1.2.3.4 ", "1.2.3.4:11535"},
		"extra quotes":        {"\"1.2.3.4\"", "1.2.3.4:11535"},
		"http scheme":         {"http://1.2.3.4", "1.2.3.4:80"},
		"https scheme":        {"https://1.2.3.4", "1.2.3.4:443"},
		"https scheme + port": {"https://1.2.3.4:1234", "1.2.3.4:1234"},
	}

	for name, tt := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("LORA_INSPECTOR_HOST", tt.value)
			if host := Host(); host.Host != tt.expect {
				t.Errorf("Host() = %q, erwartet %q", host.Host, tt.expect)
			}
		})
	}
}

func TestLoadTimeout(t *testing.T) {
	cases := map[string]time.Duration{
		"":       30 * time.Second,
		"1s":     time.Second,
		"5":      5 * time.Second,
		"0":      time.Duration(math.MaxInt64),
		"-1":     time.Duration(math.MaxInt64),
		"banana": 30 * time.Second,
	}

	for value, expect := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv("LORA_INSPECTOR_LOAD_TIMEOUT", value)
			if got := LoadTimeout(); got != expect {
				t.Errorf("LoadTimeout() = %v, erwartet %v", got, expect)
			}
		})
	}
}

func TestProbeInterval(t *testing.T) {
	t.Setenv("LORA_INSPECTOR_PROBE_INTERVAL", "")
	if got := ProbeInterval(); got != 200*time.Millisecond {
		t.Errorf("ProbeInterval() = %v, erwartet 200ms", got)
	}

	t.Setenv("LORA_INSPECTOR_PROBE_INTERVAL", "50ms")
	if got := ProbeInterval(); got != 50*time.Millisecond {
		t.Errorf("ProbeInterval() = %v, erwartet 50ms", got)
	}

	t.Setenv("LORA_INSPECTOR_PROBE_INTERVAL", "-5s")
	if got := ProbeInterval(); got != 200*time.Millisecond {
		t.Errorf("ProbeInterval() = %v, erwartet 200ms bei negativem Wert", got)
	}
}

func TestMaxConcurrency(t *testing.T) {
	t.Setenv("LORA_INSPECTOR_MAX_CONCURRENCY", "3")
	if got := MaxConcurrency(); got != 3 {
		t.Errorf("MaxConcurrency() = %d, erwartet 3", got)
	}

	t.Setenv("LORA_INSPECTOR_MAX_CONCURRENCY", "0")
	if got := MaxConcurrency(); got != 1 {
		t.Errorf("MaxConcurrency() = %d, erwartet 1", got)
	}
}

func TestCache(t *testing.T) {
	t.Setenv("LORA_INSPECTOR_NOCACHE", "")
	t.Setenv("LORA_INSPECTOR_CACHE", "/tmp/norms.db")
	if got := Cache(); got != "/tmp/norms.db" {
		t.Errorf("Cache() = %q, erwartet /tmp/norms.db", got)
	}

	t.Setenv("LORA_INSPECTOR_NOCACHE", "1")
	if got := Cache(); got != "" {
		t.Errorf("Cache() = %q, erwartet leeren Pfad mit NOCACHE", got)
	}
}

func TestLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"false": slog.LevelInfo,
		"t":     slog.LevelDebug,
		"1":     slog.LevelDebug,
		"2":     slog.Level(-8),
	}

	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv("LORA_INSPECTOR_DEBUG", k)
			if i := LogLevel(); i != v {
				t.Errorf("LogLevel() = %v, erwartet %v", i, v)
			}
		})
	}
}
