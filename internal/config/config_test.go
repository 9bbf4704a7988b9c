package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"git.unix.lgbt/diamondburned/gapline"
)

const testConfig = `
interval: 1m
retention: 168h
log_level: info
series:
  - key: cpu
    full_name: Processor
    unit: "%"
    order: 3
  - key: backup
    interval: 24h
    color: "#ff0000"
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(testConfig))
	if err != nil {
		t.Fatal("failed to parse:", err)
	}

	if c.Interval != time.Minute {
		t.Errorf("expected interval %v, got %v", time.Minute, c.Interval)
	}

	if c.Retention != 7*24*time.Hour {
		t.Errorf("expected retention %v, got %v", 7*24*time.Hour, c.Retention)
	}

	type test struct {
		key     string
		expects time.Duration
	}

	var tests = []test{
		{"cpu", time.Minute}, // inherited
		{"backup", 24 * time.Hour},
		{"unknown", time.Minute},
	}

	for _, test := range tests {
		if got := c.IntervalOf(test.key); got != test.expects {
			t.Errorf("%s: expected interval %v, got %v", test.key, test.expects, got)
		}
	}
}

func TestDefault(t *testing.T) {
	c := Default()

	if c.Interval != gapline.DefaultInterval {
		t.Errorf("expected interval %v, got %v", gapline.DefaultInterval, c.Interval)
	}

	if c.Retention != DefaultRetention {
		t.Errorf("expected retention %v, got %v", DefaultRetention, c.Retention)
	}

	if got := c.IntervalOf("cpu"); got != gapline.DefaultInterval {
		t.Errorf("expected interval %v, got %v", gapline.DefaultInterval, got)
	}

	info := gapline.Info{Key: "cpu", FullName: "CPU"}
	if got := c.Apply(info); got != info {
		t.Errorf("expected info to be unchanged, got %+v", got)
	}
}

func TestApply(t *testing.T) {
	c, err := Parse([]byte(testConfig))
	if err != nil {
		t.Fatal("failed to parse:", err)
	}

	info := gapline.Info{Key: "cpu", FullName: "CPU usage", Unit: "percent", Order: 1, Color: "#EAB839"}

	expects := gapline.Info{Key: "cpu", FullName: "Processor", Unit: "%", Order: 3, Color: "#EAB839"}
	if got := c.Apply(info); got != expects {
		t.Fatalf("expected %+v, got %+v", expects, got)
	}
}

func TestValidate(t *testing.T) {
	type test struct {
		name   string
		input  string
		errStr string
	}

	var tests = []test{
		{"negative_interval", "interval: -1m", "interval"},
		{"negative_retention", "retention: -1h", "retention"},
		{"bad_log_level", "log_level: loud", "log level"},
		{"missing_key", "series:\n  - unit: '%'", "key is required"},
		{"duplicate_key", "series:\n  - key: cpu\n  - key: cpu", "duplicate"},
		{"negative_series_interval", "series:\n  - key: cpu\n    interval: -1s", "interval"},
		{"sub_millisecond_interval", "interval: 500us", "at least"},
		{"sub_millisecond_series_interval", "series:\n  - key: cpu\n    interval: 500us", "at least"},
		{"bad_yaml", "interval: [", "parse"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse([]byte(test.input))
			if err == nil {
				t.Fatal("expected error")
			}

			if !strings.Contains(err.Error(), test.errStr) {
				t.Fatalf("expected error containing %q, got %q", test.errStr, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gapline.yml")

	if err := os.WriteFile(path, []byte(testConfig), 0644); err != nil {
		t.Fatal("failed to write config:", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatal("failed to load:", err)
	}

	if len(c.Series) != 2 {
		t.Fatalf("expected %d series, got %d", 2, len(c.Series))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatal("expected error loading a missing file")
	}
}

func TestLogger(t *testing.T) {
	c, err := Parse([]byte(testConfig))
	if err != nil {
		t.Fatal("failed to parse:", err)
	}

	if c.Logger() == nil {
		t.Fatal("expected a logger")
	}
}

func TestLoadOrDefault(t *testing.T) {
	c, err := LoadOrDefault("")
	if err != nil {
		t.Fatal("unexpected error:", err)
	}

	if c.Interval != gapline.DefaultInterval {
		t.Fatalf("expected interval %v, got %v", gapline.DefaultInterval, c.Interval)
	}

	if _, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatal("expected error loading a missing file")
	}
}
