package badgerlog

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	type test struct {
		name    string
		expects Level
		fail    bool
	}

	var tests = []test{
		{"", WarningLevel, false},
		{"none", NoLogging, false},
		{"error", ErrorLevel, false},
		{"WARN", WarningLevel, false},
		{"warning", WarningLevel, false},
		{"info", InfoLevel, false},
		{"Debug", DebugLevel, false},
		{"trace", NoLogging, true},
	}

	for _, test := range tests {
		level, err := ParseLevel(test.name)
		if test.fail {
			if err == nil {
				t.Errorf("%q: expected error", test.name)
			}
			continue
		}

		if err != nil {
			t.Errorf("%q: unexpected error: %v", test.name, err)
			continue
		}

		if level != test.expects {
			t.Errorf("%q: expected level %d, got %d", test.name, test.expects, level)
		}
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(log.New(&buf, "", 0), WarningLevel)

	l.Errorf("disk %s\n", "full")
	l.Warningf("slow")
	l.Infof("opened")
	l.Debugf("seek")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	expects := []string{
		"badger: error: disk full",
		"badger: warning: slow",
	}

	if len(lines) != len(expects) {
		t.Fatalf("expected %d lines, got %d: %q", len(expects), len(lines), lines)
	}

	for i, line := range lines {
		if line != expects[i] {
			t.Errorf("line %d expected %q, got %q", i, expects[i], line)
		}
	}
}

func TestLoggerNone(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(log.New(&buf, "", 0), NoLogging)

	l.Errorf("disk full")

	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}
