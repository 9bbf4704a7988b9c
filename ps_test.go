package gapline

import (
	"math"
	"testing"
	"time"
)

func TestProbeHost(t *testing.T) {
	before := time.Now()

	series, err := ProbeHost()
	if err != nil {
		t.Skip("cannot probe this host:", err)
	}

	if len(series) != len(HostInfos) {
		t.Fatalf("expected %d series, got %d", len(HostInfos), len(series))
	}

	var x time.Time

	for i, s := range series {
		if s.Info != HostInfos[i] {
			t.Errorf("series %d expected info %+v, got %+v", i, HostInfos[i], s.Info)
		}

		if len(s.Values) != 1 {
			t.Fatalf("series %q expected %d sample, got %d", s.Key, 1, len(s.Values))
		}

		sample := s.Values[0]
		if sample.IsGap() || math.IsInf(sample.Y, 0) {
			t.Errorf("series %q has an undefined sample %v", s.Key, sample.Y)
		}

		if sample.X.Before(before) {
			t.Errorf("series %q sample time %v is before the probe", s.Key, sample.X)
		}

		// All series share one timestamp.
		if i == 0 {
			x = sample.X
		} else if !sample.X.Equal(x) {
			t.Errorf("series %q sample time %v differs from %v", s.Key, sample.X, x)
		}
	}
}
