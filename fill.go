package gapline

import (
	"time"

	"github.com/pkg/errors"
)

// DefaultInterval is the measurement interval used when none is configured.
const DefaultInterval = 10 * time.Minute

// GapOffset is the distance between a gap marker and the real sample preceding
// it. It is the smallest step that survives the millisecond encoding.
const GapOffset = time.Millisecond

var (
	// ErrBadInterval is returned when the measurement interval is shorter
	// than GapOffset. A marker would otherwise land after the sample that ends
	// the gap.
	ErrBadInterval = errors.New("measurement interval must be at least 1ms")
	// ErrUnsorted is returned when samples are not in chronological order.
	ErrUnsorted = errors.New("samples must be sorted by time")
)

// FillGaps returns a new slice of samples with a gap marker inserted between
// every two consecutive real samples that are further apart than interval. The
// marker is placed GapOffset after the earlier sample. The first sample is
// always kept as-is.
//
// Pairs involving an existing gap marker are never split again, so filling an
// already filled slice returns the same samples.
func FillGaps(samples []Sample, interval time.Duration) ([]Sample, error) {
	if interval < GapOffset {
		return nil, ErrBadInterval
	}

	if err := checkSorted(samples); err != nil {
		return nil, err
	}

	if len(samples) == 0 {
		return []Sample{}, nil
	}

	filled := make([]Sample, 1, len(samples)+countGaps(samples, interval))
	filled[0] = samples[0]

	for i := 1; i < len(samples); i++ {
		prev := samples[i-1]
		curr := samples[i]

		if isGapBetween(prev, curr, interval) {
			filled = append(filled, GapAt(prev.X.Add(GapOffset)))
		}

		filled = append(filled, curr)
	}

	return filled, nil
}

// Gap describes a detected hole in a series.
type Gap struct {
	// From is the time of the last sample before the gap.
	From time.Time `json:"from"`
	// To is the time of the first sample after the gap.
	To time.Time `json:"to"`
}

// Duration returns the length of the gap.
func (g Gap) Duration() time.Duration { return g.To.Sub(g.From) }

// Gaps returns every gap that FillGaps would mark, in chronological order.
func Gaps(samples []Sample, interval time.Duration) ([]Gap, error) {
	if interval < GapOffset {
		return nil, ErrBadInterval
	}

	if err := checkSorted(samples); err != nil {
		return nil, err
	}

	var gaps []Gap

	for i := 1; i < len(samples); i++ {
		if isGapBetween(samples[i-1], samples[i], interval) {
			gaps = append(gaps, Gap{From: samples[i-1].X, To: samples[i].X})
		}
	}

	return gaps, nil
}

func isGapBetween(prev, curr Sample, interval time.Duration) bool {
	if prev.IsGap() || curr.IsGap() {
		return false
	}
	return curr.X.Sub(prev.X) > interval
}

func countGaps(samples []Sample, interval time.Duration) int {
	var n int
	for i := 1; i < len(samples); i++ {
		if isGapBetween(samples[i-1], samples[i], interval) {
			n++
		}
	}
	return n
}

func checkSorted(samples []Sample) error {
	for i := 1; i < len(samples); i++ {
		if samples[i].X.Before(samples[i-1].X) {
			return errors.Wrapf(ErrUnsorted,
				"sample %d (%s) is before sample %d (%s)",
				i, samples[i].X.Format(time.RFC3339Nano),
				i-1, samples[i-1].X.Format(time.RFC3339Nano),
			)
		}
	}
	return nil
}
