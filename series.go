package gapline

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// NaN is the value carried by gap markers.
var NaN = math.NaN()

// DateFormat is the layout used to label sample times in reports. It uses a
// 12-hour clock so that the AM/PM suffix agrees with the hour.
const DateFormat = "2006-01-02 03:04 PM"

// ErrNotFound is returned when a series cannot be found.
var ErrNotFound = errors.New("series not found")

// Sample is a single timestamped measurement. A sample whose Y is NaN is a gap
// marker; it is encoded as a null y in JSON.
type Sample struct {
	X time.Time
	Y float64
}

// GapAt returns a gap marker at the given time.
func GapAt(t time.Time) Sample {
	return Sample{X: t, Y: NaN}
}

// IsGap returns true if the sample is a gap marker.
func (s Sample) IsGap() bool { return math.IsNaN(s.Y) }

type sampleJSON struct {
	X int64    `json:"x"`
	Y *float64 `json:"y"`
}

// MarshalJSON encodes the sample with x in Unix milliseconds.
func (s Sample) MarshalJSON() ([]byte, error) {
	v := sampleJSON{X: s.X.UnixMilli()}
	if !s.IsGap() {
		y := s.Y
		v.Y = &y
	}
	return json.Marshal(v)
}

// UnmarshalJSON decodes a sample. x may be either an ISO-8601 string or a
// number of Unix milliseconds. y may be a number or null.
func (s *Sample) UnmarshalJSON(b []byte) error {
	var raw struct {
		X json.RawMessage `json:"x"`
		Y json.RawMessage `json:"y"`
	}

	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	if len(raw.X) == 0 || bytes.Equal(raw.X, []byte("null")) {
		return errors.New("sample is missing x")
	}
	if len(raw.Y) == 0 {
		return errors.New("sample is missing y")
	}

	t, err := parseTimestamp(raw.X)
	if err != nil {
		return errors.Wrapf(err, "invalid x %s", raw.X)
	}

	y := NaN
	if !bytes.Equal(raw.Y, []byte("null")) {
		if err := json.Unmarshal(raw.Y, &y); err != nil {
			return errors.Wrapf(err, "invalid y %s", raw.Y)
		}
	}

	*s = Sample{X: t, Y: y}
	return nil
}

// timeLayouts are the layouts accepted for string timestamps. Layouts without
// a zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if raw[0] != '"' {
		var ms float64
		if err := json.Unmarshal(raw, &ms); err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(int64(ms)), nil
	}

	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return time.Time{}, err
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, str); err == nil {
			return t, nil
		}
	}

	return time.Time{}, errors.New("unknown time format")
}

// Info is the metadata of a series.
type Info struct {
	Key      string `json:"key"`
	FullName string `json:"fullName"`
	Unit     string `json:"unit"`
	Order    int    `json:"order"`
	Color    string `json:"color"`
}

// Series is an ordered list of samples along with its metadata. Methods on
// Series never modify the receiver's samples.
type Series struct {
	Info
	Values []Sample `json:"values"`
}

// UnmarshalJSON decodes a series. The order field may be given either as a
// number or as a numeric string.
func (s *Series) UnmarshalJSON(b []byte) error {
	var raw struct {
		Key      string          `json:"key"`
		FullName string          `json:"fullName"`
		Unit     string          `json:"unit"`
		Order    json.RawMessage `json:"order"`
		Color    string          `json:"color"`
		Values   []Sample        `json:"values"`
	}

	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	order, err := parseOrder(raw.Order)
	if err != nil {
		return errors.Wrapf(err, "series %q has invalid order", raw.Key)
	}

	*s = Series{
		Info: Info{
			Key:      raw.Key,
			FullName: raw.FullName,
			Unit:     raw.Unit,
			Order:    order,
			Color:    raw.Color,
		},
		Values: raw.Values,
	}

	return nil
}

func parseOrder(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}

	if raw[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, err
		}
		str = strings.TrimSpace(str)
		if str == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return 0, err
		}
		return int(f), nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	return int(f), nil
}

// Fill returns a copy of the series with gap markers inserted. See FillGaps.
func (s Series) Fill(interval time.Duration) (Series, error) {
	values, err := FillGaps(s.Values, interval)
	if err != nil {
		return Series{}, errors.Wrapf(err, "series %q", s.Key)
	}

	s.Values = values
	return s, nil
}

// Defined returns a copy of the series without gap markers.
func (s Series) Defined() Series {
	values := make([]Sample, 0, len(s.Values))
	for _, sample := range s.Values {
		if !sample.IsGap() {
			values = append(values, sample)
		}
	}

	s.Values = values
	return s
}

// Domain describes the value ranges of a series: the time extent on X and
// [0, max] on Y.
type Domain struct {
	From time.Time
	To   time.Time
	Max  float64
}

// MarshalJSON encodes the domain as {"x": [from, to], "y": [0, max]} with
// times in Unix milliseconds.
func (d Domain) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		X [2]int64   `json:"x"`
		Y [2]float64 `json:"y"`
	}{
		X: [2]int64{d.From.UnixMilli(), d.To.UnixMilli()},
		Y: [2]float64{0, d.Max},
	})
}

// Domain calculates the domain of the series, skipping gap markers. False is
// returned if the series has no real samples.
func (s Series) Domain() (Domain, bool) {
	var d Domain
	var ok bool

	for _, sample := range s.Values {
		if sample.IsGap() {
			continue
		}

		if !ok {
			d = Domain{From: sample.X, To: sample.X, Max: sample.Y}
			ok = true
			continue
		}

		if sample.X.Before(d.From) {
			d.From = sample.X
		}
		if sample.X.After(d.To) {
			d.To = sample.X
		}
		if sample.Y > d.Max {
			d.Max = sample.Y
		}
	}

	return d, ok
}

// Last returns the latest real sample of the series.
func (s Series) Last() (Sample, bool) {
	for i := len(s.Values) - 1; i >= 0; i-- {
		if !s.Values[i].IsGap() {
			return s.Values[i], true
		}
	}
	return Sample{}, false
}

// Document is a list of series as served to and read from chart front-ends.
type Document []Series

// Select returns the series with the given key. If no series has that key and
// ref is a decimal number, then the series at that index is returned instead.
func (d Document) Select(ref string) (Series, error) {
	for _, series := range d {
		if series.Key == ref {
			return series, nil
		}
	}

	if i, err := strconv.Atoi(ref); err == nil && i >= 0 && i < len(d) {
		return d[i], nil
	}

	return Series{}, errors.Wrapf(ErrNotFound, "no series %q", ref)
}

// Fill fills every series in the document. The interval of each series is
// looked up with the given function.
func (d Document) Fill(interval func(key string) time.Duration) (Document, error) {
	filled := make(Document, len(d))

	for i, series := range d {
		s, err := series.Fill(interval(series.Key))
		if err != nil {
			return nil, err
		}
		filled[i] = s
	}

	return filled, nil
}
