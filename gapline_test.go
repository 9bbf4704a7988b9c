package gapline

import (
	"bytes"
	"errors"
	"log"
	"math/rand"
	"strings"
	"testing"
	"time"

	"git.unix.lgbt/diamondburned/gapline/internal/badgerlog"
)

// prepDB prepares a writable database with the series "test" holding n samples
// one second apart, starting one second after start. Sample i has the value i.
func prepDB(t testing.TB, start time.Time, n int) *Database {
	t.Helper()

	db, err := Open(t.TempDir(), true)
	if err != nil {
		t.Fatal("failed to open db:", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Error("failed to close db:", err)
		}
	})

	values := make([]Sample, n)
	for i := 1; i <= n; i++ {
		values[i-1] = Sample{X: start.Add(time.Duration(i) * time.Second), Y: float64(i)}
	}

	// Shuffle the slice to ensure that the stored order doesn't matter.
	rand.Shuffle(len(values), func(i, j int) {
		values[i], values[j] = values[j], values[i]
	})

	err = db.Update(Series{
		Info:   Info{Key: "test", FullName: "Test", Unit: "u", Order: 1},
		Values: values,
	})
	if err != nil {
		t.Fatal("failed to update:", err)
	}

	return db
}

func sampleYs(samples []Sample) []int {
	ints := make([]int, len(samples))
	for i, s := range samples {
		ints[i] = int(s.Y)
	}
	return ints
}

func TestUpdateReadSeries(t *testing.T) {
	start := time.Now().Truncate(time.Millisecond)
	db := prepDB(t, start, 20)

	s, err := db.ReadSeries("test", IteratorOpts{})
	if err != nil {
		t.Fatal("failed to read:", err)
	}

	if s.Info != (Info{Key: "test", FullName: "Test", Unit: "u", Order: 1}) {
		t.Fatalf("unexpected info %+v", s.Info)
	}

	if len(s.Values) != 20 {
		t.Fatalf("expected %d samples, got %d", 20, len(s.Values))
	}

	for i, sample := range s.Values {
		if int(sample.Y) != i+1 {
			t.Errorf("sample %d expected %d, got %v", i, i+1, sample.Y)
		}

		expectsTime := start.Add(time.Duration(i+1) * time.Second)
		if !sample.X.Equal(expectsTime) {
			t.Errorf("sample %d expected time %v, got %v", i, expectsTime, sample.X)
		}
	}
}

func TestUpdateOverwrite(t *testing.T) {
	start := time.Now().Truncate(time.Millisecond)
	db := prepDB(t, start, 3)

	err := db.Append(Info{Key: "test"}, Sample{X: start.Add(2 * time.Second), Y: 42})
	if err != nil {
		t.Fatal("failed to append:", err)
	}

	s, err := db.ReadSeries("test", IteratorOpts{})
	if err != nil {
		t.Fatal("failed to read:", err)
	}

	got := sampleYs(s.Values)
	expects := []int{1, 42, 3}

	if len(got) != len(expects) {
		t.Fatalf("expected %v, got %v", expects, got)
	}

	for i := range expects {
		if got[i] != expects[i] {
			t.Fatalf("expected %v, got %v", expects, got)
		}
	}
}

func TestUpdateErrors(t *testing.T) {
	db := prepDB(t, time.Now(), 1)

	err := db.Append(Info{Key: "test"}, GapAt(time.Now()))
	if !errors.Is(err, ErrGapStored) {
		t.Fatalf("expected error %v, got %v", ErrGapStored, err)
	}

	for _, key := range []string{"", "a\x00b"} {
		err := db.Append(Info{Key: key}, Sample{X: time.Now(), Y: 1})
		if !errors.Is(err, ErrBadKey) {
			t.Fatalf("key %q: expected error %v, got %v", key, ErrBadKey, err)
		}
	}
}

func TestReadOnly(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(dir, true)
	if err != nil {
		t.Fatal("failed to open db:", err)
	}

	if err := w.Append(Info{Key: "cpu"}, Sample{X: time.Now(), Y: 1}); err != nil {
		t.Fatal("failed to append:", err)
	}

	if err := w.Close(); err != nil {
		t.Fatal("failed to close db:", err)
	}

	r, err := Open(dir, false)
	if err != nil {
		t.Fatal("failed to open db read-only:", err)
	}
	defer r.Close()

	if err := r.Append(Info{Key: "cpu"}, Sample{X: time.Now(), Y: 2}); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected error %v, got %v", ErrReadOnly, err)
	}

	if _, err := r.GC(time.Hour); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected error %v, got %v", ErrReadOnly, err)
	}

	s, err := r.ReadSeries("cpu", IteratorOpts{})
	if err != nil {
		t.Fatal("failed to read:", err)
	}

	if len(s.Values) != 1 {
		t.Fatalf("expected %d samples, got %d", 1, len(s.Values))
	}
}

func TestNotFound(t *testing.T) {
	db := prepDB(t, time.Now(), 1)

	if _, err := db.ReadSeries("nope", IteratorOpts{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected error %v, got %v", ErrNotFound, err)
	}

	if _, err := db.Info("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected error %v, got %v", ErrNotFound, err)
	}
}

func TestSeriesOrder(t *testing.T) {
	db := prepDB(t, time.Now(), 1)
	now := time.Now()

	infos := []Info{
		{Key: "b", Order: 0},
		{Key: "a", Order: 0},
		{Key: "c", Order: 2},
	}

	for _, info := range infos {
		if err := db.Append(info, Sample{X: now, Y: 1}); err != nil {
			t.Fatal("failed to append:", err)
		}
	}

	got, err := db.Series()
	if err != nil {
		t.Fatal("failed to list series:", err)
	}

	expects := []string{"a", "b", "test", "c"}

	if len(got) != len(expects) {
		t.Fatalf("expected %d series, got %d", len(expects), len(got))
	}

	for i, info := range got {
		if info.Key != expects[i] {
			t.Errorf("series %d expected %q, got %q", i, expects[i], info.Key)
		}
	}

	doc, err := db.ReadDocument(IteratorOpts{})
	if err != nil {
		t.Fatal("failed to read document:", err)
	}

	if len(doc) != len(expects) {
		t.Fatalf("expected %d series in document, got %d", len(expects), len(doc))
	}

	if n := len(doc[2].Values); n != 1 {
		t.Fatalf("expected %d samples in %q, got %d", 1, doc[2].Key, n)
	}
}

// TestSeriesIsolation ensures that a key that is a prefix of another key does
// not read the other series' points.
func TestSeriesIsolation(t *testing.T) {
	db := prepDB(t, time.Now(), 5)

	if err := db.Append(Info{Key: "tes"}, Sample{X: time.Now(), Y: 100}); err != nil {
		t.Fatal("failed to append:", err)
	}

	if err := db.Append(Info{Key: "testing"}, Sample{X: time.Now(), Y: 100}); err != nil {
		t.Fatal("failed to append:", err)
	}

	s, err := db.ReadSeries("tes", IteratorOpts{})
	if err != nil {
		t.Fatal("failed to read:", err)
	}

	if len(s.Values) != 1 {
		t.Fatalf("expected %d samples, got %d", 1, len(s.Values))
	}

	s, err = db.ReadSeries("test", IteratorOpts{})
	if err != nil {
		t.Fatal("failed to read:", err)
	}

	if len(s.Values) != 5 {
		t.Fatalf("expected %d samples, got %d", 5, len(s.Values))
	}
}

func TestGC(t *testing.T) {
	start := time.Now().Truncate(time.Millisecond)
	db := prepDB(t, start, 20)

	// Keep samples 11 to 20.
	n, err := db.gc(start.Add(11 * time.Second))
	if err != nil {
		t.Fatal("failed to gc:", err)
	}

	if n != 10 {
		t.Fatalf("expected %d deleted points, got %d", 10, n)
	}

	s, err := db.ReadSeries("test", IteratorOpts{})
	if err != nil {
		t.Fatal("failed to read after GC:", err)
	}

	if len(s.Values) != 10 {
		t.Fatalf("expected %d samples after GC, got %d", 10, len(s.Values))
	}

	if s.Values[0].Y != 11 {
		t.Fatalf("expected first sample %d, got %v", 11, s.Values[0].Y)
	}

	// The metadata survives even if every point is collected.
	if _, err := db.GC(-time.Hour); err != nil {
		t.Fatal("failed to gc:", err)
	}

	s, err = db.ReadSeries("test", IteratorOpts{})
	if err != nil {
		t.Fatal("failed to read after full GC:", err)
	}

	if len(s.Values) != 0 {
		t.Fatalf("expected no samples after full GC, got %d", len(s.Values))
	}
}

func TestStoredGapsFilledOnRead(t *testing.T) {
	db := prepDB(t, time.Now(), 1)
	start := time.UnixMilli(1_600_000_000_000)

	err := db.Append(Info{Key: "sparse"},
		Sample{X: start, Y: 1},
		Sample{X: start.Add(time.Minute), Y: 2},
		Sample{X: start.Add(time.Hour), Y: 3},
	)
	if err != nil {
		t.Fatal("failed to append:", err)
	}

	s, err := db.ReadSeries("sparse", IteratorOpts{})
	if err != nil {
		t.Fatal("failed to read:", err)
	}

	if len(s.Values) != 3 {
		t.Fatalf("expected %d stored samples, got %d", 3, len(s.Values))
	}

	filled, err := s.Fill(10 * time.Minute)
	if err != nil {
		t.Fatal("failed to fill:", err)
	}

	assertSamples(t, []Sample{
		{X: start, Y: 1},
		{X: start.Add(time.Minute), Y: 2},
		GapAt(start.Add(time.Minute + GapOffset)),
		{X: start.Add(time.Hour), Y: 3},
	}, filled.Values)
}

func TestTimeBE(t *testing.T) {
	times := []time.Time{
		time.UnixMilli(-5000),
		time.UnixMilli(-1),
		time.UnixMilli(0),
		time.UnixMilli(1),
		time.UnixMilli(1_600_000_000_000),
	}

	for i, tm := range times {
		if got := readTimeBE(timeToBE(tm)); !got.Equal(tm) {
			t.Errorf("time %d expected %v, got %v", i, tm, got)
		}

		if i > 0 && bytes.Compare(timeToBE(times[i-1]), timeToBE(tm)) >= 0 {
			t.Errorf("time %d does not sort after time %d", i, i-1)
		}
	}
}

func TestDecodeValue(t *testing.T) {
	type test struct {
		name  string
		input []byte
	}

	cbor, err := encodeValue(2.5)
	if err != nil {
		t.Fatal("failed to encode:", err)
	}

	var tests = []test{
		{"cbor", cbor},
		{"json_versioned", append([]byte{versionBytePrefix, byte(Version1)}, "2.5"...)},
		{"json_bare", []byte("2.5")},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var f float64
			if err := decodeValue(test.input, &f); err != nil {
				t.Fatal("failed to decode:", err)
			}

			if f != 2.5 {
				t.Fatalf("expected %v, got %v", 2.5, f)
			}
		})
	}

	var f float64
	if err := decodeValue([]byte{versionBytePrefix, 0xAA, 0x00}, &f); err == nil {
		t.Fatal("expected error for unknown version")
	}
}

func TestOpenWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := badgerlog.NewLogger(log.New(&buf, "", 0), badgerlog.DebugLevel)

	db, err := OpenWithLogger(t.TempDir(), true, logger)
	if err != nil {
		t.Fatal("failed to open db:", err)
	}

	if err := db.Close(); err != nil {
		t.Fatal("failed to close db:", err)
	}

	if !strings.Contains(buf.String(), "badger: ") {
		t.Fatalf("expected badger to log into the given logger, got %q", buf.String())
	}
}
