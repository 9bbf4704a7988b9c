package gapline

import (
	"bytes"
	"log"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"
)

// IteratorOpts is the options for reading. It describes the range of points to
// read.
type IteratorOpts struct {
	// From is the time to start reading the points backwards. The default
	// zero-value means to read from the latest point.
	From time.Time
	// To is the time to stop reading the points backwards. By default, the
	// zero-value is used, which would read all points. The To time must
	// ALWAYS be before From.
	To time.Time
}

// LastDuration returns the options to read the last d up to now.
func LastDuration(now time.Time, d time.Duration) IteratorOpts {
	return IteratorOpts{
		From: now,
		To:   now.Add(-d),
	}
}

// Iterator is a backwards point iterator over a single series.
type Iterator struct {
	tx *badger.Txn
	it *badger.Iterator

	// current state
	item  *badger.Item
	error error

	// constants
	prefix []byte
	begin  []byte
	to     int64
	from   int64
}

// newIterator creates a new iterator. See (*Database).Iterator.
func newIterator(db *badger.DB, key string, opts IteratorOpts) (*Iterator, error) {
	if !opts.To.IsZero() && !opts.From.IsZero() {
		if !opts.From.After(opts.To) {
			return nil, errors.New("opts.From should be after opts.To")
		}
	}

	i := Iterator{
		prefix: pointPrefix(key),
		to:     convertWithUnixZero(opts.To, minTime),
		from:   convertWithUnixZero(opts.From, maxTime),
	}

	// Seeking backwards lands on the last key that is <= begin.
	i.begin = append(append([]byte(nil), i.prefix...), msToBE(i.from)...)

	i.tx = db.NewTransaction(false)
	i.it = i.tx.NewIterator(badger.IteratorOptions{
		Prefix:  i.prefix,
		Reverse: true, // from is later than to
	})

	i.Rewind()

	return &i, nil
}

// Close closes the iterator.
func (i *Iterator) Close() error {
	i.it.Close()
	i.tx.Discard()
	return nil
}

// Err returns the first error encountered while reading values.
func (i *Iterator) Err() error {
	return i.error
}

func (i *Iterator) setItem() {
	if i.it.Valid() {
		i.item = i.it.Item()
	} else {
		i.item = nil
	}
}

func (i *Iterator) itemTime() int64 {
	key := i.item.Key()
	return readMsBE(key[len(i.prefix):])
}

// isValid returns true if the iterator is still within range.
func (i *Iterator) isValid() bool {
	return i.item != nil && i.to <= i.itemTime()
}

// Prev reads the previous point into the given sample pointer or the last point
// if the Iterator has never been used before. If sample is nil, then the
// iterator is still updated, but no decoding is done.
//
// False is returned if nothing is read, otherwise true is.
func (i *Iterator) Prev(sample *Sample) bool {
	if !i.isValid() {
		i.item = nil
		return false
	}

	if sample != nil {
		if !i.readSample(sample) {
			i.item = nil
			return false
		}
	}

	// Seek for the next call.
	i.it.Next()
	i.setItem()

	return true
}

func (i *Iterator) readSample(sample *Sample) bool {
	var y float64

	// Decode fail is a fatal error, so we invalidate everything.
	if err := i.item.Value(func(v []byte) error {
		return decodeValue(v, &y)
	}); err != nil {
		i.error = err
		log.Println("readSample failed:", i.error)
		return false
	}

	*sample = Sample{
		X: time.UnixMilli(i.itemTime()),
		Y: y,
	}

	return true
}

// Remaining returns the number of remaining points to read until either the
// series has nothing left or the requested range has been reached. The cursor
// position stays the same by the time this function returns.
func (i *Iterator) Remaining() int {
	if !i.isValid() {
		return 0
	}

	// Remember the current cursor position before we change it. The key has to
	// be copied, because the iterator will reuse the same buffer.
	current := i.item.KeyCopy(nil)

	var total int
	for i.Prev(nil) {
		total++
	}

	// Seek back to where we were.
	i.it.Rewind()
	i.it.Seek(current)
	i.setItem()

	if i.item == nil || !bytes.Equal(i.item.Key(), current) {
		log.Panicf("Remaining: cannot seek back to last known key %q", current)
	}

	return total
}

// ReadRemaining reads all points from the current position to the end of the
// range. The returned samples are in chronological order.
func (i *Iterator) ReadRemaining() []Sample {
	total := i.Remaining()
	samples := make([]Sample, total)

	for total > 0 && i.Prev(&samples[total-1]) {
		total--
	}

	// Drop the unread head if decoding failed halfway.
	return samples[total:]
}

// Rewind resets the cursor back to the initial position.
func (i *Iterator) Rewind() {
	i.it.Rewind()
	i.it.Seek(i.begin)
	i.setItem()
}

// ReadAll is similar to ReadRemaining, except the cursor is rewound to the
// requested position "from" and read again.
func (i *Iterator) ReadAll() []Sample {
	i.Rewind()
	return i.ReadRemaining()
}
