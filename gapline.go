// Package gapline stores measurement series and fills the gaps in them so that
// chart front-ends can break their lines where no data was recorded.
package gapline

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"git.unix.lgbt/diamondburned/gapline/internal/badgerlog"
	"github.com/dgraph-io/badger/v3"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// Version is the type for the version of encoded database values.
type Version uint8

const (
	Version1 Version = iota + 1 // JSON
	Version2                    // CBOR
)

// this is never a valid JSON character
const versionBytePrefix = 0xFE

// CurrentVersion is the version that values will be written as.
const CurrentVersion = Version2

// Convenient inaccurate time constants.
const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 30 * Day
)

// Key prefixes.
var (
	bPoints = []byte("points")
	bSeries = []byte("series")
)

var (
	// ErrReadOnly is returned when writing to a database opened read-only.
	ErrReadOnly = errors.New("database not writable")
	// ErrGapStored is returned when a gap marker is given to Update. Only real
	// samples are stored; gaps are filled in on read.
	ErrGapStored = errors.New("gap markers cannot be stored")
	// ErrBadKey is returned for series keys that cannot be stored.
	ErrBadKey = errors.New("series key must be non-empty and contain no NUL byte")
)

// Database describes a wrapped database instance.
type Database struct {
	db *badger.DB
	ro bool
}

// Open opens a database with the default logger. Databases must be closed once
// they're done.
func Open(path string, write bool) (*Database, error) {
	return OpenWithLogger(path, write, badgerlog.NewDefaultLogger())
}

// OpenWithLogger opens a database that logs into the given logger.
func OpenWithLogger(path string, write bool, logger badger.Logger) (*Database, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(!write).
		WithLogger(logger)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "badger")
	}

	return &Database{db: db, ro: !write}, nil
}

// Close closes the database.
func (db *Database) Close() error {
	return db.db.Close()
}

// Update writes the series metadata and all of its samples in one batch.
// Samples with an already stored timestamp overwrite the old value.
func (db *Database) Update(series Series) error {
	if db.ro {
		return ErrReadOnly
	}

	if err := checkKey(series.Key); err != nil {
		return err
	}

	info, err := encodeValue(series.Info)
	if err != nil {
		return err
	}

	wb := db.db.NewWriteBatch()
	defer wb.Cancel()

	if err := wb.Set(seriesKey(series.Key), info); err != nil {
		return errors.Wrap(err, "failed to set series info")
	}

	for i, sample := range series.Values {
		if sample.IsGap() {
			return errors.Wrapf(ErrGapStored, "sample %d of %q", i, series.Key)
		}

		v, err := encodeValue(sample.Y)
		if err != nil {
			return err
		}

		if err := wb.Set(pointKey(series.Key, sample.X), v); err != nil {
			return errors.Wrap(err, "failed to set point")
		}
	}

	if err := wb.Flush(); err != nil {
		return errors.Wrap(err, "failed to update db")
	}

	return nil
}

// Append appends samples to the series described by info.
func (db *Database) Append(info Info, samples ...Sample) error {
	return db.Update(Series{Info: info, Values: samples})
}

// GC deletes every point older than the given age. The number of deleted
// points is returned. Since this is a fairly expensive operation, it should
// only be called rarely.
func (db *Database) GC(age time.Duration) (int, error) {
	if db.ro {
		return 0, ErrReadOnly
	}

	return db.gc(time.Now().Add(-age))
}

func (db *Database) gc(before time.Time) (int, error) {
	var keys [][]byte

	err := db.db.View(func(tx *badger.Txn) error {
		it := tx.NewIterator(badger.IteratorOptions{
			Prefix: bkey(bPoints, nil),
		})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			if readTimeBE(key[len(key)-8:]).Before(before) {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
		}

		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to scan points")
	}

	wb := db.db.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return 0, errors.Wrap(err, "failed to delete point")
		}
	}

	if err := wb.Flush(); err != nil {
		return 0, errors.Wrap(err, "failed to flush deletes")
	}

	return len(keys), nil
}

// Info returns the metadata of the series with the given key.
func (db *Database) Info(key string) (Info, error) {
	var info Info

	err := db.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get(seriesKey(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return errors.Wrapf(ErrNotFound, "no series %q", key)
			}
			return err
		}

		return item.Value(func(v []byte) error { return decodeValue(v, &info) })
	})

	return info, err
}

// Series returns the metadata of all stored series sorted by their order, then
// by their key.
func (db *Database) Series() ([]Info, error) {
	var infos []Info

	err := db.db.View(func(tx *badger.Txn) error {
		it := tx.NewIterator(badger.IteratorOptions{
			Prefix:         bkey(bSeries, nil),
			PrefetchValues: true,
		})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var info Info
			if err := it.Item().Value(func(v []byte) error {
				return decodeValue(v, &info)
			}); err != nil {
				return errors.Wrapf(err, "corrupted series %q", it.Item().Key())
			}

			infos = append(infos, info)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].Order != infos[j].Order {
			return infos[i].Order < infos[j].Order
		}
		return infos[i].Key < infos[j].Key
	})

	return infos, nil
}

// Iterator returns a new backwards iterator over the points of the given
// series. The iterator must be closed after it's done.
func (db *Database) Iterator(key string, opts IteratorOpts) (*Iterator, error) {
	return newIterator(db.db, key, opts)
}

// ReadSeries reads the series with the given key within the range of opts.
// The samples are returned in chronological order.
func (db *Database) ReadSeries(key string, opts IteratorOpts) (Series, error) {
	info, err := db.Info(key)
	if err != nil {
		return Series{}, err
	}

	iter, err := db.Iterator(key, opts)
	if err != nil {
		return Series{}, err
	}
	defer iter.Close()

	values := iter.ReadAll()
	if err := iter.Err(); err != nil {
		return Series{}, errors.Wrapf(err, "failed to read %q", key)
	}

	return Series{Info: info, Values: values}, nil
}

// ReadDocument reads every stored series within the range of opts.
func (db *Database) ReadDocument(opts IteratorOpts) (Document, error) {
	infos, err := db.Series()
	if err != nil {
		return nil, err
	}

	doc := make(Document, len(infos))

	for i, info := range infos {
		s, err := db.ReadSeries(info.Key, opts)
		if err != nil {
			return nil, err
		}
		doc[i] = s
	}

	return doc, nil
}

func checkKey(key string) error {
	if key == "" || bytes.IndexByte([]byte(key), 0) != -1 {
		return errors.Wrapf(ErrBadKey, "key %q", key)
	}
	return nil
}

func encodeValue(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(64)
	err := encodeValueBuf(v, &buf)
	return buf.Bytes(), err
}

func encodeValueBuf(v interface{}, buf *bytes.Buffer) error {
	buf.WriteByte(versionBytePrefix)
	buf.WriteByte(byte(CurrentVersion))

	if err := cbor.NewEncoder(buf).Encode(v); err != nil {
		return errors.Wrap(err, "failed to marshal")
	}

	return nil
}

func decodeValue(b []byte, dst interface{}) (err error) {
	if len(b) < 2 || b[0] != versionBytePrefix {
		err = json.Unmarshal(b, dst)
		return
	}

	version := Version(b[1])
	b = b[2:]

	switch version {
	case Version1:
		err = json.Unmarshal(b, dst)
	case Version2:
		err = cbor.Unmarshal(b, dst)
	default:
		err = fmt.Errorf("unknown version %d", version)
	}

	return
}

// bkey joins the given key parts with NUL bytes. A trailing nil part yields a
// trailing separator, which is useful for prefixes.
func bkey(parts ...[]byte) []byte {
	return bytes.Join(parts, []byte{0})
}

func seriesKey(key string) []byte {
	return bkey(bSeries, []byte(key))
}

func pointPrefix(key string) []byte {
	return bkey(bPoints, []byte(key), nil)
}

func pointKey(key string, t time.Time) []byte {
	return bkey(bPoints, []byte(key), timeToBE(t))
}

// timeToBE encodes the time in Unix milliseconds with the sign bit flipped, so
// that the byte order matches the chronological order.
func timeToBE(t time.Time) []byte {
	return msToBE(t.UnixMilli())
}

func msToBE(ms int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(ms)^(1<<63))
	return b
}

func readTimeBE(b []byte) time.Time {
	return time.UnixMilli(readMsBE(b))
}

func readMsBE(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63))
}

// convertWithUnixZero converts a time.Time to Unix milliseconds, or if
// time.Time is zero, then fallback is returned.
func convertWithUnixZero(t time.Time, fallback int64) int64 {
	if t.IsZero() {
		return fallback
	}
	return t.UnixMilli()
}

const (
	minTime = math.MinInt64
	maxTime = math.MaxInt64
)
