package gapline

import (
	"encoding/binary"
	"encoding/json"
	"io/fs"
	"os"
	"runtime"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

// legacyMetaBucket is the bbolt bucket containing the JSON metadata of each
// series, keyed by the series key. Every other top-level bucket holds the
// points of the series with the same name.
var legacyMetaBucket = []byte("meta")

// LegacyDatabase is a version 1 database. Version 1 databases are bbolt files
// with one bucket per series, keyed by big-endian Unix seconds, holding JSON
// values.
type LegacyDatabase struct {
	db *bbolt.DB
}

// OpenLegacy opens a legacy database, creating it if it doesn't exist.
func OpenLegacy(path string) (*LegacyDatabase, error) {
	return openLegacy(path, false)
}

// OpenLegacyExisting opens an existing legacy database. It never creates a new
// file.
func OpenLegacyExisting(path string) (*LegacyDatabase, error) {
	return openLegacy(path, true)
}

func openLegacy(path string, existingOnly bool) (*LegacyDatabase, error) {
	db, err := bbolt.Open(path, os.ModePerm, &bbolt.Options{
		Timeout:      5 * time.Second,
		FreelistType: bbolt.FreelistArrayType,
		OpenFile: func(path string, flags int, mode fs.FileMode) (*os.File, error) {
			if existingOnly {
				flags &= ^os.O_CREATE
			}
			return os.OpenFile(path, flags, mode)
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "bbolt")
	}

	return &LegacyDatabase{db}, nil
}

// Close closes the legacy database.
func (db *LegacyDatabase) Close() error {
	return db.db.Close()
}

// Put writes the series into the legacy database. It exists so that tools and
// tests can produce version 1 files.
func (db *LegacyDatabase) Put(series Series) error {
	if err := checkKey(series.Key); err != nil {
		return err
	}

	if series.Key == string(legacyMetaBucket) {
		return errors.Wrapf(ErrBadKey, "key %q is reserved", series.Key)
	}

	meta, err := encodeLegacyValue(series.Info)
	if err != nil {
		return err
	}

	return db.db.Update(func(tx *bbolt.Tx) error {
		mb, err := tx.CreateBucketIfNotExists(legacyMetaBucket)
		if err != nil {
			return errors.Wrap(err, "failed to create meta bucket")
		}

		if err := mb.Put([]byte(series.Key), meta); err != nil {
			return errors.Wrap(err, "failed to put meta")
		}

		b, err := tx.CreateBucketIfNotExists([]byte(series.Key))
		if err != nil {
			return errors.Wrap(err, "failed to create series bucket")
		}

		for i, sample := range series.Values {
			if sample.IsGap() {
				return errors.Wrapf(ErrGapStored, "sample %d of %q", i, series.Key)
			}

			v, err := encodeLegacyValue(sample.Y)
			if err != nil {
				return err
			}

			if err := b.Put(unixToBE(sample.X), v); err != nil {
				return errors.Wrap(err, "failed to put point")
			}
		}

		return nil
	})
}

// allow doing 250 values per transaction. Hopefully, this will make badger free
// up some memory after each transaction.
const migrateBatchSize = 250

// MigrateTo copies every series of the legacy database into the given
// database. Values are re-encoded in the current version. The user should make
// a copy of the legacy database before running this.
func (db *LegacyDatabase) MigrateTo(dst *Database) error {
	if dst.ro {
		return ErrReadOnly
	}

	tx, err := db.db.Begin(false)
	if err != nil {
		return errors.Wrap(err, "cannot begin bbolt transaction")
	}
	defer tx.Rollback()

	meta := tx.Bucket(legacyMetaBucket)
	if meta == nil {
		return nil // nothing to do.
	}

	var txCount int
	var badgerTx *badger.Txn

	// commit commits the current badger transaction, if any.
	commit := func() error {
		if badgerTx == nil {
			return nil
		}

		err := badgerTx.Commit()
		badgerTx = nil
		txCount = 0

		// Trigger a GC to potentially free up some memory.
		runtime.GC()

		if err != nil {
			return errors.Wrap(err, "cannot commit badger transaction")
		}
		return nil
	}

	set := func(k, v []byte) error {
		if badgerTx == nil || txCount >= migrateBatchSize {
			if err := commit(); err != nil {
				return err
			}
			badgerTx = dst.db.NewTransaction(true)
		}

		txCount++
		return badgerTx.Set(k, v)
	}

	err = meta.ForEach(func(k, v []byte) error {
		var info Info
		if err := decodeValue(v, &info); err != nil {
			return errors.Wrapf(err, "corrupted meta for %q", k)
		}

		if err := checkKey(info.Key); err != nil {
			return err
		}

		encoded, err := encodeValue(info)
		if err != nil {
			return err
		}

		if err := set(seriesKey(info.Key), encoded); err != nil {
			return errors.Wrap(err, "cannot set series info")
		}

		b := tx.Bucket(k)
		if b == nil {
			return nil // series without points
		}

		return b.ForEach(func(k, v []byte) error {
			if v == nil {
				return nil // is bucket
			}

			if len(k) != 4 {
				return errors.Errorf("corrupted point in %q: time key has %d bytes", info.Key, len(k))
			}

			var y float64
			if err := decodeValue(v, &y); err != nil {
				return errors.Wrapf(err, "corrupted point in %q", info.Key)
			}

			encoded, err := encodeValue(y)
			if err != nil {
				return err
			}

			return set(pointKey(info.Key, readUnixBE(k)), encoded)
		})
	})

	if err != nil {
		if badgerTx != nil {
			badgerTx.Discard()
		}
		return err
	}

	return commit()
}

func encodeLegacyValue(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal")
	}
	return b, nil
}

func unixToBE(t time.Time) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(t.Unix()))
	return b
}

func readUnixBE(b []byte) time.Time {
	return time.Unix(int64(binary.BigEndian.Uint32(b)), 0)
}
