package store

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketLeaves      = []byte("state_leaves")
	bucketSpent       = []byte("spent_outpoints")
	bucketCheckpoints = []byte("checkpoints")
)

// DB is the bbolt-backed durability layer for a Store: one bucket per
// logical collection, opened with a short lock-acquire timeout so a
// second process fails fast instead of hanging.
type DB struct {
	path string
	db   *bolt.DB
}

// Open creates (if needed) and opens the on-disk store database under
// datadir/state.db.
func Open(datadir string) (*DB, error) {
	if datadir == "" {
		return nil, fmt.Errorf("store: datadir required")
	}
	if err := os.MkdirAll(datadir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create datadir: %w", err)
	}
	path := filepath.Join(datadir, "state.db")
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open bbolt: %w", err)
	}
	d := &DB{path: path, db: bdb}
	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketLeaves, bucketSpent, bucketCheckpoints} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) Path() string { return d.path }

// PersistLeaves overwrites the persisted key/value map with kv.
func (d *DB) PersistLeaves(kv map[string][]byte) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		// Clear then rewrite: simplest way to keep the bucket exactly
		// equal to kv without tracking per-key deletes separately.
		if err := tx.DeleteBucket(bucketLeaves); err != nil {
			return err
		}
		nb, err := tx.CreateBucket(bucketLeaves)
		if err != nil {
			return err
		}
		for k, v := range kv {
			if err := nb.Put([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadLeaves reads the full persisted key/value map.
func (d *DB) LoadLeaves() (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLeaves)
		return b.ForEach(func(k, v []byte) error {
			out[string(k)] = append([]byte(nil), v...)
			return nil
		})
	})
	return out, err
}

func outpointKey(op Outpoint) []byte {
	key := make([]byte, 36)
	copy(key[:32], op.Txid[:])
	binary.BigEndian.PutUint32(key[32:], op.OutIndex)
	return key
}

// MarkSpent persists op as spent.
func (d *DB) MarkSpent(op Outpoint) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSpent).Put(outpointKey(op), []byte{1})
	})
}

// IsSpentPersisted reports whether op is recorded spent on disk.
func (d *DB) IsSpentPersisted(op Outpoint) (bool, error) {
	var found bool
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketSpent).Get(outpointKey(op))
		found = v != nil
		return nil
	})
	return found, err
}

// AppendCheckpoint persists cp keyed by its transition count.
func (d *DB) AppendCheckpoint(cp Checkpoint) error {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, cp.TransitionCount)
	val := make([]byte, 40)
	copy(val[:32], cp.RootHash[:])
	binary.BigEndian.PutUint64(val[32:], uint64(cp.ConservationChecksum))
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCheckpoints).Put(key, val)
	})
}

// LoadCheckpoints returns every persisted checkpoint, ordered by
// transition count (bbolt bucket keys are stored in byte order, and
// the key is a big-endian counter, so iteration order is already
// correct).
func (d *DB) LoadCheckpoints() ([]Checkpoint, error) {
	var out []Checkpoint
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCheckpoints)
		return b.ForEach(func(k, v []byte) error {
			if len(k) != 8 || len(v) != 40 {
				return fmt.Errorf("store: malformed checkpoint record")
			}
			cp := Checkpoint{TransitionCount: binary.BigEndian.Uint64(k)}
			copy(cp.RootHash[:], v[:32])
			cp.ConservationChecksum = int64(binary.BigEndian.Uint64(v[32:]))
			out = append(out, cp)
			return nil
		})
	})
	return out, err
}
