// Package journal keeps a persistent log of launch attempts.
// The game registry itself is never persisted; the journal only records what
// the daemon was asked to start and whether the spawn succeeded, so recent
// activity survives a daemon restart.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const launchesBucket = "launches"

// Record describes one launch attempt.
type Record struct {
	ID         uint64    `json:"id"`
	Name       string    `json:"name"`
	Command    string    `json:"command,omitempty"`
	PID        int       `json:"pid,omitempty"`
	LaunchedAt time.Time `json:"launched_at"`
	Error      string    `json:"error,omitempty"`
}

// Succeeded reports whether the attempt started a process.
func (r *Record) Succeeded() bool {
	return r.Error == ""
}

// Journal is a bbolt-backed append-only list of records
type Journal struct {
	db *bolt.DB
}

// Open opens or creates the journal database
func Open(dbPath string) (*Journal, error) {
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(launchesBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal bucket: %w", err)
	}

	return &Journal{db: db}, nil
}

// Append stores r and assigns its ID
func (j *Journal) Append(r *Record) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(launchesBucket))

		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		r.ID = id

		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		return b.Put(itob(id), data)
	})
}

// List returns up to limit records, oldest first
func (j *Journal) List(limit int) ([]*Record, error) {
	var records []*Record

	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(launchesBucket)).Cursor()

		for k, v := c.First(); k != nil && len(records) < limit; k, v = c.Next() {
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				continue
			}
			records = append(records, &r)
		}
		return nil
	})

	return records, err
}

// PruneBefore deletes records launched before cutoff and returns how many
// were removed. Records are keyed by sequence, so the scan stops at the
// first record that is new enough.
func (j *Journal) PruneBefore(cutoff time.Time) (int, error) {
	removed := 0
	err := j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(launchesBucket))
		c := b.Cursor()

		var stale [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var r Record
			if err := json.Unmarshal(v, &r); err == nil && !r.LaunchedAt.Before(cutoff) {
				break
			}
			// Undecodable records are dropped too
			stale = append(stale, append([]byte(nil), k...))
		}

		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// Count returns the number of stored records
func (j *Journal) Count() (int, error) {
	var count int
	err := j.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket([]byte(launchesBucket)).Stats().KeyN
		return nil
	})
	return count, err
}

// Close closes the database
func (j *Journal) Close() error {
	return j.db.Close()
}

// itob converts uint64 to big-endian bytes for ordered keys
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
