package outbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fastygo/questlog/domain"
)

const defaultBucket = "progression_events"

// Entry is a progression event waiting to be published.
type Entry struct {
	Event    domain.ProgressEvent `json:"event"`
	Attempts int                  `json:"attempts"`
	QueuedAt time.Time            `json:"queued_at"`

	key []byte
}

// Store persists progression events in BoltDB until a publisher confirms them.
// Keys sort by queue time, so GetBatch is oldest first.
type Store struct {
	db     *bolt.DB
	bucket []byte
	now    func() time.Time
}

// Open initializes the BoltDB file and ensures the bucket exists.
func Open(path string, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = defaultBucket
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:     db,
		bucket: []byte(bucket),
		now:    time.Now,
	}, nil
}

// Append queues events in a single bolt transaction.
func (s *Store) Append(events ...domain.ProgressEvent) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	now := s.now()
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		for i, event := range events {
			entry := Entry{Event: event, QueuedAt: now.Add(time.Duration(i))}
			if err := put(b, &entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetBatch returns up to limit entries without removing them.
func (s *Store) GetBatch(limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if limit <= 0 {
		limit = 50
	}

	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil && len(entries) < limit; k, v = c.Next() {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				continue
			}
			entry.key = append([]byte(nil), k...)
			entries = append(entries, entry)
		}
		return nil
	})
	return entries, err
}

// Remove deletes a delivered or abandoned entry.
func (s *Store) Remove(entry Entry) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete(keyOf(entry))
	})
}

// Requeue moves an entry to the back of the queue with its attempt counter bumped.
func (s *Store) Requeue(entry Entry) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if err := b.Delete(keyOf(entry)); err != nil {
			return err
		}
		entry.Attempts++
		entry.QueuedAt = s.now()
		return put(b, &entry)
	})
}

// Size returns the number of queued entries.
func (s *Store) Size() (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Cleanup removes entries queued before olderThan and reports how many went.
func (s *Store) Cleanup(olderThan time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var removed int
	err := s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				continue
			}
			if entry.QueuedAt.Before(olderThan) {
				if err := c.Delete(); err != nil {
					return err
				}
				removed++
			}
		}
		return nil
	})
	return removed, err
}

// Close closes the Bolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func put(b *bolt.Bucket, entry *Entry) error {
	entry.key = buildKey(*entry)
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return b.Put(entry.key, payload)
}

func keyOf(entry Entry) []byte {
	if len(entry.key) > 0 {
		return entry.key
	}
	return buildKey(entry)
}

func buildKey(entry Entry) []byte {
	return []byte(fmt.Sprintf("%020d_%s", entry.QueuedAt.UnixNano(), entry.Event.ID))
}
