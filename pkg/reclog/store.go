// Copyright 2020-2022 The OS-NVR Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package reclog

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const bucketName = "entries"

const defaultMaxEntries = 100000

// Store durably persists entries from a Logger's feed into a bbolt
// database, evicting the oldest entry once maxEntries is exceeded.
type Store struct {
	dbPath     string
	maxEntries int
	db         *bolt.DB
}

// NewStore returns a Store backed by the bbolt file at dbPath.
func NewStore(dbPath string) *Store {
	return &Store{dbPath: dbPath, maxEntries: defaultMaxEntries}
}

// Open opens (creating if necessary) the underlying bbolt database.
func (s *Store) Open() error {
	db, err := bolt.Open(s.dbPath, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("reclog: open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return fmt.Errorf("reclog: create bucket: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Run subscribes to l and persists every entry until ctx is canceled.
func (s *Store) Run(ctx context.Context, l *Logger) {
	feed, cancel := l.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-feed:
			if err := s.save(entry); err != nil {
				l.Error().Src("reclog").Msgf("could not persist log entry: %v", err)
			}
		}
	}
}

func (s *Store) save(e Entry) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b.Stats().KeyN >= s.maxEntries {
			if k, _ := b.Cursor().First(); k != nil {
				if err := b.Delete(k); err != nil {
					return fmt.Errorf("evict oldest entry: %w", err)
				}
			}
		}
		// Time first, then a per-bucket sequence number, so entries
		// logged in the same millisecond do not overwrite each other.
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		key := append(encodeKey(uint64(e.Time)), encodeKey(seq)...)
		return b.Put(key, value)
	})
}

// Query returns up to limit entries at or before beforeMillis (0 means
// "most recent"), newest first, filtered by level and src when given.
func (s *Store) Query(beforeMillis UnixMillisecond, levels []Level, sources []string, limit int) ([]Entry, error) {
	if limit == 0 {
		limit = defaultMaxEntries
	}

	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketName)).Cursor()

		var key, value []byte
		if beforeMillis == 0 {
			key, value = c.Last()
		} else {
			key, value = c.Seek(encodeKey(uint64(beforeMillis) + 1))
			if key == nil {
				key, value = c.Last()
			} else {
				key, value = c.Prev()
			}
		}

		for key != nil && len(entries) < limit {
			var entry Entry
			if err := json.Unmarshal(value, &entry); err != nil {
				return fmt.Errorf("unmarshal entry: %w", err)
			}
			if matchesFilter(entry, levels, sources) {
				entries = append(entries, entry)
			}
			key, value = c.Prev()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reclog: query: %w", err)
	}
	return entries, nil
}

func matchesFilter(e Entry, levels []Level, sources []string) bool {
	if len(levels) > 0 {
		found := false
		for _, lvl := range levels {
			if e.Level == lvl {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(sources) > 0 {
		found := false
		for _, src := range sources {
			if e.Src == src {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func encodeKey(key uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, key)
	return buf
}
