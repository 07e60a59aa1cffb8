// Package storage keeps a history of completed batches in a local bbolt
// database, so past cipher comparisons stay queryable after the process
// exits.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"mqttlat/internal/batch"
	"mqttlat/internal/export"
)

const (
	bucketBatches = "batches"

	// Keep max 100 records, newest win.
	maxRecords = 100
)

// Record is one completed batch: its configuration and the per-config
// summaries. Raw per-trial rows live in the exported files, not here.
type Record struct {
	ID         string                          `json:"id"`
	Timestamp  time.Time                       `json:"timestamp"`
	Iterations int                             `json:"iterations"`
	Configs    []string                        `json:"configs"`
	Summaries  map[string]export.ConfigSummary `json:"summaries"`
}

// NewRecord reduces a finished batch to its history record.
func NewRecord(cfg batch.Config, res batch.Result) Record {
	rec := Record{
		ID:         uuid.New().String(),
		Timestamp:  time.Now(),
		Iterations: cfg.Iterations,
		Configs:    res.Order,
		Summaries:  make(map[string]export.ConfigSummary, len(res.Order)),
	}
	for _, name := range res.Order {
		rec.Summaries[name] = export.Summarize(res.PerConfig[name])
	}
	return rec
}

type Store struct {
	db *bbolt.DB
}

// Open opens (creating if needed) the history database at path. An empty
// path defaults to ~/.mqttlat/history.db.
func Open(path string) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "resolving home directory")
		}
		dir := filepath.Join(home, ".mqttlat")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, "creating history directory")
		}
		path = filepath.Join(dir, "history.db")
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "opening history database")
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketBatches))
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initializing history database")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists rec and prunes the oldest records beyond the cap. Keys
// sort chronologically (timestamp prefix), so a cursor walk is enough.
func (s *Store) Save(rec Record) error {
	key := []byte(rec.Timestamp.UTC().Format(time.RFC3339Nano) + "_" + rec.ID)
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encoding record")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketBatches))
		if err := b.Put(key, data); err != nil {
			return err
		}

		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for i := 0; i < len(keys)-maxRecords; i++ {
			if err := b.Delete(keys[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns records newest-first.
func (s *Store) List() ([]Record, error) {
	var recs []Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketBatches))
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // skip records from older schema versions
			}
			recs = append(recs, rec)
		}
		return nil
	})
	return recs, err
}

// Get looks a record up by id.
func (s *Store) Get(id string) (*Record, error) {
	var found *Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketBatches))
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			if rec.ID == id {
				found = &rec
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, errors.Errorf("batch %s not found", id)
	}
	return found, nil
}
