package catalog

import (
	"fmt"
	"path/filepath"

	"github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"

	"github.com/stackpilot/stackpilot/pkg/types"
)

var bucketBackups = []byte("backups")

// Catalog is the durable index of backup records, keyed by the sortable
// timestamp ID. Records are written once and only their Verified flag
// is ever updated; archives themselves live beside the catalog in the
// backup root.
type Catalog struct {
	db *bolt.DB
}

// Open opens (or creates) the catalog database under dir
func Open(dir string) (*Catalog, error) {
	db, err := bolt.Open(filepath.Join(dir, "catalog.db"), 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup catalog: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBackups)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize backup catalog: %w", err)
	}

	return &Catalog{db: db}, nil
}

// Close closes the underlying database
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Put stores or replaces a record
func (c *Catalog) Put(record *types.BackupRecord) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketBackups).Put([]byte(record.ID), data)
	})
}

// Get returns the record with the given ID
func (c *Catalog) Get(id string) (*types.BackupRecord, error) {
	var record types.BackupRecord
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketBackups).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("backup record not found: %s", id)
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns all records, oldest first
func (c *Catalog) List() ([]*types.BackupRecord, error) {
	var records []*types.BackupRecord
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBackups).ForEach(func(k, v []byte) error {
			var record types.BackupRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, &record)
			return nil
		})
	})
	return records, err
}

// MarkInvalid clears a record's Verified flag, removing it from the set
// of rollback candidates
func (c *Catalog) MarkInvalid(id string) error {
	record, err := c.Get(id)
	if err != nil {
		return err
	}
	record.Verified = false
	return c.Put(record)
}

// LatestVerified returns the most recent verified record. Unverified
// records are skipped even when they are newer: they must never be
// offered as rollback targets.
func (c *Catalog) LatestVerified() (*types.BackupRecord, bool, error) {
	var record *types.BackupRecord
	err := c.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(bucketBackups).Cursor()
		for k, v := cursor.Last(); k != nil; k, v = cursor.Prev() {
			var candidate types.BackupRecord
			if err := json.Unmarshal(v, &candidate); err != nil {
				return err
			}
			if candidate.Verified {
				record = &candidate
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return record, record != nil, nil
}
