// Package store persists peripheral records keyed by a store-assigned id
// that stays stable for the peripheral's lifetime.
package store

import (
	"errors"

	"github.com/srg/bleherd/internal/peripheral"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the narrow persistence interface the registry builds on.
type Store interface {
	// Add inserts a new record and returns its assigned id.
	Add(rec *peripheral.Record) (string, error)
	// Get fetches a record by id; ErrNotFound if absent.
	Get(id string) (*peripheral.Record, error)
	// Set upserts a record under an existing id.
	Set(id string, rec *peripheral.Record) error
	// Remove deletes a record by id. Removing an unknown id is not an error.
	Remove(id string) error
	// ExportAll returns every persisted record.
	ExportAll() ([]*peripheral.Record, error)
	// Close releases underlying resources.
	Close() error
}
