// Package registry keeps the persisted collection of known peripherals:
// in-memory records in registration order backed by the durable store, with
// a concurrent address index for lookups.
package registry

import (
	"errors"
	"fmt"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/bleherd/internal/peripheral"
	"github.com/srg/bleherd/internal/store"
)

var (
	// ErrAlreadyExists is returned when re-registering a known record or a
	// record whose hardware address is already registered.
	ErrAlreadyExists = errors.New("peripheral already registered")
	// ErrNotRegistered is returned when unregistering an unknown record.
	ErrNotRegistered = errors.New("peripheral not registered")
)

// Registry records iterate in registration order, which fixes the disconnect
// order during a network stop. The orchestrator serializes mutating access;
// the address index tolerates concurrent readers.
type Registry struct {
	st     store.Store
	logger *logrus.Logger

	recs   *orderedmap.OrderedMap[string, *peripheral.Record]
	byAddr *hashmap.Map[string, string] // canonical address -> id
}

// New creates a Registry over the given store.
func New(st store.Store, logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{
		st:     st,
		logger: logger,
		recs:   orderedmap.New[string, *peripheral.Record](),
		byAddr: hashmap.New[string, string](),
	}
}

// Register adds rec to the registry.
//
// A record already bearing an id fails with ErrAlreadyExists unless it is
// marked recovered, in which case it is upserted under its existing id and
// the marker cleared. A fresh record is persisted and receives a
// store-assigned id. Hardware addresses are unique across the registry.
func (r *Registry) Register(rec *peripheral.Record) (string, error) {
	addr := peripheral.NormalizeAddr(rec.Address)
	if addr == "" {
		return "", fmt.Errorf("register: record has no hardware address")
	}
	if existingID, ok := r.byAddr.Get(addr); ok && existingID != rec.ID {
		return "", fmt.Errorf("%w: address %s", ErrAlreadyExists, rec.Address)
	}

	if rec.ID != "" {
		if !rec.Recovered {
			return "", fmt.Errorf("%w: id %s", ErrAlreadyExists, rec.ID)
		}
		if err := r.st.Set(rec.ID, rec); err != nil {
			return "", fmt.Errorf("restore record %s: %w", rec.ID, err)
		}
		rec.Recovered = false
		r.recs.Set(rec.ID, rec)
		r.byAddr.Set(addr, rec.ID)
		r.logger.WithFields(logrus.Fields{
			"id":      rec.ID,
			"address": rec.Address,
		}).Debug("Restored peripheral record")
		return rec.ID, nil
	}

	id, err := r.st.Add(rec)
	if err != nil {
		return "", fmt.Errorf("persist record for %s: %w", rec.Address, err)
	}
	rec.ID = id
	r.recs.Set(id, rec)
	r.byAddr.Set(addr, id)
	r.logger.WithFields(logrus.Fields{
		"id":      id,
		"address": rec.Address,
	}).Info("Registered peripheral")
	return id, nil
}

// Unregister removes rec from the registry and the store.
func (r *Registry) Unregister(rec *peripheral.Record) error {
	if rec.ID == "" {
		return ErrNotRegistered
	}
	if _, ok := r.recs.Get(rec.ID); !ok {
		return fmt.Errorf("%w: id %s", ErrNotRegistered, rec.ID)
	}
	if err := r.st.Remove(rec.ID); err != nil {
		return fmt.Errorf("remove record %s: %w", rec.ID, err)
	}
	r.recs.Delete(rec.ID)
	r.byAddr.Del(peripheral.NormalizeAddr(rec.Address))
	r.logger.WithFields(logrus.Fields{
		"id":      rec.ID,
		"address": rec.Address,
	}).Info("Unregistered peripheral")
	return nil
}

// FindByAddress resolves a record by canonicalized hardware address.
func (r *Registry) FindByAddress(addr string) (*peripheral.Record, bool) {
	id, ok := r.byAddr.Get(peripheral.NormalizeAddr(addr))
	if !ok {
		return nil, false
	}
	return r.recs.Get(id)
}

// FindByHandle resolves a record by live connection handle.
func (r *Registry) FindByHandle(handle int) (*peripheral.Record, bool) {
	if handle == peripheral.NoHandle {
		return nil, false
	}
	for pair := r.recs.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.ConnHandle == handle {
			return pair.Value, true
		}
	}
	return nil, false
}

// Get resolves a record by id.
func (r *Registry) Get(id string) (*peripheral.Record, bool) {
	return r.recs.Get(id)
}

// All returns every record in registration order.
func (r *Registry) All() []*peripheral.Record {
	out := make([]*peripheral.Record, 0, r.recs.Len())
	for pair := r.recs.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Len reports the number of registered records.
func (r *Registry) Len() int {
	return r.recs.Len()
}

// Restore loads every persisted record into memory, marked recovered, without
// touching the store. It returns the restored records in export order.
func (r *Registry) Restore() ([]*peripheral.Record, error) {
	recs, err := r.st.ExportAll()
	if err != nil {
		return nil, fmt.Errorf("export persisted records: %w", err)
	}
	for _, rec := range recs {
		rec.Recovered = true
		rec.ConnHandle = peripheral.NoHandle
		rec.Status = peripheral.StatusOffline
		r.recs.Set(rec.ID, rec)
		r.byAddr.Set(peripheral.NormalizeAddr(rec.Address), rec.ID)
	}
	r.logger.WithField("count", len(recs)).Info("Restored peripherals from store")
	return recs, nil
}

// Purge drops every record from memory while leaving the store untouched, so
// a later start can restore them.
func (r *Registry) Purge() {
	for pair := r.recs.Oldest(); pair != nil; pair = pair.Next() {
		r.byAddr.Del(peripheral.NormalizeAddr(pair.Value.Address))
	}
	r.recs = orderedmap.New[string, *peripheral.Record]()
}
