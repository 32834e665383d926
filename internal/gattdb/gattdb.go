// Package gattdb maintains the bidirectional name/code tables for GATT
// services and characteristics. Tables are seeded with the well-known
// Bluetooth SIG assignments and can be extended at runtime; extensions are
// append-only and reject name/code collisions.
package gattdb

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Kind selects which definition table an operation targets.
type Kind string

const (
	KindService        Kind = "service"
	KindCharacteristic Kind = "characteristic"
)

var (
	// ErrInvalidKind is returned for a kind outside service/characteristic.
	ErrInvalidKind = errors.New("invalid definition kind")
	// ErrConflict is returned when a definition collides with a different
	// existing name or code.
	ErrConflict = errors.New("definition conflict")
)

// Definition declares one symbolic name for a UUID. Characteristic
// definitions may additionally carry decode parameters and type info, in
// which case the declaration is forwarded to the radio controller as a
// characteristic-type registration.
type Definition struct {
	UUID   string   `yaml:"uuid" json:"uuid"`
	Name   string   `yaml:"name" json:"name"`
	Params []string `yaml:"params,omitempty" json:"params,omitempty"`
	Types  []string `yaml:"types,omitempty" json:"types,omitempty"`
}

// RegCharFunc forwards a characteristic-type registration downstream.
type RegCharFunc func(def Definition, code string) error

type table struct {
	nameToCode map[string]string
	codeToName map[string]string
}

func newTable(seed map[string]string) *table {
	t := &table{
		nameToCode: make(map[string]string, len(seed)),
		codeToName: make(map[string]string, len(seed)),
	}
	for code, name := range seed {
		t.nameToCode[name] = code
		t.codeToName[code] = name
	}
	return t
}

// extend adds one name<->code pair, rejecting collisions with different
// existing entries. Re-declaring an identical pair is a no-op.
func (t *table) extend(name, code string) error {
	if existing, ok := t.nameToCode[name]; ok && existing != code {
		return fmt.Errorf("%w: name %q already maps to code %q", ErrConflict, name, existing)
	}
	if existing, ok := t.codeToName[code]; ok && existing != name {
		return fmt.Errorf("%w: code %q already maps to name %q", ErrConflict, code, existing)
	}
	t.nameToCode[name] = code
	t.codeToName[code] = name
	return nil
}

// DB holds the service and characteristic tables.
type DB struct {
	mu      sync.RWMutex
	svc     *table
	chr     *table
	regChar RegCharFunc
}

// New creates a DB seeded with the standard SIG assignments.
func New() *DB {
	return &DB{
		svc: newTable(sigServices),
		chr: newTable(sigCharacteristics),
	}
}

// SetRegChar installs the downstream characteristic-type registration hook.
// A nil hook disables forwarding.
func (db *DB) SetRegChar(fn RegCharFunc) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.regChar = fn
}

// Declare extends the table for kind with the given definitions. Each UUID is
// normalized to its canonical code first. A definition whose name or code
// collides with a different existing entry fails with ErrConflict; earlier
// definitions in the same call remain applied.
func (db *DB) Declare(kind Kind, defs []Definition) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var t *table
	switch kind {
	case KindService:
		t = db.svc
	case KindCharacteristic:
		t = db.chr
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	for _, def := range defs {
		code := NormalizeUUID(def.UUID)
		if code == "" || def.Name == "" {
			return fmt.Errorf("%w: definition requires uuid and name", ErrInvalidKind)
		}
		if err := t.extend(def.Name, code); err != nil {
			return err
		}
		if kind == KindCharacteristic && db.regChar != nil && len(def.Params) > 0 && len(def.Types) > 0 {
			if err := db.regChar(def, code); err != nil {
				return fmt.Errorf("characteristic registration for %q: %w", code, err)
			}
		}
	}
	return nil
}

// ServiceName resolves a service UUID to its symbolic name, or "".
func (db *DB) ServiceName(uuid string) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.svc.codeToName[NormalizeUUID(uuid)]
}

// CharacteristicName resolves a characteristic UUID to its symbolic name, or "".
func (db *DB) CharacteristicName(uuid string) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.chr.codeToName[NormalizeUUID(uuid)]
}

// ServiceCode resolves a symbolic service name to its canonical code, or "".
func (db *DB) ServiceCode(name string) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.svc.nameToCode[name]
}

// CharacteristicCode resolves a symbolic characteristic name to its canonical
// code, or "".
func (db *DB) CharacteristicCode(name string) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.chr.nameToCode[name]
}

const sigBaseSuffix = "00001000800000805f9b34fb"

// NormalizeUUID converts a UUID string to canonical form: lowercase, no
// dashes or braces, 0x prefix stripped. Full 128-bit UUIDs in the Bluetooth
// SIG base range collapse to their 16-bit short form.
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(strings.TrimSpace(uuid))
	u = strings.Trim(u, "{}")
	u = strings.ReplaceAll(u, "-", "")
	u = strings.TrimPrefix(u, "0x")

	// 0000xxxx-0000-1000-8000-00805f9b34fb -> xxxx
	if len(u) == 32 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, sigBaseSuffix) {
		return u[4:8]
	}
	return u
}
