// Package plugin classifies discovered peripherals into vendor-defined
// device classes. A descriptor pairs a classifier with an optional extension
// method table and optional GATT definitions bootstrapped on registration.
//
// Extension behavior is never injected into records; it is looked up in the
// class's method table and invoked by name.
package plugin

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/bleherd/internal/gattdb"
	"github.com/srg/bleherd/internal/peripheral"
)

var (
	// ErrNoClassifier is returned when a descriptor lacks a classifier.
	ErrNoClassifier = errors.New("descriptor requires a classifier")
	// ErrNoMethod is returned when invoking an unknown extension method.
	ErrNoMethod = errors.New("extension method not found")
)

// Classifier decides whether a peripheral belongs to a device class.
type Classifier interface {
	Examine(rec *peripheral.Record, info *peripheral.BasicInfo) bool
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(rec *peripheral.Record, info *peripheral.BasicInfo) bool

// Examine implements Classifier.
func (f ClassifierFunc) Examine(rec *peripheral.Record, info *peripheral.BasicInfo) bool {
	return f(rec, info)
}

// Method is one extension method attached to a device class.
type Method func(rec *peripheral.Record, args ...any) (any, error)

// Descriptor declares one device class: how to recognize it, the behavior it
// extends records with, and the GATT vocabulary it brings along.
type Descriptor struct {
	Classifier Classifier
	Methods    map[string]Method
	GattDefs   map[gattdb.Kind][]gattdb.Definition
}

// InfoReader reads a string characteristic value from a connected peripheral.
type InfoReader interface {
	ReadString(rec *peripheral.Record, svcUUID, chrUUID string) (string, error)
}

// Registry holds registered descriptors in registration order.
type Registry struct {
	mu     sync.RWMutex
	gatt   *gattdb.DB
	logger *logrus.Logger
	descs  *orderedmap.OrderedMap[string, *Descriptor]
}

// NewRegistry creates a Registry bootstrapping GATT definitions into db.
func NewRegistry(db *gattdb.DB, logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{
		gatt:   db,
		logger: logger,
		descs:  orderedmap.New[string, *Descriptor](),
	}
}

// Support registers desc under className. Registering a structurally
// identical descriptor for the same class is a no-op returning false. A
// different descriptor under an existing name replaces it. Declared GATT
// definitions are bootstrapped on first registration.
func (r *Registry) Support(className string, desc *Descriptor) (bool, error) {
	if className == "" {
		return false, fmt.Errorf("%w: class name is empty", ErrNoClassifier)
	}
	if desc == nil || desc.Classifier == nil {
		return false, ErrNoClassifier
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.descs.Get(className); ok && descriptorsEqual(existing, desc) {
		r.logger.WithField("class", className).Debug("Descriptor already registered")
		return false, nil
	}

	for kind, defs := range desc.GattDefs {
		if err := r.gatt.Declare(kind, defs); err != nil {
			return false, fmt.Errorf("bootstrap %s definitions for class %q: %w", kind, className, err)
		}
	}

	r.descs.Set(className, desc)
	r.logger.WithFields(logrus.Fields{
		"class":   className,
		"methods": len(desc.Methods),
	}).Info("Registered device class")
	return true, nil
}

// Unsupport removes every entry whose stored descriptor equals desc and
// reports whether anything was removed.
func (r *Registry) Unsupport(desc *Descriptor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	var doomed []string
	for pair := r.descs.Oldest(); pair != nil; pair = pair.Next() {
		if descriptorsEqual(pair.Value, desc) {
			doomed = append(doomed, pair.Key)
		}
	}
	for _, name := range doomed {
		r.descs.Delete(name)
		r.logger.WithField("class", name).Info("Removed device class")
	}
	return len(doomed) > 0
}

// Examine offers rec with a freshly read basic-info snapshot to each
// registered classifier in registration order. The first match assigns the
// record's class name; no match leaves the record unclassified.
func (r *Registry) Examine(rec *peripheral.Record, reader InfoReader) (string, bool) {
	info := ReadBasicInfo(rec, reader)

	r.mu.RLock()
	type entry struct {
		name string
		desc *Descriptor
	}
	ordered := make([]entry, 0, r.descs.Len())
	for pair := r.descs.Oldest(); pair != nil; pair = pair.Next() {
		ordered = append(ordered, entry{pair.Key, pair.Value})
	}
	r.mu.RUnlock()

	for _, e := range ordered {
		if e.desc.Classifier.Examine(rec, info) {
			rec.Class = e.name
			r.logger.WithFields(logrus.Fields{
				"address": rec.Address,
				"class":   e.name,
			}).Info("Classified peripheral")
			return e.name, true
		}
	}
	return "", false
}

// Invoke runs the named extension method of rec's class against rec.
func (r *Registry) Invoke(rec *peripheral.Record, method string, args ...any) (any, error) {
	r.mu.RLock()
	desc, ok := r.descs.Get(rec.Class)
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: peripheral %s has no device class", ErrNoMethod, rec.Address)
	}
	fn, ok := desc.Methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrNoMethod, rec.Class, method)
	}
	return fn(rec, args...)
}

// ReadBasicInfo reads the standard Device Information characteristics into a
// snapshot. Unreadable fields stay empty; a nil reader yields an empty
// snapshot.
func ReadBasicInfo(rec *peripheral.Record, reader InfoReader) *peripheral.BasicInfo {
	info := &peripheral.BasicInfo{}
	if reader == nil {
		return info
	}
	read := func(svc, chr string, dst *string) {
		if v, err := reader.ReadString(rec, svc, chr); err == nil {
			*dst = v
		}
	}
	read(gattdb.SvcGenericAccess, gattdb.ChrDeviceName, &info.DevName)
	read(gattdb.SvcDeviceInformation, gattdb.ChrManufacturerName, &info.Manufacturer)
	read(gattdb.SvcDeviceInformation, gattdb.ChrModelNumber, &info.Model)
	read(gattdb.SvcDeviceInformation, gattdb.ChrSerialNumber, &info.Serial)
	read(gattdb.SvcDeviceInformation, gattdb.ChrFirmwareRev, &info.FirmwareRev)
	read(gattdb.SvcDeviceInformation, gattdb.ChrHardwareRev, &info.HardwareRev)
	read(gattdb.SvcDeviceInformation, gattdb.ChrSoftwareRev, &info.SoftwareRev)
	return info
}

// descriptorsEqual compares descriptors structurally: same classifier
// function, same method set by name and function identity, equal GATT
// definitions. Function identity uses the code pointer since funcs are not
// otherwise comparable.
func descriptorsEqual(a, b *Descriptor) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if !classifiersEqual(a.Classifier, b.Classifier) {
		return false
	}
	if len(a.Methods) != len(b.Methods) {
		return false
	}
	for name, fn := range a.Methods {
		other, ok := b.Methods[name]
		if !ok || reflect.ValueOf(fn).Pointer() != reflect.ValueOf(other).Pointer() {
			return false
		}
	}
	return reflect.DeepEqual(a.GattDefs, b.GattDefs)
}

// classifiersEqual compares classifiers. Function classifiers compare by
// code pointer (DeepEqual treats any two non-nil funcs as different);
// everything else compares structurally.
func classifiersEqual(a, b Classifier) bool {
	af, aok := a.(ClassifierFunc)
	bf, bok := b.(ClassifierFunc)
	if aok != bok {
		return false
	}
	if aok {
		return reflect.ValueOf(af).Pointer() == reflect.ValueOf(bf).Pointer()
	}
	return reflect.DeepEqual(a, b)
}
