package fleet

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/srg/bleherd/internal/controller"
	"github.com/srg/bleherd/internal/gattdb"
	"github.com/srg/bleherd/internal/notify"
	"github.com/srg/bleherd/internal/peripheral"
	"github.com/srg/bleherd/internal/plugin"
)

// Find resolves a peripheral by hardware address (string, canonicalized) or
// live connection handle (int). An absent peripheral resolves to nil without
// error; any other key type fails with an argument error.
func (f *Fleet) Find(key any) (*peripheral.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findLocked(key)
}

func (f *Fleet) findLocked(key any) (*peripheral.Record, error) {
	switch k := key.(type) {
	case string:
		rec, _ := f.reg.FindByAddress(k)
		return rec, nil
	case int:
		rec, _ := f.reg.FindByHandle(k)
		return rec, nil
	default:
		return nil, argErrf("find", "address string or connection handle expected, got %T", key)
	}
}

// List summarizes registered peripherals. A nil key lists everything; a
// string or a slice of strings resolves each address via Find, including
// only matches. Any other key type fails with an argument error.
func (f *Fleet) List(key any) ([]peripheral.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var recs []*peripheral.Record
	switch k := key.(type) {
	case nil:
		recs = f.reg.All()
	case string:
		if rec, _ := f.reg.FindByAddress(k); rec != nil {
			recs = append(recs, rec)
		}
	case []string:
		for _, addr := range k {
			if rec, _ := f.reg.FindByAddress(addr); rec != nil {
				recs = append(recs, rec)
			}
		}
	default:
		return nil, argErrf("list", "no argument, address string or []string expected, got %T", key)
	}

	out := make([]peripheral.Summary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Summarize())
	}
	return out, nil
}

// Remove disconnects (when connected) and unregisters a peripheral, then
// emits a device-leaving indication. Removing an unknown peripheral is a
// no-op.
func (f *Fleet) Remove(ctx context.Context, key any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, err := f.findLocked(key)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}

	if rec.Connected() {
		callCtx, cancel := context.WithTimeout(ctx, f.cfg.CallTimeout)
		err := f.ctrl.Disconnect(callCtx, rec)
		cancel()
		if err != nil {
			return wrapErr("remove: disconnect", err)
		}
	}
	if err := f.reg.Unregister(rec); err != nil {
		return wrapErr("remove: unregister", err)
	}
	f.events.Send(Event{Type: EventInd, Ind: IndLeaving, Address: rec.Address})
	return nil
}

// PermitJoin opens (or with zero closes) the device-association window for
// the given number of seconds. Valid only while the network is ready.
func (f *Fleet) PermitJoin(seconds int) error {
	f.mu.Lock()
	state := f.state
	f.mu.Unlock()
	if state != StateReady {
		return argErrf("permit join", "network is %s, not ready", state)
	}
	return wrapErr("permit join", f.pj.SetDuration(seconds))
}

// PermitJoinRemaining reports the seconds left in the join window.
func (f *Fleet) PermitJoinRemaining() int {
	return f.pj.Duration()
}

// Declare extends the GATT definition tables. Characteristic definitions
// carrying decode parameters are forwarded to the controller.
func (f *Fleet) Declare(kind gattdb.Kind, defs []gattdb.Definition) error {
	return wrapErr("declare", f.gatt.Declare(kind, defs))
}

// Mount exposes a local GATT service. Only valid when the radio role can
// host services; re-mounting an already-exposed uuid fails.
func (f *Fleet) Mount(svc controller.LocalService) error {
	f.mu.Lock()
	identity := f.identity
	f.mu.Unlock()

	if identity == nil {
		return argErrf("mount", "network not started")
	}
	if !identity.CanHost() {
		return newErr(KindNotSupported, "mount", errHostingUnsupported)
	}
	return wrapErr("mount", identity.RegisterService(svc))
}

// TuneScan applies new scan settings.
func (f *Fleet) TuneScan(s controller.ScanSettings) error {
	if s.Interval < 0 || s.Window < 0 || s.Window > s.Interval && s.Interval != 0 {
		return argErrf("tune scan", "window %v must fit interval %v", s.Window, s.Interval)
	}
	return wrapErr("tune scan", f.ctrl.SetScanParams(s))
}

// TuneLink applies new link settings.
func (f *Fleet) TuneLink(s controller.LinkSettings) error {
	if s.Interval < 0 || s.Latency < 0 || s.Timeout < 0 {
		return argErrf("tune link", "negative link settings")
	}
	return wrapErr("tune link", f.ctrl.SetLinkParams(s))
}

// Support registers a device-class descriptor. Re-registering a structurally
// identical descriptor is a no-op returning false.
func (f *Fleet) Support(className string, desc *plugin.Descriptor) (bool, error) {
	ok, err := f.plugins.Support(className, desc)
	return ok, wrapErr("support", err)
}

// Unsupport removes descriptors equal to desc and reports whether anything
// was removed.
func (f *Fleet) Unsupport(desc *plugin.Descriptor) bool {
	return f.plugins.Unsupport(desc)
}

// Invoke runs a class extension method against a registered peripheral.
func (f *Fleet) Invoke(key any, method string, args ...any) (any, error) {
	rec, err := f.Find(key)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, argErrf("invoke", "peripheral not found")
	}
	out, err := f.plugins.Invoke(rec, method, args...)
	return out, wrapErr("invoke", err)
}

// OnDiscovered overrides the default accept-all admission policy for
// newly discovered, unknown peripherals.
func (f *Fleet) OnDiscovered(handler DiscoveryHandler) {
	f.mu.Lock()
	f.onDiscovered = handler
	f.mu.Unlock()
}

func (f *Fleet) emitError(op string, err error) {
	f.logger.WithFields(logrus.Fields{
		"op":    op,
		"error": err,
	}).Error("Asynchronous fleet failure")
	f.events.Send(Event{Type: EventError, Err: err})
	f.hub.Emit(notify.TopicError, err)
}
