package fleet

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/srg/bleherd/internal/notify"
	"github.com/srg/bleherd/internal/peripheral"
)

// subscribe wires the fleet's long-lived hub subscriptions. These live for
// the life of the Fleet; per-reload subscriptions are managed by the
// reconciler itself.
func (f *Fleet) subscribe() {
	f.hub.On(notify.TopicDiscovered, func(v any) {
		if d, ok := v.(notify.Discovered); ok {
			f.handleDiscovered(d)
		}
	})
	f.hub.On(notify.TopicDevStatus, func(v any) {
		if st, ok := v.(notify.DevStatus); ok {
			f.handleDevStatus(st)
		}
	})
}

// handleDiscovered applies the admission policy and kicks off association.
// Known peripherals reconnect regardless of the join window; unknown ones
// need an open window and the discovery handler's consent.
func (f *Fleet) handleDiscovered(d notify.Discovered) {
	f.mu.Lock()
	if f.state != StateReady {
		f.mu.Unlock()
		return
	}

	known, _ := f.reg.FindByAddress(d.Address)
	if known != nil && known.Connected() {
		f.mu.Unlock()
		return
	}
	if known == nil {
		if !d.Connectable || !f.pj.Open() {
			f.mu.Unlock()
			return
		}
		if f.onDiscovered != nil && !f.onDiscovered(d) {
			f.mu.Unlock()
			return
		}
	}

	addr := peripheral.NormalizeAddr(d.Address)
	if f.connecting[addr] {
		f.mu.Unlock()
		return
	}
	f.connecting[addr] = true
	f.mu.Unlock()

	go f.associate(d, known)
}

// associate connects, classifies and registers one peripheral. For known
// records this is a re-join: topology and handle are refreshed and a settled
// signal raised for any pending reconciliation.
func (f *Fleet) associate(d notify.Discovered, known *peripheral.Record) {
	addr := peripheral.NormalizeAddr(d.Address)
	defer func() {
		f.mu.Lock()
		delete(f.connecting, addr)
		f.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), f.cfg.ConnectTimeout)
	defer cancel()

	fresh, err := f.ctrl.Connect(ctx, d.Address)
	if err != nil {
		// The controller already raised a connect-error notification for
		// the reconciler; the event stream gets the wrapped failure.
		f.emitError("associate", wrapErr("associate "+d.Address, err))
		return
	}

	if known != nil {
		f.mu.Lock()
		known.ConnHandle = fresh.ConnHandle
		known.Services = fresh.Services
		known.Status = peripheral.StatusOnline
		var regErr error
		if known.Recovered {
			_, regErr = f.reg.Register(known)
		}
		f.mu.Unlock()
		if regErr != nil {
			f.emitError("associate", wrapErr("restore "+d.Address, regErr))
			return
		}
		f.hub.Emit(notify.TopicDevSettled, notify.DevSettled{Record: known})
		f.events.Send(Event{Type: EventInd, Ind: IndStatus, Address: known.Address, Data: known.Status})
		return
	}

	if class, ok := f.plugins.Examine(fresh, f.ctrl); ok {
		f.logger.WithFields(logrus.Fields{
			"address": fresh.Address,
			"class":   class,
		}).Debug("Incoming peripheral classified")
	}

	f.mu.Lock()
	_, err = f.reg.Register(fresh)
	f.mu.Unlock()
	if err != nil {
		dctx, dcancel := context.WithTimeout(context.Background(), f.cfg.CallTimeout)
		_ = f.ctrl.Disconnect(dctx, fresh)
		dcancel()
		f.emitError("associate", wrapErr("register "+d.Address, err))
		return
	}
	f.events.Send(Event{Type: EventInd, Ind: IndIncoming, Address: fresh.Address, Data: fresh.Summarize()})
}

// handleDevStatus mirrors raw status indications into registry records and
// the event stream.
func (f *Fleet) handleDevStatus(st notify.DevStatus) {
	f.mu.Lock()
	quiet := f.resetting || f.state == StateStopping
	rec, _ := f.reg.FindByAddress(st.Address)
	if rec != nil {
		rec.Status = st.Status
		if st.Status == peripheral.StatusOffline {
			rec.ConnHandle = peripheral.NoHandle
		}
	}
	f.mu.Unlock()

	// Teardown-induced status churn is not fleet news.
	if rec != nil && !quiet {
		f.events.Send(Event{Type: EventInd, Ind: IndStatus, Address: rec.Address, Data: st.Status})
	}
}

// reconcile waits for every restored peripheral to settle (re-join, report
// idle, or fail to connect) and drops the ones that never came back.
func (f *Fleet) reconcile(restored []*peripheral.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), f.cfg.ReloadTimeout)
	defer cancel()

	settled, err := f.rec.AwaitReload(ctx, len(restored))
	if err != nil {
		f.emitError("reconcile", newErr(KindTimeout, "reconcile", err))
	}

	alive := make(map[string]bool, len(settled))
	for _, rec := range settled {
		alive[peripheral.NormalizeAddr(rec.Address)] = true
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range restored {
		if alive[peripheral.NormalizeAddr(rec.Address)] {
			continue
		}
		if current, ok := f.reg.Get(rec.ID); !ok || current.Connected() {
			continue
		}
		if err := f.reg.Unregister(rec); err != nil {
			f.logger.WithFields(logrus.Fields{
				"address": rec.Address,
				"error":   err,
			}).Warn("Drop unreachable peripheral after reload")
			continue
		}
		f.events.Send(Event{Type: EventInd, Ind: IndLeaving, Address: rec.Address})
	}
}
