// Package fleet orchestrates the lifecycle of a BLE peripheral fleet behind
// one radio controller: network start/stop/reset, the permit-join window,
// the persisted peripheral registry, device-class plugins and post-reset
// reconciliation.
package fleet

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/bleherd/internal/controller"
	"github.com/srg/bleherd/internal/controller/goble"
	"github.com/srg/bleherd/internal/gattdb"
	"github.com/srg/bleherd/internal/notify"
	"github.com/srg/bleherd/internal/permitjoin"
	"github.com/srg/bleherd/internal/plugin"
	"github.com/srg/bleherd/internal/registry"
	"github.com/srg/bleherd/internal/reload"
	"github.com/srg/bleherd/internal/store"
	"github.com/srg/bleherd/pkg/config"
)

// State is the lifecycle state of the fleet.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateStarting      State = "starting"
	StateReady         State = "ready"
	StateStopping      State = "stopping"
	StateStopped       State = "stopped"
)

// DiscoveryHandler decides whether a newly discovered, unknown peripheral is
// admitted for association. It replaces the default accept-all policy.
type DiscoveryHandler func(d notify.Discovered) bool

// Fleet drives the radio controller and owns all fleet state. Methods are
// safe for concurrent use; lifecycle transitions serialize on an internal
// mutex.
type Fleet struct {
	cfg    *config.Config
	logger *logrus.Logger

	ctrl    controller.Controller
	st      store.Store
	hub     *notify.Hub
	events  *notify.RingChannel[Event]
	reg     *registry.Registry
	plugins *plugin.Registry
	gatt    *gattdb.DB
	pj      *permitjoin.Controller
	rec     *reload.Reconciler

	mu           sync.Mutex
	state        State
	resetting    bool
	enabled      bool
	identity     *controller.Identity
	onDiscovered DiscoveryHandler
	connecting   map[string]bool
}

// ControllerFactory builds a controller reporting through the fleet's hub.
type ControllerFactory func(hub *notify.Hub, logger *logrus.Logger) controller.Controller

// New assembles a Fleet. A nil factory selects the go-ble controller; pass
// nil for logger to get one from cfg.
func New(cfg *config.Config, factory ControllerFactory, st store.Store, logger *logrus.Logger) *Fleet {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = cfg.NewLogger()
	}
	if factory == nil {
		factory = func(hub *notify.Hub, logger *logrus.Logger) controller.Controller {
			return goble.New(hub, logger)
		}
	}

	hub := notify.NewHub()
	gatt := gattdb.New()
	f := &Fleet{
		cfg:        cfg,
		logger:     logger,
		ctrl:       factory(hub, logger),
		st:         st,
		hub:        hub,
		events:     notify.NewRingChannel[Event](cfg.EventBuffer),
		reg:        registry.New(st, logger),
		plugins:    plugin.NewRegistry(gatt, logger),
		gatt:       gatt,
		rec:        reload.New(hub, logger),
		state:      StateUninitialized,
		connecting: make(map[string]bool),
	}
	f.pj = permitjoin.New(cfg.PermitJoinTick, f.permitJoinChanged, logger)
	gatt.SetRegChar(f.ctrl.RegChar)
	f.subscribe()
	return f
}

// NewDefault assembles a Fleet with the go-ble controller and the sqlite
// store from cfg.
func NewDefault(cfg *config.Config) (*Fleet, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	st, err := store.OpenSQLite(cfg.StorePath)
	if err != nil {
		return nil, newErr(KindStore, "open store", err)
	}
	return New(cfg, nil, st, nil), nil
}

// Events returns the outward notification stream. The stream never blocks
// producers; slow consumers lose the oldest events first.
func (f *Fleet) Events() <-chan Event {
	return f.events.C()
}

// State returns the current lifecycle state.
func (f *Fleet) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Start initializes the controller, builds the local radio identity, awaits
// controller readiness and begins scanning. Previously persisted peripherals
// are restored and reconciled in the background.
func (f *Fleet) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case StateStarting, StateReady:
		return newErr(KindAlreadyExists, "start", errAlreadyStarted)
	case StateStopping:
		return argErrf("start", "stop in progress")
	}
	f.state = StateStarting

	readyCh := make(chan struct{}, 1)
	token := f.hub.On(notify.TopicReady, func(any) {
		select {
		case readyCh <- struct{}{}:
		default:
		}
	})
	defer f.hub.Off(token)

	callCtx, cancel := context.WithTimeout(ctx, f.cfg.CallTimeout)
	identity, err := f.ctrl.Init(callCtx, f.cfg.Controller)
	cancel()
	if err != nil {
		f.state = StateUninitialized
		return wrapErr("start: init controller", err)
	}
	f.identity = identity

	select {
	case <-readyCh:
	case <-time.After(f.cfg.CallTimeout):
		f.state = StateUninitialized
		return newErr(KindTimeout, "start", errReadyTimeout)
	case <-ctx.Done():
		f.state = StateUninitialized
		return wrapErr("start", ctx.Err())
	}

	restored, err := f.reg.Restore()
	if err != nil {
		f.state = StateUninitialized
		return newErr(KindStore, "start: restore registry", err)
	}

	if err := f.ctrl.Scan(context.Background()); err != nil {
		f.state = StateUninitialized
		return wrapErr("start: scan", err)
	}
	f.enabled = true
	f.state = StateReady

	f.logger.WithFields(logrus.Fields{
		"address":  identity.Address,
		"restored": len(restored),
	}).Info("Fleet started")
	f.events.Send(Event{Type: EventReady})

	if len(restored) > 0 {
		go f.reconcile(restored)
	}
	return nil
}

// Stop disables permit-join, disconnects every registered peripheral one at
// a time in registration order, cancels any scan and closes the controller.
// On success the registry is purged; on cancel/close failure the pre-stop
// permit-join window and scan are restored, leaving the fleet fully running.
func (f *Fleet) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == StateStopped || f.state == StateUninitialized {
		return nil
	}
	prevState := f.state
	f.state = StateStopping

	preEnabled := f.enabled
	preDuration := f.pj.Duration()
	if err := f.pj.SetDuration(0); err != nil {
		// Zero is always valid; keep the compiler honest.
		f.logger.WithField("error", err).Warn("Disable permit-join during stop")
	}

	// Strictly sequential disconnect chain over every registered peripheral,
	// connected or not: each settlement, success or failure, gates the next.
	// Failures never abort the chain.
	for _, rec := range f.reg.All() {
		callCtx, cancel := context.WithTimeout(ctx, f.cfg.CallTimeout)
		err := f.ctrl.Disconnect(callCtx, rec)
		cancel()
		if err != nil {
			f.logger.WithFields(logrus.Fields{
				"address": rec.Address,
				"error":   err,
			}).Warn("Disconnect during stop failed")
		}
	}

	fail := func(op string, err error) error {
		// Compensate: restore the join window and resume scanning so the
		// fleet is fully running again, never half-stopped.
		f.enabled = preEnabled
		if preDuration > 0 {
			_ = f.pj.SetDuration(preDuration)
		}
		if preEnabled {
			if scanErr := f.ctrl.Scan(context.Background()); scanErr != nil {
				f.logger.WithField("error", scanErr).Error("Resume scan after failed stop")
			}
		}
		f.state = prevState
		return wrapErr(op, err)
	}

	if err := f.ctrl.CancelScan(); err != nil {
		return fail("stop: cancel scan", err)
	}
	if err := f.ctrl.Close(); err != nil {
		f.logger.WithField("error", err).Warn("Controller close failed, force-closing")
		if err := f.ctrl.ForceClose(); err != nil {
			return fail("stop: close controller", err)
		}
	}

	f.reg.Purge()
	f.enabled = false
	f.state = StateStopped
	f.logger.Info("Fleet stopped")
	return nil
}

// Reset stops and restarts the network, waiting a settling delay before
// returning.
func (f *Fleet) Reset(ctx context.Context) error {
	f.setResetting(true)
	err := f.Stop(ctx)
	f.setResetting(false)
	if err != nil {
		return err
	}
	if err := f.Start(ctx); err != nil {
		return err
	}

	select {
	case <-time.After(f.cfg.ResetSettle):
	case <-ctx.Done():
		return wrapErr("reset", ctx.Err())
	}
	f.logger.Info("Fleet reset complete")
	return nil
}

// Close is the shutdown coordinator for the hosting binary: best-effort stop
// and release of the store. Signal registration stays with the binary.
func (f *Fleet) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), f.cfg.CallTimeout)
	defer cancel()
	stopErr := f.Stop(ctx)

	f.pj.Close()
	if err := f.st.Close(); err != nil && stopErr == nil {
		stopErr = newErr(KindStore, "close store", err)
	}
	return stopErr
}

func (f *Fleet) setResetting(v bool) {
	f.mu.Lock()
	f.resetting = v
	f.mu.Unlock()
}

// permitJoinChanged fans one window change out to the event stream and the
// hub.
func (f *Fleet) permitJoinChanged(remaining int) {
	f.events.Send(Event{Type: EventPermitJoining, Remaining: remaining})
	f.hub.Emit(notify.TopicPermitJoin, notify.PermitJoin{Remaining: remaining})
}
