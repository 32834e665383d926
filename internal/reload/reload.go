// Package reload reconciles previously known peripherals after a network
// reset. A reconciliation waits for an expected number of completion signals
// spread across three sources: idle device-status indications, internal
// settled signals, and controller connect errors.
package reload

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/srg/bleherd/internal/notify"
	"github.com/srg/bleherd/internal/peripheral"
)

// Reconciler aggregates settle/error signals from the hub.
type Reconciler struct {
	hub    *notify.Hub
	logger *logrus.Logger
}

// New creates a Reconciler over hub.
func New(hub *notify.Hub, logger *logrus.Logger) *Reconciler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Reconciler{hub: hub, logger: logger}
}

// AwaitReload blocks until expected completion signals have been observed and
// returns the accumulated peripherals. Counted signals are: an idle
// device-status indication (keyed by address, newest record wins), a settled
// signal (appended), and a connect error (counts, contributes no record).
//
// All three subscriptions are detached as one unit exactly once before the
// result is returned, whichever source satisfied the count. expected == 0
// resolves immediately with an empty set.
func (r *Reconciler) AwaitReload(ctx context.Context, expected int) ([]*peripheral.Record, error) {
	if expected <= 0 {
		return nil, nil
	}

	var (
		mu       sync.Mutex
		count    int
		byAddr   = make(map[string]*peripheral.Record)
		appended []*peripheral.Record
		resolved bool
		done     = make(chan struct{})
		tokens   []notify.Token
	)

	// resolve detaches all sources atomically and signals completion; the
	// caller holds mu.
	resolve := func() {
		if resolved {
			return
		}
		resolved = true
		r.hub.Off(tokens...)
		close(done)
	}

	// signal records one completion and resolves once the count is met.
	signal := func(apply func()) {
		mu.Lock()
		defer mu.Unlock()
		if resolved {
			return
		}
		if apply != nil {
			apply()
		}
		count++
		if count >= expected {
			resolve()
		}
	}

	// subscribe stores the token under mu before the handler can observe it
	// missing. A handler may fire and resolve between On and the lock; in
	// that case the late token is detached on the spot instead of leaking.
	subscribe := func(topic notify.Topic, fn func(any)) {
		tok := r.hub.On(topic, fn)
		mu.Lock()
		defer mu.Unlock()
		if resolved {
			r.hub.Off(tok)
			return
		}
		tokens = append(tokens, tok)
	}

	subscribe(notify.TopicDevStatus, func(v any) {
		st, ok := v.(notify.DevStatus)
		if !ok || st.Status != peripheral.StatusIdle {
			return
		}
		signal(func() {
			// Replaces any placeholder entry for the same device.
			byAddr[peripheral.NormalizeAddr(st.Address)] = st.Record
		})
	})
	subscribe(notify.TopicDevSettled, func(v any) {
		settled, ok := v.(notify.DevSettled)
		if !ok {
			return
		}
		signal(func() {
			appended = append(appended, settled.Record)
		})
	})
	subscribe(notify.TopicConnectErr, func(v any) {
		ce, ok := v.(notify.ConnectErr)
		if !ok {
			return
		}
		r.logger.WithFields(logrus.Fields{
			"address": ce.Address,
			"error":   ce.Err,
		}).Warn("Connect error during reload")
		signal(nil)
	})

	select {
	case <-done:
	case <-ctx.Done():
		mu.Lock()
		resolve()
		mu.Unlock()
		return nil, ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([]*peripheral.Record, 0, len(byAddr)+len(appended))
	for _, rec := range byAddr {
		if rec != nil {
			out = append(out, rec)
		}
	}
	out = append(out, appended...)
	r.logger.WithFields(logrus.Fields{
		"expected": expected,
		"settled":  len(out),
	}).Info("Reload reconciliation complete")
	return out, nil
}
