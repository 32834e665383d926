// Package goble implements the radio controller over go-ble. It owns the
// scan loop, connection establishment and GATT discovery, and reports
// discoveries, status changes and connect failures through the hub.
package goble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/bleherd/internal/controller"
	"github.com/srg/bleherd/internal/gattdb"
	"github.com/srg/bleherd/internal/notify"
	"github.com/srg/bleherd/internal/peripheral"
)

type conn struct {
	client  ble.Client
	profile *ble.Profile
	addr    string
}

// Adapter is the production controller.Controller backed by go-ble.
type Adapter struct {
	hub    *notify.Hub
	logger *logrus.Logger

	mu         sync.Mutex
	dev        ble.Device
	identity   *controller.Identity
	scanCancel context.CancelFunc
	scan       controller.ScanSettings
	link       controller.LinkSettings
	conns      map[int]*conn
	nextHandle int
	charTypes  map[string]gattdb.Definition
	closed     bool
}

// New creates an Adapter reporting through hub.
func New(hub *notify.Hub, logger *logrus.Logger) *Adapter {
	if logger == nil {
		logger = logrus.New()
	}
	return &Adapter{
		hub:       hub,
		logger:    logger,
		conns:     make(map[int]*conn),
		charTypes: make(map[string]gattdb.Definition),
	}
}

// Init brings the HCI device up, publishes it as the default device and
// emits the ready notification. A closed adapter can be initialized again,
// so a network reset reuses the same Adapter.
func (a *Adapter) Init(ctx context.Context, cfg controller.SubConfig) (*controller.Identity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dev != nil {
		return a.identity, nil
	}
	a.closed = false

	dev, err := DeviceFactory(cfg.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("bring up radio: %w", err)
	}
	ble.SetDefaultDevice(dev)
	a.dev = dev
	a.scan = cfg.Scan
	a.link = cfg.Link
	a.identity = controller.NewIdentity(localAddress(dev), peripheral.AddrPublic, cfg.Role)

	a.logger.WithFields(logrus.Fields{
		"address": a.identity.Address,
		"role":    cfg.Role,
	}).Info("Radio controller initialized")

	a.hub.Emit(notify.TopicReady, struct{}{})
	return a.identity, nil
}

// localAddress extracts the controller address when the platform device
// exposes one.
func localAddress(dev ble.Device) string {
	type addressed interface{ Address() ble.Addr }
	if d, ok := dev.(addressed); ok {
		return d.Address().String()
	}
	return ""
}

func (a *Adapter) SetScanParams(s controller.ScanSettings) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scan = s
	return nil
}

func (a *Adapter) SetLinkParams(s controller.LinkSettings) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.link = s
	return nil
}

// Scan starts the discovery loop in its own goroutine and returns once it is
// running. A scan already in flight is left alone.
func (a *Adapter) Scan(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dev == nil || a.closed {
		return controller.ErrClosed
	}
	if a.scanCancel != nil {
		return nil
	}

	scanCtx, cancel := context.WithCancel(ctx)
	a.scanCancel = cancel
	dup := a.scan.Duplicates

	go func() {
		err := a.dev.Scan(scanCtx, dup, a.handleAdvertisement)
		if err != nil && scanCtx.Err() == nil {
			a.logger.WithField("error", err).Warn("Scan loop terminated")
			a.hub.Emit(notify.TopicError, err)
		}
	}()

	a.logger.Debug("Scan loop started")
	return nil
}

// CancelScan stops the discovery loop. Cancelling an idle controller is a
// no-op.
func (a *Adapter) CancelScan() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.scanCancel != nil {
		a.scanCancel()
		a.scanCancel = nil
		a.logger.Debug("Scan loop cancelled")
	}
	return nil
}

func (a *Adapter) handleAdvertisement(adv ble.Advertisement) {
	a.hub.Emit(notify.TopicDiscovered, notify.Discovered{
		Address:     adv.Addr().String(),
		AddressType: peripheral.AddrPublic,
		Name:        adv.LocalName(),
		RSSI:        adv.RSSI(),
		Connectable: adv.Connectable(),
	})
}

// Connect dials addr, discovers the full profile and returns a populated
// record. Failures are also emitted as connect-error notifications.
func (a *Adapter) Connect(ctx context.Context, addr string) (*peripheral.Record, error) {
	client, err := ble.Dial(ctx, ble.NewAddr(addr))
	if err != nil {
		err = fmt.Errorf("connect to %s: %w", addr, err)
		a.hub.Emit(notify.TopicConnectErr, notify.ConnectErr{Address: addr, Err: err})
		return nil, err
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		client.CancelConnection()
		err = fmt.Errorf("discover profile of %s: %w", addr, err)
		a.hub.Emit(notify.TopicConnectErr, notify.ConnectErr{Address: addr, Err: err})
		return nil, err
	}

	a.mu.Lock()
	a.nextHandle++
	handle := a.nextHandle
	a.conns[handle] = &conn{client: client, profile: profile, addr: addr}
	a.mu.Unlock()

	rec := &peripheral.Record{
		Address:     addr,
		AddressType: peripheral.AddrPublic,
		ConnHandle:  handle,
		Status:      peripheral.StatusOnline,
		Services:    topologyFromProfile(profile),
	}

	go a.watchDisconnect(handle, addr, client)

	a.logger.WithFields(logrus.Fields{
		"address":  addr,
		"handle":   handle,
		"services": len(rec.Services),
	}).Info("Peripheral connected")
	return rec, nil
}

// watchDisconnect emits an offline status once the link drops.
func (a *Adapter) watchDisconnect(handle int, addr string, client ble.Client) {
	<-client.Disconnected()

	a.mu.Lock()
	delete(a.conns, handle)
	a.mu.Unlock()

	a.logger.WithField("address", addr).Info("Peripheral link dropped")
	a.hub.Emit(notify.TopicDevStatus, notify.DevStatus{
		Address: addr,
		Status:  peripheral.StatusOffline,
	})
}

// Disconnect tears down the connection held by rec and clears its handle.
func (a *Adapter) Disconnect(ctx context.Context, rec *peripheral.Record) error {
	a.mu.Lock()
	c, ok := a.conns[rec.ConnHandle]
	if ok {
		delete(a.conns, rec.ConnHandle)
	}
	a.mu.Unlock()

	rec.ConnHandle = peripheral.NoHandle
	rec.Status = peripheral.StatusOffline
	if !ok {
		return nil
	}
	if err := c.client.CancelConnection(); err != nil {
		return fmt.Errorf("disconnect %s: %w", rec.Address, err)
	}
	return nil
}

// ReadString reads a characteristic value as a trimmed string.
func (a *Adapter) ReadString(rec *peripheral.Record, svcUUID, chrUUID string) (string, error) {
	a.mu.Lock()
	c, ok := a.conns[rec.ConnHandle]
	a.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("peripheral %s is not connected", rec.Address)
	}

	chr := findCharacteristic(c.profile, svcUUID, chrUUID)
	if chr == nil {
		return "", fmt.Errorf("characteristic %s/%s not found on %s", svcUUID, chrUUID, rec.Address)
	}
	data, err := c.client.ReadCharacteristic(chr)
	if err != nil {
		return "", fmt.Errorf("read %s on %s: %w", chrUUID, rec.Address, err)
	}
	return strings.TrimRight(string(data), "\x00"), nil
}

// RegChar remembers a vendor characteristic-type registration for decode.
func (a *Adapter) RegChar(def gattdb.Definition, code string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.charTypes[code] = def
	a.logger.WithFields(logrus.Fields{
		"uuid": code,
		"name": def.Name,
	}).Debug("Registered characteristic type")
	return nil
}

// Close cancels any scan, disconnects every peripheral and stops the HCI
// device.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	if a.scanCancel != nil {
		a.scanCancel()
		a.scanCancel = nil
	}
	conns := make([]*conn, 0, len(a.conns))
	for _, c := range a.conns {
		conns = append(conns, c)
	}
	a.conns = make(map[int]*conn)
	dev := a.dev
	a.dev = nil
	a.mu.Unlock()

	var firstErr error
	for _, c := range conns {
		if err := c.client.CancelConnection(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("disconnect %s during close: %w", c.addr, err)
		}
	}
	if dev != nil {
		if err := dev.Stop(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop radio: %w", err)
		}
	}
	if firstErr == nil {
		a.logger.Info("Radio controller closed")
	}
	return firstErr
}

// ForceClose tears everything down ignoring individual failures.
func (a *Adapter) ForceClose() error {
	a.mu.Lock()
	a.closed = true
	if a.scanCancel != nil {
		a.scanCancel()
		a.scanCancel = nil
	}
	conns := a.conns
	a.conns = make(map[int]*conn)
	dev := a.dev
	a.dev = nil
	a.mu.Unlock()

	for _, c := range conns {
		_ = c.client.CancelConnection()
	}
	if dev != nil {
		_ = dev.Stop()
	}
	a.logger.Warn("Radio controller force-closed")
	return nil
}

// topologyFromProfile flattens a discovered ble profile into the record
// topology, preserving discovery order.
func topologyFromProfile(profile *ble.Profile) []peripheral.Service {
	out := make([]peripheral.Service, 0, len(profile.Services))
	for _, svc := range profile.Services {
		s := peripheral.Service{
			UUID:   gattdb.NormalizeUUID(svc.UUID.String()),
			Handle: svc.Handle,
		}
		for _, chr := range svc.Characteristics {
			s.Characteristics = append(s.Characteristics, peripheral.Characteristic{
				UUID:   gattdb.NormalizeUUID(chr.UUID.String()),
				Handle: chr.Handle,
			})
		}
		out = append(out, s)
	}
	return out
}

func findCharacteristic(profile *ble.Profile, svcUUID, chrUUID string) *ble.Characteristic {
	wantSvc := gattdb.NormalizeUUID(svcUUID)
	wantChr := gattdb.NormalizeUUID(chrUUID)
	for _, svc := range profile.Services {
		if gattdb.NormalizeUUID(svc.UUID.String()) != wantSvc {
			continue
		}
		for _, chr := range svc.Characteristics {
			if gattdb.NormalizeUUID(chr.UUID.String()) == wantChr {
				return chr
			}
		}
	}
	return nil
}
