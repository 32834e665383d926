package controller

import (
	"errors"
	"fmt"
	"sync"

	"github.com/srg/bleherd/internal/gattdb"
	"github.com/srg/bleherd/internal/peripheral"
)

var (
	// ErrServiceExists is returned when mounting an already-exposed uuid.
	ErrServiceExists = errors.New("local service already mounted")
	// ErrInvalidService is returned for a malformed local service.
	ErrInvalidService = errors.New("invalid local service")
)

// LocalService is a GATT service hosted by the local radio.
type LocalService struct {
	UUID            string
	Name            string
	Characteristics []peripheral.Characteristic
}

// Identity is the local radio identity built during Init: address, role and
// the locally hosted services when the role allows hosting.
type Identity struct {
	Address     string
	AddressType peripheral.AddrType
	Role        Role

	mu       sync.Mutex
	services map[string]LocalService
}

// NewIdentity creates an identity with no mounted services.
func NewIdentity(addr string, addrType peripheral.AddrType, role Role) *Identity {
	return &Identity{
		Address:     addr,
		AddressType: addrType,
		Role:        role,
		services:    make(map[string]LocalService),
	}
}

// CanHost reports whether the role allows hosting local services.
func (id *Identity) CanHost() bool {
	return id.Role == RoleDual
}

// RegisterService mounts svc, rejecting an already-exposed uuid.
func (id *Identity) RegisterService(svc LocalService) error {
	code := gattdb.NormalizeUUID(svc.UUID)
	if code == "" {
		return fmt.Errorf("%w: missing uuid", ErrInvalidService)
	}

	id.mu.Lock()
	defer id.mu.Unlock()
	if _, ok := id.services[code]; ok {
		return fmt.Errorf("%w: %s", ErrServiceExists, code)
	}
	id.services[code] = svc
	return nil
}

// Services returns the mounted services keyed by canonical uuid.
func (id *Identity) Services() map[string]LocalService {
	id.mu.Lock()
	defer id.mu.Unlock()
	out := make(map[string]LocalService, len(id.services))
	for k, v := range id.services {
		out[k] = v
	}
	return out
}
