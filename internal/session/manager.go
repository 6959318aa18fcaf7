package session

import (
	"time"

	"github.com/Skarath13/cards/internal/clock"
)

const keyPrefix = "session:"

// Manager hands out per-device Stores over one shared Storage.
type Manager struct {
	storage  Storage
	clock    clock.Clock
	timeout  time.Duration
	onExpire func()
}

func NewManager(storage Storage, c clock.Clock, timeout time.Duration) *Manager {
	return &Manager{storage: storage, clock: c, timeout: timeout}
}

// OnExpire registers a callback for sessions that time out.
func (m *Manager) OnExpire(fn func()) { m.onExpire = fn }

// For returns the Store of deviceID. Keys live under "session:<device>:".
func (m *Manager) For(deviceID string) *Store {
	st := NewStore(WithPrefix(m.storage, keyPrefix+deviceID+":"), m.clock, m.timeout)
	st.OnExpire = m.onExpire
	return st
}
