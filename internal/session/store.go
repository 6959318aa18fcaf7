// Package session keeps the "who is using this device" state: which user
// unlocked it with a PIN and when they last did something. Expiry is lazy and
// sliding; every IsActive call either refreshes the stamp or ends the session.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Skarath13/cards/internal/clock"

	"github.com/rs/zerolog/log"
)

// Storage keys. Logout removes only the active flag and the stamp so the last
// user is still known to the device; Clear removes everything.
const (
	KeyUserID       = "user_id"
	KeyUserData     = "user_data"
	KeyActive       = "session_active"
	KeyLastActivity = "last_activity"
)

// DefaultTimeout is the inactivity window after which a session expires.
const DefaultTimeout = 30 * time.Minute

var ErrNoUser = errors.New("session: user id is required")

// UserSnapshot is the copy of the user record taken at PIN verification.
type UserSnapshot struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Role             string `json:"role"`
	Timezone         string `json:"timezone,omitempty"`
	SessionStartTime string `json:"session_start_time,omitempty"`
	SessionEndTime   string `json:"session_end_time,omitempty"`
}

// Store is the session of a single device.
type Store struct {
	storage Storage
	clock   clock.Clock
	timeout time.Duration

	// OnExpire, if set, runs after an idle session is cleared.
	OnExpire func()
}

// NewStore builds a Store. A zero timeout means DefaultTimeout; a nil clock
// means the wall clock.
func NewStore(storage Storage, c clock.Clock, timeout time.Duration) *Store {
	if c == nil {
		c = clock.Real{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Store{storage: storage, clock: c, timeout: timeout}
}

// Timeout returns the configured inactivity window.
func (s *Store) Timeout() time.Duration { return s.timeout }

// SetSession starts a session for user, replacing whatever was there.
func (s *Store) SetSession(ctx context.Context, user UserSnapshot) error {
	if user.ID == "" {
		return ErrNoUser
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("session: encode user: %w", err)
	}
	writes := []struct{ key, value string }{
		{KeyUserID, user.ID},
		{KeyUserData, string(data)},
		{KeyActive, "true"},
		{KeyLastActivity, s.stamp(s.clock.Now())},
	}
	for _, w := range writes {
		if err := s.storage.Set(ctx, w.key, w.value); err != nil {
			return fmt.Errorf("session: set %s: %w", w.key, err)
		}
	}
	return nil
}

// IsActive reports whether the session is live. A live session has its
// last_activity moved to now; an idle one is logged out.
// Storage failures are logged and treated as "not active".
func (s *Store) IsActive(ctx context.Context) bool {
	active, ok, err := s.storage.Get(ctx, KeyActive)
	if err != nil {
		log.Warn().Err(err).Msg("session: read active flag failed")
		return false
	}
	if !ok || active != "true" {
		return false
	}

	raw, ok, err := s.storage.Get(ctx, KeyLastActivity)
	if err != nil {
		log.Warn().Err(err).Msg("session: read last activity failed")
		return false
	}
	if !ok {
		return false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Warn().Str("value", raw).Msg("session: corrupt last activity stamp, logging out")
		_ = s.Logout(ctx)
		return false
	}

	now := s.clock.Now()
	if now.Sub(time.UnixMilli(ms)) > s.timeout {
		if err := s.Logout(ctx); err != nil {
			log.Warn().Err(err).Msg("session: logout of expired session failed")
		}
		if s.OnExpire != nil {
			s.OnExpire()
		}
		return false
	}

	if err := s.storage.Set(ctx, KeyLastActivity, s.stamp(now)); err != nil {
		log.Warn().Err(err).Msg("session: refresh last activity failed")
	}
	return true
}

// CurrentUser returns the snapshot of the signed-in user while the session is live.
func (s *Store) CurrentUser(ctx context.Context) (*UserSnapshot, bool) {
	if !s.IsActive(ctx) {
		return nil, false
	}
	raw, ok, err := s.storage.Get(ctx, KeyUserData)
	if err != nil || !ok {
		return nil, false
	}
	var u UserSnapshot
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		log.Warn().Err(err).Msg("session: corrupt user snapshot")
		return nil, false
	}
	return &u, true
}

// UserID returns the signed-in user's id while the session is live.
func (s *Store) UserID(ctx context.Context) (string, bool) {
	if !s.IsActive(ctx) {
		return "", false
	}
	id, ok, err := s.storage.Get(ctx, KeyUserID)
	if err != nil || !ok || id == "" {
		return "", false
	}
	return id, true
}

// Logout ends the session. The user id and snapshot are kept.
func (s *Store) Logout(ctx context.Context) error {
	return s.storage.Delete(ctx, KeyActive, KeyLastActivity)
}

// Clear removes every session key for the device.
func (s *Store) Clear(ctx context.Context) error {
	return s.storage.Delete(ctx, KeyUserID, KeyUserData, KeyActive, KeyLastActivity)
}

func (s *Store) stamp(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
