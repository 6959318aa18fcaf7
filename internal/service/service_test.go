package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Skarath13/cards/internal/bizdate"
	"github.com/Skarath13/cards/internal/clock"
	"github.com/Skarath13/cards/internal/infra"
	"github.com/Skarath13/cards/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ── Shared helpers ────────────────────────────────────────────────────────────

var testNow = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := infra.NewDatabase(infra.DriverSQLite, dsn)
	require.NoError(t, err)
	require.NoError(t, infra.RunMigrations(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestCalendar() (*bizdate.Calendar, *clock.Mock) {
	mc := clock.NewMock(testNow)
	return bizdate.MustNew("UTC", mc), mc
}

// ── Stub user repository ──────────────────────────────────────────────────────

type stubUserRepo struct {
	mu      sync.Mutex
	users   []model.User
	findErr error
}

func (r *stubUserRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Active = true
	r.users = append(r.users, *u)
	return nil
}

func (r *stubUserRepo) FindByPIN(_ context.Context, pin string) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	var out []model.User
	for _, u := range r.users {
		if u.Active && u.PinCode == pin {
			out = append(out, u)
			if len(out) == 2 {
				break
			}
		}
	}
	return out, nil
}

func (r *stubUserRepo) List(_ context.Context) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.User(nil), r.users...), nil
}

func (r *stubUserRepo) PINInUse(ctx context.Context, pin string) (bool, error) {
	users, err := r.FindByPIN(ctx, pin)
	return len(users) > 0, err
}

func (r *stubUserRepo) add(name, pin string, active bool) model.User {
	u := model.User{ID: uuid.New(), Name: name, PinCode: pin, Role: RoleTechnician, Active: active}
	r.mu.Lock()
	r.users = append(r.users, u)
	r.mu.Unlock()
	return u
}

var errDBDown = errors.New("connection refused")
