package service

import (
	"context"
	"testing"
	"time"

	"github.com/Skarath13/cards/internal/clock"
	"github.com/Skarath13/cards/internal/config"
	"github.com/Skarath13/cards/internal/dto"
	"github.com/Skarath13/cards/internal/session"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture() (*stubUserRepo, *session.Manager, *clock.Mock, AuthService) {
	repo := &stubUserRepo{}
	mc := clock.NewMock(testNow)
	sessions := session.NewManager(session.NewMemoryStorage(), mc, 30*time.Minute)
	cfg := &config.Config{
		JWTSecret:             "test-secret",
		JWTExpirationHours:    12,
		SessionTimeoutMinutes: 30,
		BusinessTimezone:      "America/Los_Angeles",
	}
	return repo, sessions, mc, NewAuthService(repo, sessions, cfg)
}

func TestVerifyPIN_ExactlyOneMatchStartsSession(t *testing.T) {
	repo, sessions, _, svc := newAuthFixture()
	alice := repo.add("Alice", "1234", true)
	ctx := context.Background()

	resp, err := svc.VerifyPIN(ctx, dto.PinLoginRequest{DeviceID: "tablet-1", PIN: "1234"})
	require.NoError(t, err)
	assert.Equal(t, alice.ID.String(), resp.User.ID)
	assert.Equal(t, 1800, resp.SessionTimeout)
	assert.Equal(t, "bearer", resp.TokenType)

	store := sessions.For("tablet-1")
	assert.True(t, store.IsActive(ctx))
	id, ok := store.UserID(ctx)
	require.True(t, ok)
	assert.Equal(t, alice.ID.String(), id)

	parsed, err := jwt.Parse(resp.Token, func(*jwt.Token) (interface{}, error) { return []byte("test-secret"), nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "tablet-1", claims["device_id"])
	assert.Equal(t, alice.ID.String(), claims["user_id"])
}

func TestVerifyPIN_RejectsNoneAmbiguousAndErrors(t *testing.T) {
	repo, sessions, _, svc := newAuthFixture()
	repo.add("Alice", "1111", true)
	repo.add("Bob", "1111", true)
	repo.add("Carol", "2222", false)
	ctx := context.Background()

	for _, pin := range []string{"9999", "1111", "2222"} {
		_, err := svc.VerifyPIN(ctx, dto.PinLoginRequest{DeviceID: "tablet-1", PIN: pin})
		assert.ErrorIs(t, err, ErrInvalidPIN, pin)
	}

	repo.findErr = errDBDown
	_, err := svc.VerifyPIN(ctx, dto.PinLoginRequest{DeviceID: "tablet-1", PIN: "1111"})
	assert.ErrorIs(t, err, ErrInvalidPIN)

	assert.False(t, sessions.For("tablet-1").IsActive(ctx))
}

func TestCurrent_ExpiresAfterInactivity(t *testing.T) {
	repo, _, mc, svc := newAuthFixture()
	repo.add("Alice", "1234", true)
	ctx := context.Background()

	_, err := svc.VerifyPIN(ctx, dto.PinLoginRequest{DeviceID: "tablet-1", PIN: "1234"})
	require.NoError(t, err)

	me, err := svc.Current(ctx, "tablet-1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", me.Name)

	mc.Advance(31 * time.Minute)
	_, err = svc.Current(ctx, "tablet-1")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestLogoutAndResetPIN(t *testing.T) {
	repo := &stubUserRepo{}
	storage := session.NewMemoryStorage()
	sessions := session.NewManager(storage, clock.NewMock(testNow), 30*time.Minute)
	svc := NewAuthService(repo, sessions, &config.Config{JWTSecret: "test-secret"})
	repo.add("Alice", "1234", true)
	ctx := context.Background()
	_, err := svc.VerifyPIN(ctx, dto.PinLoginRequest{DeviceID: "tablet-1", PIN: "1234"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, "tablet-1"))
	assert.False(t, sessions.For("tablet-1").IsActive(ctx))
	// logout keeps the last user for the lock screen
	_, ok, err := storage.Get(ctx, "session:tablet-1:"+session.KeyUserID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.ResetPIN(ctx, "tablet-1"))
	_, ok, err = storage.Get(ctx, "session:tablet-1:"+session.KeyUserID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateUser_DefaultsAndDuplicatePIN(t *testing.T) {
	repo, _, _, svc := newAuthFixture()
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, dto.CreateUserRequest{Name: "Dana", PIN: "4321"})
	require.NoError(t, err)
	assert.Equal(t, RoleTechnician, u.Role)
	assert.Equal(t, "America/Los_Angeles", u.Timezone)
	assert.Equal(t, "09:00", u.SessionStartTime)
	assert.Equal(t, "19:00", u.SessionEndTime)

	_, err = svc.CreateUser(ctx, dto.CreateUserRequest{Name: "Eve", PIN: "4321"})
	assert.ErrorIs(t, err, ErrPINInUse)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Len(t, repo.users, 1)
}
