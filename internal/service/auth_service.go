package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Skarath13/cards/internal/config"
	"github.com/Skarath13/cards/internal/dto"
	"github.com/Skarath13/cards/internal/infra"
	"github.com/Skarath13/cards/internal/model"
	"github.com/Skarath13/cards/internal/repository"
	"github.com/Skarath13/cards/internal/session"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

var (
	// ErrInvalidPIN covers no match, an ambiguous match and lookup failures.
	ErrInvalidPIN     = errors.New("Invalid PIN")
	ErrSessionExpired = errors.New("Session expired")
	ErrPINInUse       = errors.New("PIN already assigned to another user")
)

// Roles: admin | manager | technician
const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleTechnician = "technician"
)

type AuthService interface {
	VerifyPIN(ctx context.Context, req dto.PinLoginRequest) (*dto.LoginResponse, error)
	Logout(ctx context.Context, deviceID string) error
	ResetPIN(ctx context.Context, deviceID string) error
	Current(ctx context.Context, deviceID string) (*dto.UserResponse, error)
	CreateUser(ctx context.Context, req dto.CreateUserRequest) (*dto.UserResponse, error)
	ListUsers(ctx context.Context) ([]dto.UserResponse, error)
}

type authService struct {
	repo     repository.UserRepository
	sessions *session.Manager
	cfg      *config.Config
}

func NewAuthService(repo repository.UserRepository, sessions *session.Manager, cfg *config.Config) AuthService {
	return &authService{repo: repo, sessions: sessions, cfg: cfg}
}

// VerifyPIN unlocks deviceID for the one active user holding pin.
func (s *authService) VerifyPIN(ctx context.Context, req dto.PinLoginRequest) (*dto.LoginResponse, error) {
	users, err := s.repo.FindByPIN(ctx, req.PIN)
	if err != nil {
		log.Error().Err(err).Str("device_id", req.DeviceID).Msg("auth: PIN lookup failed")
		infra.PinVerifications.WithLabelValues("error").Inc()
		return nil, ErrInvalidPIN
	}
	switch len(users) {
	case 1:
	case 0:
		infra.PinVerifications.WithLabelValues("no_match").Inc()
		return nil, ErrInvalidPIN
	default:
		log.Warn().Str("device_id", req.DeviceID).Msg("auth: PIN shared by more than one active user")
		infra.PinVerifications.WithLabelValues("ambiguous").Inc()
		return nil, ErrInvalidPIN
	}

	user := &users[0]
	if err := s.sessions.For(req.DeviceID).SetSession(ctx, snapshotOf(user)); err != nil {
		return nil, fmt.Errorf("auth: start session: %w", err)
	}

	token, err := s.generateToken(user, req.DeviceID)
	if err != nil {
		return nil, err
	}
	infra.PinVerifications.WithLabelValues("ok").Inc()
	log.Info().Str("user_id", user.ID.String()).Str("device_id", req.DeviceID).Msg("auth: device unlocked")

	return &dto.LoginResponse{
		Token:          token,
		TokenType:      "bearer",
		ExpiresIn:      s.tokenTTLHours() * 3600,
		SessionTimeout: int(s.cfg.SessionTimeout().Seconds()),
		User:           userResponse(user),
	}, nil
}

func (s *authService) Logout(ctx context.Context, deviceID string) error {
	return s.sessions.For(deviceID).Logout(ctx)
}

// ResetPIN forgets everything the device knows about its last user.
func (s *authService) ResetPIN(ctx context.Context, deviceID string) error {
	return s.sessions.For(deviceID).Clear(ctx)
}

func (s *authService) Current(ctx context.Context, deviceID string) (*dto.UserResponse, error) {
	snap, ok := s.sessions.For(deviceID).CurrentUser(ctx)
	if !ok {
		return nil, ErrSessionExpired
	}
	return &dto.UserResponse{
		ID:               snap.ID,
		Name:             snap.Name,
		Role:             snap.Role,
		Timezone:         snap.Timezone,
		SessionStartTime: snap.SessionStartTime,
		SessionEndTime:   snap.SessionEndTime,
	}, nil
}

// CreateUser refuses a PIN that an active user already holds, since a shared
// PIN can never be verified.
func (s *authService) CreateUser(ctx context.Context, req dto.CreateUserRequest) (*dto.UserResponse, error) {
	inUse, err := s.repo.PINInUse(ctx, req.PIN)
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, ErrPINInUse
	}
	user := &model.User{
		Name:             req.Name,
		PinCode:          req.PIN,
		Role:             req.Role,
		Timezone:         req.Timezone,
		SessionStartTime: req.SessionStartTime,
		SessionEndTime:   req.SessionEndTime,
	}
	if user.Role == "" {
		user.Role = RoleTechnician
	}
	if user.Timezone == "" {
		user.Timezone = s.cfg.BusinessTimezone
	}
	if user.SessionStartTime == "" {
		user.SessionStartTime = "09:00"
	}
	if user.SessionEndTime == "" {
		user.SessionEndTime = "19:00"
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	resp := userResponse(user)
	return &resp, nil
}

func (s *authService) ListUsers(ctx context.Context) ([]dto.UserResponse, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, userResponse(&users[i]))
	}
	return out, nil
}

func (s *authService) tokenTTLHours() int {
	if s.cfg.JWTExpirationHours <= 0 {
		return 12
	}
	return s.cfg.JWTExpirationHours
}

func (s *authService) generateToken(user *model.User, deviceID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":   user.ID.String(),
		"role":      user.Role,
		"device_id": deviceID,
		"exp":       now.Add(time.Duration(s.tokenTTLHours()) * time.Hour).Unix(),
		"iat":       now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func snapshotOf(u *model.User) session.UserSnapshot {
	return session.UserSnapshot{
		ID:               u.ID.String(),
		Name:             u.Name,
		Role:             u.Role,
		Timezone:         u.Timezone,
		SessionStartTime: u.SessionStartTime,
		SessionEndTime:   u.SessionEndTime,
	}
}

func userResponse(u *model.User) dto.UserResponse {
	return dto.UserResponse{
		ID:               u.ID.String(),
		Name:             u.Name,
		Role:             u.Role,
		Timezone:         u.Timezone,
		SessionStartTime: u.SessionStartTime,
		SessionEndTime:   u.SessionEndTime,
	}
}
