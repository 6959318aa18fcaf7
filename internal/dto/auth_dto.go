package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type PinLoginRequest struct {
	DeviceID string `json:"device_id" validate:"required,min=1,max=128"`
	PIN      string `json:"pin"       validate:"required,numeric,min=4,max=8"`
}

type CreateUserRequest struct {
	Name             string `json:"name"               validate:"required,min=1,max=100"`
	PIN              string `json:"pin"                validate:"required,numeric,min=4,max=8"`
	Role             string `json:"role"               validate:"omitempty,oneof=admin manager technician"`
	Timezone         string `json:"timezone"           validate:"omitempty,timezone"`
	SessionStartTime string `json:"session_start_time" validate:"omitempty,datetime=15:04"`
	SessionEndTime   string `json:"session_end_time"   validate:"omitempty,datetime=15:04"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type UserResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Role             string `json:"role"`
	Timezone         string `json:"timezone,omitempty"`
	SessionStartTime string `json:"session_start_time,omitempty"`
	SessionEndTime   string `json:"session_end_time,omitempty"`
}

type LoginResponse struct {
	Token          string       `json:"token"`
	TokenType      string       `json:"token_type"`
	ExpiresIn      int          `json:"expires_in"`      // seconds, token lifetime
	SessionTimeout int          `json:"session_timeout"` // seconds of allowed inactivity
	User           UserResponse `json:"user"`
}
