package handler

import (
	"errors"
	"net/http"

	"github.com/Skarath13/cards/internal/apierror"
	"github.com/Skarath13/cards/internal/dto"
	"github.com/Skarath13/cards/internal/middleware"
	"github.com/Skarath13/cards/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct{ svc service.AuthService }

func NewAuthHandler(svc service.AuthService) *AuthHandler { return &AuthHandler{svc: svc} }

// PinLogin godoc
// @Summary Unlock a device with a PIN
// @Tags auth
// @Accept json
// @Produce json
// @Param body body dto.PinLoginRequest true "Device and PIN"
// @Success 200 {object} dto.LoginResponse
// @Failure 401 {object} apierror.APIError
// @Router /v1/auth/pin [post]
func (h *AuthHandler) PinLogin(c *gin.Context) {
	var req dto.PinLoginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.VerifyPIN(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPIN) {
			c.JSON(http.StatusUnauthorized, apierror.New(err.Error()))
			return
		}
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Logout godoc
// @Summary Lock the device; the last user is kept for the lock screen
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Router /v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if err := h.svc.Logout(c.Request.Context(), claims.DeviceID); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ResetPIN godoc
// @Summary Forget the device's user entirely
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Router /v1/auth/reset-pin [post]
func (h *AuthHandler) ResetPIN(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if err := h.svc.ResetPIN(c.Request.Context(), claims.DeviceID); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me godoc
// @Summary Current device user
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.UserResponse
// @Failure 401 {object} apierror.APIError
// @Router /v1/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	resp, err := h.svc.Current(c.Request.Context(), claims.DeviceID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, apierror.New(service.ErrSessionExpired.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ── Users Handler ─────────────────────────────────────────────────────────────

type UsersHandler struct{ svc service.AuthService }

func NewUsersHandler(svc service.AuthService) *UsersHandler {
	return &UsersHandler{svc: svc}
}

// Create godoc
// @Summary Create a user
// @Tags users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body dto.CreateUserRequest true "User"
// @Success 201 {object} dto.UserResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/users [post]
func (h *UsersHandler) Create(c *gin.Context) {
	var req dto.CreateUserRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreateUser(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrPINInUse) {
			c.JSON(http.StatusConflict, apierror.New(err.Error()))
			return
		}
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// List godoc
// @Summary List users
// @Tags users
// @Security BearerAuth
// @Produce json
// @Success 200 {array} dto.UserResponse
// @Router /v1/users [get]
func (h *UsersHandler) List(c *gin.Context) {
	resp, err := h.svc.ListUsers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Could not list users"))
		return
	}
	c.JSON(http.StatusOK, resp)
}
