package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Skarath13/cards/internal/clock"
	"github.com/Skarath13/cards/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func init() { gin.SetMode(gin.TestMode) }

func signToken(t *testing.T, userID, deviceID string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":   userID,
		"role":      "technician",
		"device_id": deviceID,
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func authRouter(sessions *session.Manager) *gin.Engine {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/me", SessionAuth(testSecret, sessions), func(c *gin.Context) {
		c.String(http.StatusOK, GetClaims(c).UserID)
	})
	r.GET("/admin", SessionAuth(testSecret, sessions), RequireRole("admin"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSessionAuth(t *testing.T) {
	mc := clock.NewMock(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC))
	sessions := session.NewManager(session.NewMemoryStorage(), mc, 30*time.Minute)
	require.NoError(t, sessions.For("tablet-1").SetSession(context.Background(), session.UserSnapshot{ID: "u-1", Name: "Alice"}))
	r := authRouter(sessions)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "garbage").Code)

	w := get(r, "/me", signToken(t, "u-1", "tablet-1"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-1", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	// token of a user the device no longer has signed in
	w = get(r, "/me", signToken(t, "u-2", "tablet-1"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Session expired")

	assert.Equal(t, http.StatusForbidden, get(r, "/admin", signToken(t, "u-1", "tablet-1")).Code)

	// activity slides the window; 31 idle minutes end it
	mc.Advance(29 * time.Minute)
	assert.Equal(t, http.StatusOK, get(r, "/me", signToken(t, "u-1", "tablet-1")).Code)
	mc.Advance(31 * time.Minute)
	w = get(r, "/me", signToken(t, "u-1", "tablet-1"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Session expired")
}

func TestCronAuth(t *testing.T) {
	r := gin.New()
	r.POST("/reset", CronAuth("cron-secret"), func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(header string) int {
		req := httptest.NewRequest(http.MethodPost, "/reset", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, do("Bearer cron-secret"))
	assert.Equal(t, http.StatusUnauthorized, do("Bearer nope"))
	assert.Equal(t, http.StatusUnauthorized, do(""))

	closed := gin.New()
	closed.GET("/reset", CronAuth(""), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusUnauthorized, get(closed, "/reset", "").Code)
}

func TestRecoveryAndErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(), ErrorHandler())
	r.GET("/panic", func(*gin.Context) { panic("boom") })
	r.GET("/err", func(c *gin.Context) { _ = c.Error(assert.AnError) })

	w := get(r, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")

	w = get(r, "/err", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"detail":"Internal server error"}`, w.Body.String())
}

func TestErrorHandler_BindAndWrittenResponses(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/bind", func(c *gin.Context) {
		_ = c.Error(assert.AnError).SetType(gin.ErrorTypeBind)
	})
	r.GET("/written", func(c *gin.Context) {
		c.JSON(http.StatusConflict, gin.H{"detail": "row has data"})
		_ = c.Error(assert.AnError)
	})

	w := get(r, "/bind", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"detail":"Invalid request body"}`, w.Body.String())

	w = get(r, "/written", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"detail":"row has data"}`, w.Body.String())
}

func TestLogger_TagsDeviceAndQuietsProbes(t *testing.T) {
	var buf bytes.Buffer
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	r := gin.New()
	r.Use(RequestID(), Logger())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/v1/ledger/card", func(c *gin.Context) {
		c.Set(ClaimsKey, &DeviceClaims{UserID: "u-1", DeviceID: "tablet-1"})
		c.Status(http.StatusServiceUnavailable)
	})

	get(r, "/health", "")
	assert.Empty(t, buf.String())

	get(r, "/v1/ledger/card", "")
	line := buf.String()
	assert.Contains(t, line, `"level":"error"`)
	assert.Contains(t, line, `"device_id":"tablet-1"`)
	assert.Contains(t, line, `"status":503`)
}

func TestWindowLimiter(t *testing.T) {
	mc := clock.NewMock(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC))
	l := newWindowLimiter(2, time.Minute, mc)

	ok, _ := l.allow("10.0.0.1")
	assert.True(t, ok)
	ok, _ = l.allow("10.0.0.1")
	assert.True(t, ok)
	ok, _ = l.allow("10.0.0.1")
	assert.False(t, ok)
	ok, _ = l.allow("10.0.0.2")
	assert.True(t, ok)

	mc.Advance(61 * time.Second)
	assert.Equal(t, 2, l.purge())
	ok, _ = l.allow("10.0.0.1")
	assert.True(t, ok)
}

func TestWindowLimiter_Handler(t *testing.T) {
	r := gin.New()
	r.POST("/pin", newWindowLimiter(1, time.Minute, nil).handler("slow down"), func(c *gin.Context) { c.Status(http.StatusOK) })

	post := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/pin", nil))
		return w
	}
	assert.Equal(t, http.StatusOK, post().Code)
	w := post()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}
