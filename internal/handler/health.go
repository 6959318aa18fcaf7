package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Skarath13/cards/internal/bizdate"
	"github.com/Skarath13/cards/internal/dto"
	"github.com/Skarath13/cards/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db  *gorm.DB
	rdb *redis.Client
	cal *bizdate.Calendar
}

// NewHealthHandler checks the database and, when configured, Redis. A nil
// rdb reports redis as "disabled" and does not fail the check.
func NewHealthHandler(db *gorm.DB, rdb *redis.Client, cal *bizdate.Calendar) *HealthHandler {
	return &HealthHandler{db: db, rdb: rdb, cal: cal}
}

// Check godoc
// @Summary Service health
// @Description Database and Redis reachability, the current business date and the number of ledger rows parked in the DLQ.
// @Tags health
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Failure 503 {object} dto.HealthResponse
// @Router /health [get]
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	resp := dto.HealthResponse{DB: "connected", Redis: "disabled"}
	if h.cal != nil {
		resp.BusinessDate = h.cal.Today()
	}
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		resp.DB = "error"
	}
	if h.rdb != nil {
		resp.Redis = "connected"
		if failed, err := worker.DLQLength(ctx, h.rdb, worker.QueueLedgerWrites); err != nil {
			resp.Redis = "error"
		} else {
			resp.FailedLedgerWrites = &failed
		}
	}

	resp.OK = resp.DB == "connected" && resp.Redis != "error"
	status := http.StatusOK
	if !resp.OK {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
