package handler

import (
	"io"
	"net/http"

	"github.com/Skarath13/cards/internal/dto"
	"github.com/Skarath13/cards/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type ResetHandler struct{ svc service.ResetService }

func NewResetHandler(svc service.ResetService) *ResetHandler { return &ResetHandler{svc: svc} }

// ResetDaily godoc
// @Summary Archive a business day (defaults to today)
// @Tags cron
// @Security CronAuth
// @Accept json
// @Produce json
// @Param body body dto.ResetRequest false "Optional business date"
// @Success 200 {object} dto.ResetResponse
// @Failure 500 {object} map[string]interface{}
// @Router /v1/cron/reset-daily [post]
// @Router /v1/cron/reset-daily [get]
func (h *ResetHandler) ResetDaily(c *gin.Context) {
	var req dto.ResetRequest
	if c.Request.Method == http.MethodPost && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid JSON: " + err.Error()})
			return
		}
	}
	if req.BusinessDate == "" {
		req.BusinessDate = c.Query("date")
	}
	if !validateStruct(c, &req) {
		return
	}

	resp, err := h.svc.ResetDaily(c.Request.Context(), req.BusinessDate)
	if err != nil {
		log.Error().Err(err).Str("business_date", req.BusinessDate).Msg("reset: request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Reset failed"})
		return
	}
	c.JSON(http.StatusOK, resp)
}
