package handler

import (
	"net/http"

	"github.com/Skarath13/cards/internal/catalog"
	"github.com/Skarath13/cards/internal/dto"

	"github.com/gin-gonic/gin"
)

// Services godoc
// @Summary Service catalog tiers for the service cell
// @Tags ledger
// @Produce json
// @Success 200 {object} dto.ServiceCatalogResponse
// @Router /v1/services [get]
func Services(c *gin.Context) {
	m := catalog.Default()
	c.JSON(http.StatusOK, dto.ServiceCatalogResponse{
		Tier1:    m.Tier1,
		Tier2:    m.Tier2,
		Tier3:    m.Tier3,
		Tier3For: []string{catalog.Refill},
	})
}
