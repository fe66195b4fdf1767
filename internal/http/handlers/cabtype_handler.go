// README: Cab type HTTP handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridequick/internal/modules/pricing"
)

type CabTypeHandler struct {
	pricing *pricing.Service
}

func NewCabTypeHandler(svc *pricing.Service) *CabTypeHandler {
	return &CabTypeHandler{pricing: svc}
}

func (h *CabTypeHandler) List(c *gin.Context) {
	cabs, err := h.pricing.CabTypes(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if cabs == nil {
		cabs = []pricing.CabType{}
	}
	writeJSON(c, http.StatusOK, cabs)
}

func (h *CabTypeHandler) Create(c *gin.Context) {
	var req pricing.CabType
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	req.ID = ""
	cab, err := h.pricing.Create(c.Request.Context(), req)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, cab)
}
