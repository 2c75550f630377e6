package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"service-marketplace-server/models"
)

// RegisterAdminRoutes mounts moderation and catalog management. router is
// already restricted to admins.
func RegisterAdminRoutes(router *gin.RouterGroup, h *Handler) {
	router.GET("/dashboard", h.dashboard)
	router.PATCH("/professionals/:id/verify", h.verifyProfessional)
	router.PATCH("/accounts/:id/block", h.blockAccount)
	router.POST("/services", h.createService)
	router.PUT("/services/:id", h.updateService)
	router.DELETE("/services/:id", h.deactivateService)
}

func (h *Handler) dashboard(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	stats, err := h.Admin.DashboardStats(c.Request.Context(), actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type verifyBody struct {
	Verified *bool `json:"verified" binding:"required"`
}

func (h *Handler) verifyProfessional(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var body verifyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	professional, err := h.Admin.VerifyProfessional(c.Request.Context(), actor, id, *body.Verified)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, professional)
}

type blockBody struct {
	Blocked *bool `json:"blocked" binding:"required"`
}

func (h *Handler) blockAccount(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var body blockBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	account, err := h.Admin.BlockAccount(c.Request.Context(), actor, id, *body.Blocked)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

type serviceBody struct {
	Name             string   `json:"name" binding:"required"`
	Description      string   `json:"description"`
	BasePrice        float64  `json:"base_price"`
	TimeRequired     int      `json:"time_required"`
	ServiceType      string   `json:"service_type" binding:"required"`
	Tags             string   `json:"tags"`
	MinPrice         *float64 `json:"min_price"`
	MaxPrice         *float64 `json:"max_price"`
	LocationCoverage string   `json:"location_coverage"`
	IsActive         *bool    `json:"is_active"`
}

func (b serviceBody) model(id uint) *models.Service {
	active := true
	if b.IsActive != nil {
		active = *b.IsActive
	}
	return &models.Service{
		ID:               id,
		Name:             b.Name,
		Description:      b.Description,
		BasePrice:        b.BasePrice,
		TimeRequired:     b.TimeRequired,
		ServiceType:      b.ServiceType,
		Tags:             b.Tags,
		MinPrice:         b.MinPrice,
		MaxPrice:         b.MaxPrice,
		LocationCoverage: b.LocationCoverage,
		IsActive:         active,
	}
}

func (h *Handler) createService(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var body serviceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	service := body.model(0)
	if err := h.Admin.CreateService(c.Request.Context(), actor, service); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, service)
}

func (h *Handler) updateService(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var body serviceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	service := body.model(id)
	if err := h.Admin.UpdateService(c.Request.Context(), actor, service); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service)
}

func (h *Handler) deactivateService(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Admin.DeactivateService(c.Request.Context(), actor, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
