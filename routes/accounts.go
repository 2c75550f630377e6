package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"service-marketplace-server/middleware"
	"service-marketplace-server/models"
	"service-marketplace-server/services"
)

// RegisterAccountRoutes mounts the caller's own profile, ledger, favorites
// and availability.
func RegisterAccountRoutes(router *gin.RouterGroup, auth gin.HandlerFunc, h *Handler) {
	me := router.Group("/me", auth)
	{
		me.GET("", h.getProfile)
		me.GET("/ledger", h.getLedger)
	}

	customers := router.Group("/customers/me", auth, middleware.RequireRole(models.RoleCustomer))
	{
		customers.PUT("", h.updateCustomerProfile)
		customers.GET("/favorites", h.listFavorites)
		customers.POST("/favorites", h.addFavorite)
		customers.DELETE("/favorites/:id", h.removeFavorite)
	}

	professionals := router.Group("/professionals/me", auth, middleware.RequireRole(models.RoleProfessional))
	{
		professionals.PATCH("/availability", h.setAvailability)
	}
}

func (h *Handler) getProfile(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	profile, err := h.Accounts.Profile(c.Request.Context(), actor.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) getLedger(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var (
		summary any
		err     error
	)
	switch actor.Role {
	case models.RoleProfessional:
		summary, err = h.Ledger.ProfessionalSummary(c.Request.Context(), actor.ID)
	case models.RoleCustomer:
		summary, err = h.Ledger.CustomerSummary(c.Request.Context(), actor.ID)
	default:
		badRequest(c, "admins have no ledger")
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type customerProfileBody struct {
	Address                *string `json:"address"`
	Phone                  *string `json:"phone"`
	DefaultLocation        *string `json:"default_location"`
	DefaultPincode         *string `json:"default_pincode"`
	PreferredPaymentMethod *string `json:"preferred_payment_method"`
}

func (h *Handler) updateCustomerProfile(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var body customerProfileBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	customer, err := h.Accounts.UpdateCustomerProfile(c.Request.Context(), actor, services.CustomerProfileInput{
		Address:                body.Address,
		Phone:                  body.Phone,
		DefaultLocation:        body.DefaultLocation,
		DefaultPincode:         body.DefaultPincode,
		PreferredPaymentMethod: body.PreferredPaymentMethod,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *Handler) listFavorites(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	list, err := h.Accounts.ListFavorites(c.Request.Context(), actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"professionals": list, "count": len(list)})
}

type favoriteBody struct {
	ProfessionalID uint `json:"professional_id" binding:"required"`
}

func (h *Handler) addFavorite(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var body favoriteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.Accounts.AddFavorite(c.Request.Context(), actor, body.ProfessionalID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) removeFavorite(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Accounts.RemoveFavorite(c.Request.Context(), actor, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type availabilityBody struct {
	Available *bool `json:"available" binding:"required"`
}

func (h *Handler) setAvailability(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var body availabilityBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	professional, err := h.Accounts.SetAvailability(c.Request.Context(), actor, *body.Available)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, professional)
}
