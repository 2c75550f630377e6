package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"service-marketplace-server/repository"
)

// RegisterCatalogRoutes mounts the public catalog reads.
func RegisterCatalogRoutes(router *gin.RouterGroup, h *Handler) {
	router.GET("/services", h.searchServices)
	router.GET("/services/:id", h.getService)
	router.GET("/professionals", h.searchProfessionals)
	router.GET("/professionals/available", h.availableProfessionals)
}

func (h *Handler) searchServices(c *gin.Context) {
	minPrice, ok := floatQuery(c, "min_price")
	if !ok {
		return
	}
	maxPrice, ok := floatQuery(c, "max_price")
	if !ok {
		return
	}
	list, err := h.Catalog.SearchServices(c.Request.Context(), repository.ServiceFilter{
		Query:       c.Query("q"),
		ServiceType: c.Query("service_type"),
		Location:    c.Query("location"),
		MinPrice:    minPrice,
		MaxPrice:    maxPrice,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": list, "count": len(list)})
}

func (h *Handler) getService(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	service, err := h.Catalog.FindService(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service)
}

func (h *Handler) searchProfessionals(c *gin.Context) {
	minRating, ok := floatQuery(c, "min_rating")
	if !ok {
		return
	}
	maxRate, ok := floatQuery(c, "max_hourly_rate")
	if !ok {
		return
	}
	list, err := h.Catalog.SearchProfessionals(c.Request.Context(), repository.ProfessionalFilter{
		ServiceType:   c.Query("service_type"),
		Location:      c.Query("location"),
		Pincode:       c.Query("pincode"),
		Language:      c.Query("language"),
		MinRating:     minRating,
		MaxHourlyRate: maxRate,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"professionals": list, "count": len(list)})
}

func (h *Handler) availableProfessionals(c *gin.Context) {
	serviceType := c.Query("service_type")
	if serviceType == "" {
		badRequest(c, "service_type is required")
		return
	}
	var location *string
	if loc := c.Query("location"); loc != "" {
		location = &loc
	}
	list, err := h.Catalog.FindAvailableProfessionals(c.Request.Context(), serviceType, location)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"professionals": list, "count": len(list)})
}
