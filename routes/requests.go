package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"service-marketplace-server/middleware"
	"service-marketplace-server/models"
	"service-marketplace-server/services"
)

// RegisterRequestRoutes mounts the request lifecycle. router is already
// behind the auth middleware.
func RegisterRequestRoutes(router *gin.RouterGroup, h *Handler) {
	customer := middleware.RequireRole(models.RoleCustomer)
	professional := middleware.RequireRole(models.RoleProfessional)

	router.POST("", customer, h.createRequest)
	router.GET("", middleware.RequireRole(models.RoleCustomer, models.RoleProfessional), h.listRequests)
	router.GET("/open", professional, h.listOpenRequests)
	router.GET("/:id", h.getRequest)
	router.POST("/:id/accept", professional, h.acceptRequest)
	router.POST("/:id/complete", professional, h.completeRequest)
	router.POST("/:id/review", customer, h.reviewRequest)
}

type createRequestBody struct {
	ServiceID   uint       `json:"service_id" binding:"required"`
	DesiredDate *time.Time `json:"desired_date"`
	Location    string     `json:"location"`
	Remarks     string     `json:"remarks"`
}

func (h *Handler) createRequest(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var body createRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	request, err := h.Workflow.Create(c.Request.Context(), services.CreateRequestInput{
		ServiceID:   body.ServiceID,
		CustomerID:  actor.ID,
		DesiredDate: body.DesiredDate,
		Location:    body.Location,
		Remarks:     body.Remarks,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, request)
}

// listRequests returns the caller's requests, optionally narrowed by a
// comma-separated status list.
func (h *Handler) listRequests(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var statuses []models.RequestStatus
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := models.RequestStatus(strings.TrimSpace(s))
			switch status {
			case models.RequestStatusRequested, models.RequestStatusAssigned, models.RequestStatusCompleted:
				statuses = append(statuses, status)
			default:
				badRequest(c, "unknown status "+string(status))
				return
			}
		}
	}

	var (
		list []models.ServiceRequest
		err  error
	)
	if actor.Role == models.RoleProfessional {
		list, err = h.Workflow.ListForProfessional(c.Request.Context(), actor.ID, statuses...)
	} else {
		list, err = h.Workflow.ListForCustomer(c.Request.Context(), actor.ID, statuses...)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": list, "count": len(list)})
}

func (h *Handler) listOpenRequests(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	list, err := h.Workflow.ListOpen(c.Request.Context(), actor.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": list, "count": len(list)})
}

func (h *Handler) getRequest(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	request, err := h.Workflow.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !actor.IsAdmin() && request.CustomerID != actor.ID && !request.IsAssignedTo(actor.ID) {
		// Hide other parties' requests entirely.
		h.respondError(c, &services.Error{Kind: services.ErrNotFound, Op: "requests.get", Message: "request not found"})
		return
	}
	c.JSON(http.StatusOK, request)
}

func (h *Handler) acceptRequest(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	request, err := h.Workflow.Accept(c.Request.Context(), id, actor.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

func (h *Handler) completeRequest(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	completion, err := h.Workflow.Complete(c.Request.Context(), id, actor.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp := gin.H{"request": completion.Request}
	if completion.Payment != nil {
		resp["payment"] = completion.Payment
	}
	if completion.SettlementErr != nil {
		resp["settlement_error"] = completion.SettlementErr.Error()
	}
	c.JSON(http.StatusOK, resp)
}

type reviewBody struct {
	Rating int    `json:"rating" binding:"required"`
	Review string `json:"review"`
}

func (h *Handler) reviewRequest(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var body reviewBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	request, err := h.Workflow.AttachReview(c.Request.Context(), id, actor.ID, body.Rating, body.Review)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}
