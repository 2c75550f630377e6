package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"service-marketplace-server/middleware"
	"service-marketplace-server/models"
	"service-marketplace-server/services"
)

// RegisterPaymentRoutes mounts settlement, history, invoices and refunds.
func RegisterPaymentRoutes(router *gin.RouterGroup, h *Handler) {
	router.POST("", h.settle)
	router.GET("", h.listPayments)
	router.GET("/:id", h.getPayment)
	router.GET("/:id/invoice", h.invoice)
	router.POST("/:id/refund", middleware.RequireRole(models.RoleAdmin), h.refund)
}

type settleBody struct {
	RequestID     uint           `json:"request_id" binding:"required"`
	PaymentMethod string         `json:"payment_method" binding:"required"`
	Details       map[string]any `json:"details"`
}

func (h *Handler) settle(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var body settleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	payment, err := h.Settlement.Settle(c.Request.Context(), services.SettleInput{
		RequestID: body.RequestID,
		Actor:     actor,
		Method:    models.PaymentMethod(body.PaymentMethod),
		Details:   body.Details,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func (h *Handler) listPayments(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var (
		list []models.Payment
		err  error
	)
	switch actor.Role {
	case models.RoleAdmin:
		var statuses []models.PaymentStatus
		if s := c.Query("status"); s != "" {
			statuses = append(statuses, models.PaymentStatus(s))
		}
		list, err = h.Settlement.ListAll(c.Request.Context(), statuses...)
	case models.RoleProfessional:
		list, err = h.Settlement.ListForProfessional(c.Request.Context(), actor.ID)
	default:
		list, err = h.Settlement.ListForCustomer(c.Request.Context(), actor.ID)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": list, "count": len(list)})
}

// visiblePayment loads a payment the caller is a party to.
func (h *Handler) visiblePayment(c *gin.Context) (*models.Payment, bool) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return nil, false
	}
	id, ok := idParam(c, "id")
	if !ok {
		return nil, false
	}
	payment, err := h.Settlement.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	if !actor.IsAdmin() && payment.CustomerID != actor.ID && payment.ProfessionalID != actor.ID {
		h.respondError(c, &services.Error{Kind: services.ErrNotFound, Op: "payments.get", Message: "payment not found"})
		return nil, false
	}
	return payment, true
}

func (h *Handler) getPayment(c *gin.Context) {
	payment, ok := h.visiblePayment(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *Handler) invoice(c *gin.Context) {
	payment, ok := h.visiblePayment(c)
	if !ok {
		return
	}
	invoice, err := h.Settlement.GenerateInvoice(c.Request.Context(), payment.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

type refundBody struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *Handler) refund(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var body refundBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	payment, err := h.Settlement.Refund(c.Request.Context(), id, actor, body.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}
