package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"service-marketplace-server/middleware"
	"service-marketplace-server/models"
	"service-marketplace-server/services"
	ws "service-marketplace-server/websocket"
)

// Handler carries the collaborators every route needs.
type Handler struct {
	Workflow   *services.RequestWorkflow
	Settlement *services.SettlementService
	Catalog    *services.Catalog
	Ledger     *services.Ledger
	Accounts   *services.AccountService
	Admin      *services.AdminService
	Hub        *ws.Hub
	// Identities resolves token subjects to accounts for the auth middleware.
	Identities middleware.AccountFinder
	Log        *zap.Logger
}

// RegisterRoutes mounts /health and the /api/v1 tree on router.
func RegisterRoutes(router *gin.Engine, h *Handler) {
	if h.Log == nil {
		h.Log = zap.NewNop()
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := middleware.AuthMiddleware(h.Identities, h.Log)

	apiV1 := router.Group("/api/v1")
	{
		RegisterCatalogRoutes(apiV1, h)
		RegisterRequestRoutes(apiV1.Group("/requests", auth), h)
		RegisterPaymentRoutes(apiV1.Group("/payments", auth), h)
		RegisterAccountRoutes(apiV1, auth, h)
		RegisterAdminRoutes(apiV1.Group("/admin", auth, middleware.RequireRole(models.RoleAdmin)), h)
	}

	if h.Hub != nil {
		apiV1.GET("/ws", middleware.WebSocketAuthMiddleware(h.Identities, h.Log), h.serveWebSocket)
	}
}

func (h *Handler) serveWebSocket(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	serviceType := ""
	if actor.Role == models.RoleProfessional {
		profile, err := h.Accounts.Profile(c.Request.Context(), actor.ID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		if pro, ok := profile.AsProfessional(); ok {
			serviceType = pro.ServiceType
		}
	}
	ws.ServeWebSocket(h.Hub, c.Writer, c.Request, actor.ID, actor.Role, serviceType)
}

// respondError maps workflow error kinds onto HTTP statuses. Anything
// without a kind is a 500 and its detail stays in the log.
func (h *Handler) respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	status, code := http.StatusInternalServerError, "internal_error"
	body := gin.H{}
	switch services.KindOf(err) {
	case services.ErrValidation:
		status, code = http.StatusBadRequest, "validation_error"
	case services.ErrUnauthorized:
		status, code = http.StatusForbidden, "unauthorized"
	case services.ErrNotFound:
		status, code = http.StatusNotFound, "not_found"
	case services.ErrInvalidTransition:
		status, code = http.StatusConflict, "invalid_transition"
		body["retryable"] = false
	case services.ErrConflict:
		status, code = http.StatusConflict, "conflict"
		body["retryable"] = true
	case services.ErrSettlementFailure:
		status, code = http.StatusBadGateway, "settlement_failure"
	}

	body["error"] = code
	if status == http.StatusInternalServerError {
		h.Log.Error("unhandled error", zap.String("route", c.FullPath()), zap.Error(err))
		body["message"] = "internal server error"
	} else {
		body["message"] = err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": message})
}

func actorOrAbort(c *gin.Context) (services.Actor, bool) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "message": "authentication required"})
	}
	return actor, ok
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// floatQuery returns nil when the parameter is absent.
func floatQuery(c *gin.Context, key string) (*float64, bool) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		badRequest(c, "invalid "+key)
		return nil, false
	}
	return &v, true
}
