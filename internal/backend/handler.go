// Package backend is an in-process simulator of the home-automation backend:
// a gin REST API with JWT auth, a websocket state stream and Prometheus metrics.
package backend

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"smarthome_sync/internal/logger"
	"smarthome_sync/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const statusOK = "ok"

// Handler wires the HTTP layer to the simulated home and auth.
type Handler struct {
	home *Home
	auth *Auth
	log  *logger.Logger

	faultMu sync.Mutex
	faults  map[string][]int
}

func NewHandler(home *Home, auth *Auth, log *logger.Logger) *Handler {
	return &Handler{home: home, auth: auth, log: logger.OrNop(log), faults: make(map[string][]int)}
}

// InjectFault makes the next request matching method and path fail with status.
// Faults queue up per route and are consumed in order.
func (h *Handler) InjectFault(method, path string, status int) {
	h.faultMu.Lock()
	key := method + " " + path
	h.faults[key] = append(h.faults[key], status)
	h.faultMu.Unlock()
}

func (h *Handler) takeFault(method, path string) (int, bool) {
	h.faultMu.Lock()
	defer h.faultMu.Unlock()
	key := method + " " + path
	queue := h.faults[key]
	if len(queue) == 0 {
		return 0, false
	}
	h.faults[key] = queue[1:]
	return queue[0], true
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestID, h.faultInjector)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/health", h.health)

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	router.GET("/ws", h.userIdMiddleware, h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerDeviceRoutes(api)
		h.registerLightRoutes(api)
		h.registerAutomationRoutes(api)
	}
}

func (h *Handler) registerDeviceRoutes(api *gin.RouterGroup) {
	devices := api.Group("/devices")
	{
		devices.GET("", h.listDevices)
		devices.GET("/:id", h.getDevice)
		devices.PUT("/:id/power", h.setPower)
		devices.PUT("/:id/temperature", h.setTemperature)
		devices.PUT("/:id/mode", h.setMode)
		devices.PUT("/:id/fan-speed", h.setFanSpeed)
		devices.PUT("/:id/swing", h.setSwing)
	}
}

func (h *Handler) registerLightRoutes(api *gin.RouterGroup) {
	lights := api.Group("/lights")
	{
		lights.GET("", h.listLights)
		lights.GET("/:id", h.getLight)
		lights.POST("/:id/toggle", h.toggleLight)
		lights.PUT("/:id/level", h.setLightLevel)
		lights.PUT("/:id/active", h.setLightActive)
	}
}

func (h *Handler) registerAutomationRoutes(api *gin.RouterGroup) {
	automations := api.Group("/automations")
	{
		automations.GET("", h.listAutomations)
		automations.POST("", h.createAutomation)
		automations.PUT("/:id/schedule", h.setSchedule)
		automations.GET("/:id/equipment", h.listEquipment)
		automations.POST("/:id/equipment", h.createEquipment)
	}
	api.DELETE("/equipment/:id", h.deleteEquipment)
}

func (h *Handler) requestID(c *gin.Context) {
	id := c.GetHeader("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	c.Header("X-Request-ID", id)
	c.Next()
}

func (h *Handler) faultInjector(c *gin.Context) {
	if status, ok := h.takeFault(c.Request.Method, c.Request.URL.Path); ok {
		h.log.Infow("fault_injected", "method", c.Request.Method, "path", c.Request.URL.Path, "status", status)
		c.AbortWithStatusJSON(status, gin.H{"error": http.StatusText(status)})
		return
	}
	c.Next()
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// writeError maps home errors onto HTTP statuses.
func (h *Handler) writeError(c *gin.Context, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, ErrInvalidValue):
		status = http.StatusBadRequest
	}
	h.log.Infow(op+"_failed", "status", status, "err", err)
	c.JSON(status, gin.H{"error": err.Error()})
}

// bindJSONOrBadRequest binds the request body into dst and writes a 400 on failure.
func (h *Handler) bindJSONOrBadRequest(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.log.Infow("bad_request_body", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
