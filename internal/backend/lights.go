package backend

import (
	"net/http"

	"smarthome_sync/internal/models"

	"github.com/gin-gonic/gin"
)

// @Summary      List lights
// @Tags         lights
// @Produce      json
// @Success      200  {array}  models.Light
// @Router       /api/v1/lights [get]
// @Security     BearerAuth
func (h *Handler) listLights(c *gin.Context) {
	c.JSON(http.StatusOK, h.home.Lights())
}

// @Summary      Get light
// @Tags         lights
// @Produce      json
// @Param        id   path      int  true  "light id"
// @Success      200  {object}  models.Light
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/lights/{id} [get]
// @Security     BearerAuth
func (h *Handler) getLight(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	l, err := h.home.Light(id)
	if err != nil {
		h.writeError(c, "light_get", err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *Handler) updateLight(c *gin.Context, op string, id int, fn func(*models.Light) error) {
	l, err := h.home.UpdateLight(id, fn)
	if err != nil {
		h.writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// @Summary      Toggle light
// @Description  Flips is_active. Stateless: two calls cancel out.
// @Tags         lights
// @Produce      json
// @Param        id   path      int  true  "light id"
// @Success      200  {object}  models.Light
// @Router       /api/v1/lights/{id}/toggle [post]
// @Security     BearerAuth
func (h *Handler) toggleLight(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	h.updateLight(c, "light_toggle", id, func(l *models.Light) error {
		l.IsActive = !l.IsActive
		return nil
	})
}

// @Summary      Set light level
// @Description  The value is clamped to 1-100. The active flag is left unchanged.
// @Tags         lights
// @Accept       json
// @Produce      json
// @Param        id     path      int  true  "light id"
// @Param        input  body      map[string]int  true  "value"
// @Success      200    {object}  models.Light
// @Router       /api/v1/lights/{id}/level [put]
// @Security     BearerAuth
func (h *Handler) setLightLevel(c *gin.Context) {
	id, level, ok := bindValue[int](h, c)
	if !ok {
		return
	}
	h.updateLight(c, "light_level", id, func(l *models.Light) error {
		l.Level = clamp(level, models.MinLightLevel, models.MaxLightLevel)
		return nil
	})
}

// @Summary      Set light active
// @Tags         lights
// @Accept       json
// @Produce      json
// @Param        id     path      int  true  "light id"
// @Param        input  body      map[string]bool  true  "value"
// @Success      200    {object}  models.Light
// @Router       /api/v1/lights/{id}/active [put]
// @Security     BearerAuth
func (h *Handler) setLightActive(c *gin.Context) {
	id, active, ok := bindValue[bool](h, c)
	if !ok {
		return
	}
	h.updateLight(c, "light_active", id, func(l *models.Light) error {
		l.IsActive = active
		return nil
	})
}
