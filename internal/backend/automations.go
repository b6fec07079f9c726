package backend

import (
	"net/http"

	"smarthome_sync/internal/models"

	"github.com/gin-gonic/gin"
)

type automationInput struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule" binding:"required"`
}

type equipmentInput struct {
	TargetType models.TargetType `json:"target_type" binding:"required"`
	TargetID   int               `json:"target_id" binding:"required"`
	Action     models.ActionMeta `json:"action"`
}

// @Summary      List automations
// @Tags         automations
// @Produce      json
// @Success      200  {array}  models.Automation
// @Router       /api/v1/automations [get]
// @Security     BearerAuth
func (h *Handler) listAutomations(c *gin.Context) {
	c.JSON(http.StatusOK, h.home.Automations())
}

// @Summary      Create automation
// @Tags         automations
// @Accept       json
// @Produce      json
// @Param        input  body      automationInput  true  "name and six-field cron schedule"
// @Success      201    {object}  models.Automation
// @Failure      400    {object}  map[string]string
// @Router       /api/v1/automations [post]
// @Security     BearerAuth
func (h *Handler) createAutomation(c *gin.Context) {
	var input automationInput
	if !h.bindJSONOrBadRequest(c, &input) {
		return
	}
	a, err := h.home.CreateAutomation(input.Name, input.Schedule)
	if err != nil {
		h.writeError(c, "automation_create", err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// @Summary      Replace schedule
// @Tags         automations
// @Accept       json
// @Produce      json
// @Param        id     path      int              true  "automation id"
// @Param        input  body      automationInput  true  "schedule"
// @Success      200    {object}  models.Automation
// @Failure      400    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Router       /api/v1/automations/{id}/schedule [put]
// @Security     BearerAuth
func (h *Handler) setSchedule(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var input automationInput
	if !h.bindJSONOrBadRequest(c, &input) {
		return
	}
	a, err := h.home.SetSchedule(id, input.Schedule)
	if err != nil {
		h.writeError(c, "automation_schedule", err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// @Summary      List equipment
// @Tags         automations
// @Produce      json
// @Param        id   path     int  true  "automation id"
// @Success      200  {array}  models.Association
// @Router       /api/v1/automations/{id}/equipment [get]
// @Security     BearerAuth
func (h *Handler) listEquipment(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	list, err := h.home.Equipment(id)
	if err != nil {
		h.writeError(c, "equipment_list", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary      Add equipment
// @Description  An automation holds at most one association per target; a duplicate is a 409.
// @Tags         automations
// @Accept       json
// @Produce      json
// @Param        id     path      int             true  "automation id"
// @Param        input  body      equipmentInput  true  "target"
// @Success      201    {object}  models.Association
// @Failure      404    {object}  map[string]string
// @Failure      409    {object}  map[string]string
// @Router       /api/v1/automations/{id}/equipment [post]
// @Security     BearerAuth
func (h *Handler) createEquipment(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var input equipmentInput
	if !h.bindJSONOrBadRequest(c, &input) {
		return
	}
	a, err := h.home.CreateAssociation(id, models.Target{
		TargetKey: models.TargetKey{Type: input.TargetType, ID: input.TargetID},
		Action:    input.Action,
	})
	if err != nil {
		h.writeError(c, "equipment_create", err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// @Summary      Remove equipment
// @Tags         automations
// @Param        id   path  int  true  "association id"
// @Success      204
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/equipment/{id} [delete]
// @Security     BearerAuth
func (h *Handler) deleteEquipment(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.home.DeleteAssociation(id); err != nil {
		h.writeError(c, "equipment_delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}
