package backend

import (
	"fmt"
	"net/http"
	"strconv"

	"smarthome_sync/internal/models"

	"github.com/gin-gonic/gin"
)

// valueInput is the body of every single-attribute PUT.
type valueInput[V any] struct {
	Value *V `json:"value" binding:"required"`
}

func (h *Handler) pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// bindValue reads {"value": V} and the :id path parameter.
func bindValue[V any](h *Handler, c *gin.Context) (int, V, bool) {
	var zero V
	id, ok := h.pathID(c)
	if !ok {
		return 0, zero, false
	}
	var input valueInput[V]
	if !h.bindJSONOrBadRequest(c, &input) {
		return 0, zero, false
	}
	return id, *input.Value, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// @Summary      List devices
// @Tags         devices
// @Produce      json
// @Success      200  {array}   models.Device
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/devices [get]
// @Security     BearerAuth
func (h *Handler) listDevices(c *gin.Context) {
	c.JSON(http.StatusOK, h.home.Devices())
}

// @Summary      Get device
// @Tags         devices
// @Produce      json
// @Param        id   path      int  true  "device id"
// @Success      200  {object}  models.Device
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/devices/{id} [get]
// @Security     BearerAuth
func (h *Handler) getDevice(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	d, err := h.home.Device(id)
	if err != nil {
		h.writeError(c, "device_get", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) updateDevice(c *gin.Context, op string, id int, fn func(*models.Device) error) {
	d, err := h.home.UpdateDevice(id, fn)
	if err != nil {
		h.writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// @Summary      Set power
// @Description  Returns the full device; powering on reports the current mode and temperature.
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id     path      int   true  "device id"
// @Param        input  body      map[string]bool  true  "value"
// @Success      200    {object}  models.Device
// @Router       /api/v1/devices/{id}/power [put]
// @Security     BearerAuth
func (h *Handler) setPower(c *gin.Context) {
	id, on, ok := bindValue[bool](h, c)
	if !ok {
		return
	}
	h.updateDevice(c, "device_power", id, func(d *models.Device) error {
		d.Power = on
		return nil
	})
}

// @Summary      Set temperature
// @Description  The value is clamped to the device's range.
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id     path      int  true  "device id"
// @Param        input  body      map[string]int  true  "value"
// @Success      200    {object}  models.Device
// @Router       /api/v1/devices/{id}/temperature [put]
// @Security     BearerAuth
func (h *Handler) setTemperature(c *gin.Context) {
	id, celsius, ok := bindValue[int](h, c)
	if !ok {
		return
	}
	h.updateDevice(c, "device_temperature", id, func(d *models.Device) error {
		d.Temperature = d.ClampTemperature(celsius)
		return nil
	})
}

// @Summary      Set mode
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id     path      int  true  "device id"
// @Param        input  body      map[string]string  true  "value"  Enums(COOL,HEAT,DRY,FAN,AUTO)
// @Success      200    {object}  models.Device
// @Failure      400    {object}  map[string]string
// @Router       /api/v1/devices/{id}/mode [put]
// @Security     BearerAuth
func (h *Handler) setMode(c *gin.Context) {
	id, mode, ok := bindValue[models.Mode](h, c)
	if !ok {
		return
	}
	h.updateDevice(c, "device_mode", id, func(d *models.Device) error {
		if !mode.Valid() {
			return fmt.Errorf("%w: mode %q", ErrInvalidValue, mode)
		}
		d.Mode = mode
		return nil
	})
}

// @Summary      Set fan speed
// @Description  The value is clamped to 0-5.
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id     path      int  true  "device id"
// @Param        input  body      map[string]int  true  "value"
// @Success      200    {object}  models.Device
// @Router       /api/v1/devices/{id}/fan-speed [put]
// @Security     BearerAuth
func (h *Handler) setFanSpeed(c *gin.Context) {
	id, speed, ok := bindValue[int](h, c)
	if !ok {
		return
	}
	h.updateDevice(c, "device_fan_speed", id, func(d *models.Device) error {
		d.FanSpeed = clamp(speed, models.MinFanSpeed, models.MaxFanSpeed)
		return nil
	})
}

// @Summary      Set swing
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id     path      int  true  "device id"
// @Param        input  body      map[string]bool  true  "value"
// @Success      200    {object}  models.Device
// @Router       /api/v1/devices/{id}/swing [put]
// @Security     BearerAuth
func (h *Handler) setSwing(c *gin.Context) {
	id, on, ok := bindValue[bool](h, c)
	if !ok {
		return
	}
	h.updateDevice(c, "device_swing", id, func(d *models.Device) error {
		d.Swing = on
		return nil
	})
}
