// Package api is the typed REST client for the home-automation backend.
// Every call goes through the request pipeline.
package api

import (
	"context"
	"fmt"
	"net/http"

	"smarthome_sync/internal/models"
	"smarthome_sync/internal/pipeline"
)

type Client struct {
	p *pipeline.Pipeline
}

func New(p *pipeline.Pipeline) *Client {
	return &Client{p: p}
}

// Pipeline returns the pipeline the client sends through.
func (c *Client) Pipeline() *pipeline.Pipeline { return c.p }

type valueBody[V any] struct {
	Value V `json:"value"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// SignIn exchanges credentials for a bearer token. It does not store the token.
func (c *Client) SignIn(ctx context.Context, creds models.Credentials) (string, error) {
	resp, err := pipeline.Do[tokenResponse](ctx, c.p, pipeline.Request{
		Method: http.MethodPost,
		Path:   "/auth/sign-in",
		Body:   creds,
	})
	if err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("sign-in: empty token in response")
	}
	return resp.Token, nil
}

// Devices

func (c *Client) Devices(ctx context.Context) ([]models.Device, error) {
	return pipeline.Do[[]models.Device](ctx, c.p, pipeline.Request{Method: http.MethodGet, Path: "/api/v1/devices"})
}

func (c *Client) Device(ctx context.Context, id int) (models.Device, error) {
	return pipeline.Do[models.Device](ctx, c.p, pipeline.Request{Method: http.MethodGet, Path: devicePath(id, "")})
}

func (c *Client) SetPower(ctx context.Context, id int, on bool) (models.DeviceSnapshot, error) {
	return putValue[models.DeviceSnapshot](ctx, c.p, devicePath(id, "power"), on)
}

func (c *Client) SetTemperature(ctx context.Context, id int, celsius int) (models.DeviceSnapshot, error) {
	return putValue[models.DeviceSnapshot](ctx, c.p, devicePath(id, "temperature"), celsius)
}

func (c *Client) SetMode(ctx context.Context, id int, mode models.Mode) (models.DeviceSnapshot, error) {
	return putValue[models.DeviceSnapshot](ctx, c.p, devicePath(id, "mode"), mode)
}

func (c *Client) SetFanSpeed(ctx context.Context, id int, speed int) (models.DeviceSnapshot, error) {
	return putValue[models.DeviceSnapshot](ctx, c.p, devicePath(id, "fan-speed"), speed)
}

func (c *Client) SetSwing(ctx context.Context, id int, on bool) (models.DeviceSnapshot, error) {
	return putValue[models.DeviceSnapshot](ctx, c.p, devicePath(id, "swing"), on)
}

// Lights

func (c *Client) Lights(ctx context.Context) ([]models.Light, error) {
	return pipeline.Do[[]models.Light](ctx, c.p, pipeline.Request{Method: http.MethodGet, Path: "/api/v1/lights"})
}

func (c *Client) Light(ctx context.Context, id int) (models.Light, error) {
	return pipeline.Do[models.Light](ctx, c.p, pipeline.Request{Method: http.MethodGet, Path: lightPath(id, "")})
}

// ToggleLight flips is_active server-side. The endpoint is stateless.
func (c *Client) ToggleLight(ctx context.Context, id int) (models.LightSnapshot, error) {
	return pipeline.Do[models.LightSnapshot](ctx, c.p, pipeline.Request{Method: http.MethodPost, Path: lightPath(id, "toggle")})
}

func (c *Client) SetLightLevel(ctx context.Context, id int, level int) (models.LightSnapshot, error) {
	return putValue[models.LightSnapshot](ctx, c.p, lightPath(id, "level"), level)
}

func (c *Client) SetLightActive(ctx context.Context, id int, active bool) (models.LightSnapshot, error) {
	return putValue[models.LightSnapshot](ctx, c.p, lightPath(id, "active"), active)
}

// Automations

func (c *Client) Automations(ctx context.Context) ([]models.Automation, error) {
	return pipeline.Do[[]models.Automation](ctx, c.p, pipeline.Request{Method: http.MethodGet, Path: "/api/v1/automations"})
}

type automationBody struct {
	Name     string `json:"name,omitempty"`
	Schedule string `json:"schedule"`
}

func (c *Client) CreateAutomation(ctx context.Context, name, schedule string) (models.Automation, error) {
	return pipeline.Do[models.Automation](ctx, c.p, pipeline.Request{
		Method: http.MethodPost,
		Path:   "/api/v1/automations",
		Body:   automationBody{Name: name, Schedule: schedule},
	})
}

func (c *Client) UpdateSchedule(ctx context.Context, id int, schedule string) (models.Automation, error) {
	return pipeline.Do[models.Automation](ctx, c.p, pipeline.Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("/api/v1/automations/%d/schedule", id),
		Body:   automationBody{Schedule: schedule},
	})
}

// Equipment lists the associations owned by an automation.
func (c *Client) Equipment(ctx context.Context, automationID int) ([]models.Association, error) {
	return pipeline.Do[[]models.Association](ctx, c.p, pipeline.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/api/v1/automations/%d/equipment", automationID),
	})
}

func (c *Client) CreateAssociation(ctx context.Context, automationID int, t models.Target) (models.Association, error) {
	return pipeline.Do[models.Association](ctx, c.p, pipeline.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/api/v1/automations/%d/equipment", automationID),
		Body:   t,
	})
}

// DeleteAssociation removes an association by its own id, not the target's.
func (c *Client) DeleteAssociation(ctx context.Context, associationID int) error {
	return pipeline.Exec(ctx, c.p, pipeline.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/api/v1/equipment/%d", associationID),
	})
}

func putValue[S, V any](ctx context.Context, p *pipeline.Pipeline, path string, v V) (S, error) {
	return pipeline.Do[S](ctx, p, pipeline.Request{
		Method: http.MethodPut,
		Path:   path,
		Body:   valueBody[V]{Value: v},
	})
}

func devicePath(id int, attr string) string {
	if attr == "" {
		return fmt.Sprintf("/api/v1/devices/%d", id)
	}
	return fmt.Sprintf("/api/v1/devices/%d/%s", id, attr)
}

func lightPath(id int, attr string) string {
	if attr == "" {
		return fmt.Sprintf("/api/v1/lights/%d", id)
	}
	return fmt.Sprintf("/api/v1/lights/%d/%s", id, attr)
}
