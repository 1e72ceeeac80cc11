package controllers

import (
	"net/http"

	"patchpilot/backend/app/middleware"
	"patchpilot/backend/app/services"
	"patchpilot/network"
)

type DeviceController struct{ Devices *services.DeviceService }

func NewDeviceController(devices *services.DeviceService) *DeviceController {
	return &DeviceController{Devices: devices}
}

// Register: POST /api/register
func (c *DeviceController) Register(w http.ResponseWriter, r *http.Request) {
	var req network.DeviceReport
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid body")
		return
	}
	st, err := c.Devices.Register(req, middleware.Bearer(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Heartbeat: POST /api/devices/heartbeat
func (c *DeviceController) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req network.DeviceReport
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid body")
		return
	}
	st, err := c.Devices.Heartbeat(req, middleware.Bearer(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Update: POST /api/devices/{device_id}
func (c *DeviceController) Update(w http.ResponseWriter, r *http.Request) {
	var req network.DeviceReport
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid body")
		return
	}
	req.DeviceID = r.PathValue("device_id")
	st, err := c.Devices.Heartbeat(req, middleware.Bearer(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (c *DeviceController) Approve(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("device_id")
	if err := c.Devices.Approve(id, middleware.Actor(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"device_id": id, "approved": true})
}

// Get: GET /api/devices/{device_id}
func (c *DeviceController) Get(w http.ResponseWriter, r *http.Request) {
	d, err := c.Devices.Get(r.PathValue("device_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (c *DeviceController) List(w http.ResponseWriter, r *http.Request) {
	out, err := c.Devices.List()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
