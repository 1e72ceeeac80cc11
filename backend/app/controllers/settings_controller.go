package controllers

import (
	"net/http"

	"patchpilot/backend/app/middleware"
	"patchpilot/backend/app/services"
)

type SettingsController struct{ Settings *services.SettingsStore }

func NewSettingsController(settings *services.SettingsStore) *SettingsController {
	return &SettingsController{Settings: settings}
}

func (c *SettingsController) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.Settings.Snapshot())
}

// Update takes a partial document: fields left out keep their live value.
func (c *SettingsController) Update(w http.ResponseWriter, r *http.Request) {
	next := c.Settings.Snapshot()
	if err := decode(w, r, &next); err != nil {
		badRequest(w, "invalid body")
		return
	}
	applied, err := c.Settings.Update(next, middleware.Actor(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, applied)
}
