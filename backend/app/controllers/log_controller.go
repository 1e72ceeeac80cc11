package controllers

import (
	"net/http"

	"patchpilot/backend/app/services"
)

type LogController struct{ Logs *services.LogService }

func NewLogController(logs *services.LogService) *LogController { return &LogController{Logs: logs} }

func (c *LogController) Audit(w http.ResponseWriter, r *http.Request) {
	out, err := c.Logs.Audit()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (c *LogController) History(w http.ResponseWriter, r *http.Request) {
	out, err := c.Logs.History()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
