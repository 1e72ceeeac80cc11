package controllers

import (
	"net/http"

	"patchpilot/backend/app/middleware"
	"patchpilot/backend/app/services"
	"patchpilot/network"
)

// CommandController serves the agent side: long-poll and result posts.
type CommandController struct{ Actions *services.ActionService }

func NewCommandController(actions *services.ActionService) *CommandController {
	return &CommandController{Actions: actions}
}

// Poll: GET /api/devices/{device_id}/commands/poll
func (c *CommandController) Poll(w http.ResponseWriter, r *http.Request) {
	cmds, err := c.Actions.Poll(r.Context(), r.PathValue("device_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmds)
}

// Result: POST /api/devices/{device_id}/commands/{command_id}/result and
// POST /api/commands/{command_id}/result.
func (c *CommandController) Result(w http.ResponseWriter, r *http.Request) {
	var res network.CommandResult
	if err := decode(w, r, &res); err != nil {
		badRequest(w, "invalid result body")
		return
	}
	deviceID := r.PathValue("device_id")
	if deviceID == "" {
		if claims := middleware.GetClaims(r.Context()); claims != nil {
			deviceID = claims.DeviceID
		}
	}
	if err := c.Actions.PostResult(deviceID, r.PathValue("command_id"), res); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}
