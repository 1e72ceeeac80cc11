package controllers

import (
	"net/http"

	"patchpilot/backend/app/dto"
	"patchpilot/backend/app/middleware"
	"patchpilot/backend/app/services"
)

const actionPageSize = 200

type ActionController struct{ Actions *services.ActionService }

func NewActionController(actions *services.ActionService) *ActionController {
	return &ActionController{Actions: actions}
}

func (c *ActionController) Submit(w http.ResponseWriter, r *http.Request) {
	var req dto.SubmitActionRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid body")
		return
	}
	a, err := c.Actions.Submit(req, middleware.Actor(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SubmitActionResponse{
		ActionID:  a.ID,
		Status:    "queued",
		ExpiresAt: a.ExpiresAt,
		Targets:   len(services.TargetIDs(req)),
	})
}

func (c *ActionController) List(w http.ResponseWriter, r *http.Request) {
	out, err := c.Actions.List(actionPageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (c *ActionController) GetTTL(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid action id")
		return
	}
	info, err := c.Actions.TTL(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (c *ActionController) SetTTL(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid action id")
		return
	}
	var req dto.TTLRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid body")
		return
	}
	info, err := c.Actions.ExtendTTL(id, req.TTLSeconds, middleware.Actor(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (c *ActionController) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid action id")
		return
	}
	if err := c.Actions.Cancel(id, middleware.Actor(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"action_id": id, "status": "canceling"})
}

func (c *ActionController) Targets(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid action id")
		return
	}
	out, err := c.Actions.Targets(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
