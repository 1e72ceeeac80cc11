package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"patchpilot/backend/app/dto"
	"patchpilot/backend/app/services"
	"patchpilot/backend/global"
	"patchpilot/network"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = network.JSON.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: msg})
}

// writeError maps service errors onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrActionCanceled), errors.Is(err, services.ErrTargetFinalized):
		status = http.StatusConflict
	case errors.Is(err, services.ErrInvalidTTL), errors.Is(err, services.ErrInvalidCommand),
		errors.Is(err, services.ErrInvalidDeviceID), errors.Is(err, services.ErrInvalidSettings):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrDeviceNotApproved):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrDeviceTokenNeeded):
		status = http.StatusUnauthorized
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		global.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		msg = "internal error"
	}
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	return network.JSON.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<20)).Decode(v)
}

func pathID(r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
