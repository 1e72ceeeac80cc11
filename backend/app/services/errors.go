package services

import (
	"errors"

	"patchpilot/backend/app/repo"
)

var (
	ErrNotFound           = repo.ErrNotFound
	ErrActionCanceled     = errors.New("action already canceled")
	ErrTargetFinalized    = errors.New("target already finalized")
	ErrInvalidTTL         = errors.New("invalid ttl")
	ErrDeviceNotApproved  = errors.New("device not approved")
	ErrInvalidCommand     = errors.New("invalid command")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidDeviceID    = errors.New("invalid device id")
	ErrInvalidSettings    = errors.New("invalid settings")
	ErrDeviceTokenNeeded  = errors.New("device token required")
)
