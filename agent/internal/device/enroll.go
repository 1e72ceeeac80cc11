package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"patchpilot/agent/internal/logger"
	"patchpilot/agent/internal/state"
	"patchpilot/network"
)

// Registrar is the slice of the backend API enrollment needs.
type Registrar interface {
	Register(ctx context.Context, report network.DeviceReport) (network.DeviceStatus, error)
	Heartbeat(ctx context.Context, report network.DeviceReport) (network.DeviceStatus, error)
	UpdateDevice(ctx context.Context, report network.DeviceReport) (network.DeviceStatus, error)
}

// Enroller brings a device from "unknown" to "adopted".
type Enroller struct {
	Client    Registrar
	IDPath    string
	TokenPath string
	Report    func(deviceID string) network.DeviceReport
	Retry     time.Duration
	MaxRetry  time.Duration
	Interval  time.Duration
}

// Register announces the device, reusing a stored id and token when there
// are any, and persists whatever id the server confirms. The server only
// re-issues a token for an existing id to a caller holding one it signed,
// so the stored token is presented even when it has expired. Transport
// failures are retried with backoff until ctx ends. Failing to persist the
// id is fatal.
func (e *Enroller) Register(ctx context.Context) (network.DeviceStatus, error) {
	id, err := LoadID(e.IDPath)
	if err != nil && !errors.Is(err, ErrNoID) {
		return network.DeviceStatus{}, fmt.Errorf("read device id: %w", err)
	}
	if state.GetToken() == "" {
		tok, err := LoadToken(e.TokenPath)
		if err != nil {
			logger.Warnf("Cannot read device token: %v", err)
		}
		state.SetToken(tok)
	}
	delay := e.Retry
	if delay <= 0 {
		delay = time.Second
	}
	maxDelay := e.MaxRetry
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	for attempt := 1; ; attempt++ {
		st, err := e.Client.Register(ctx, e.Report(id))
		if err == nil {
			if st.DeviceID == "" {
				st.DeviceID = id
			}
			if st.DeviceID != id {
				if err := SaveID(e.IDPath, st.DeviceID); err != nil {
					return st, fmt.Errorf("persist device id: %w", err)
				}
			}
			state.SetDeviceID(st.DeviceID)
			state.SetAdopted(st.Adopted)
			e.keepToken(st.Token)
			logger.Infof("Registered device=%s adopted=%v", st.DeviceID, st.Adopted)
			return st, nil
		}
		logger.Warnf("Register attempt #%d failed: %v (retry in %v)", attempt, err, delay)
		if !sleep(ctx, delay) {
			return network.DeviceStatus{}, ctx.Err()
		}
		delay = delay * 3 / 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// Heartbeat sends one heartbeat and records the adoption state and the
// refreshed device token.
func (e *Enroller) Heartbeat(ctx context.Context) (network.DeviceStatus, error) {
	st, err := e.Client.Heartbeat(ctx, e.Report(state.GetDeviceID()))
	if err != nil {
		return st, err
	}
	state.SetAdopted(st.Adopted)
	e.keepToken(st.Token)
	return st, nil
}

// Update posts a full host report to the device's own resource. It needs a
// valid device token, unlike Heartbeat.
func (e *Enroller) Update(ctx context.Context) (network.DeviceStatus, error) {
	id := state.GetDeviceID()
	st, err := e.Client.UpdateDevice(ctx, e.Report(id))
	if err != nil {
		return st, err
	}
	state.SetAdopted(st.Adopted)
	e.keepToken(st.Token)
	return st, nil
}

func (e *Enroller) keepToken(tok string) {
	if tok == "" || tok == state.GetToken() {
		return
	}
	state.SetToken(tok)
	if err := SaveToken(e.TokenPath, tok); err != nil {
		logger.Warnf("Cannot persist device token: %v", err)
	}
}

// WaitAdopted heartbeats every Interval until the server reports the device
// as adopted or ctx ends.
func (e *Enroller) WaitAdopted(ctx context.Context) error {
	if state.IsAdopted() {
		return nil
	}
	logger.Info("Waiting for device approval")
	for {
		if !sleep(ctx, e.Interval) {
			return ctx.Err()
		}
		st, err := e.Heartbeat(ctx)
		if err != nil {
			logger.Warnf("Heartbeat failed: %v", err)
			continue
		}
		if st.Adopted {
			logger.Infof("Device %s adopted", st.DeviceID)
			return nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
