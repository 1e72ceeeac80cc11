package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"patchpilot/backend/app/dto"
	"patchpilot/backend/app/hub"
	"patchpilot/backend/app/metrics"
	"patchpilot/backend/app/models"
	"patchpilot/backend/app/repo"
	"patchpilot/backend/global"
	"patchpilot/network"
)

// Waiter parks a long-poll until the device is notified.
type Waiter interface {
	Wait(deviceID string) (<-chan struct{}, func())
}

// ActionService owns the Action/ActionTarget lifecycle: submission, delivery,
// results, TTL changes and expiry.
type ActionService struct {
	actions  *repo.ActionRepository
	devices  *repo.DeviceRepository
	settings *SettingsStore
	waiter   Waiter
	notifier hub.Notifier
	metrics  *metrics.Metrics
	secret   []byte
	Now      func() time.Time
}

func NewActionService(actions *repo.ActionRepository, devices *repo.DeviceRepository, settings *SettingsStore, waiter Waiter, notifier hub.Notifier, m *metrics.Metrics, secret string) *ActionService {
	return &ActionService{
		actions:  actions,
		devices:  devices,
		settings: settings,
		waiter:   waiter,
		notifier: notifier,
		metrics:  m,
		secret:   []byte(secret),
		Now:      time.Now,
	}
}

func (s *ActionService) now() time.Time { return s.Now().UTC() }

// TargetIDs returns the distinct, non-empty device ids a submit names.
func TargetIDs(req dto.SubmitActionRequest) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}
	add(req.TargetDeviceID)
	for _, id := range req.TargetDeviceIDs {
		add(id)
	}
	return out
}

// Submit creates an action and its pending targets. The TTL is the requested
// one, or the default, never more than the configured maximum.
func (s *ActionService) Submit(req dto.SubmitActionRequest, author string) (*models.Action, error) {
	kind := network.CommandKind(req.Kind)
	if kind == "" {
		kind = network.KindShell
	}
	switch kind {
	case network.KindShell, network.KindScript, network.KindExec:
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidCommand, req.Kind)
	}
	if strings.TrimSpace(req.Command) == "" {
		return nil, fmt.Errorf("%w: empty command", ErrInvalidCommand)
	}
	if req.TimeoutSecs != nil && *req.TimeoutSecs > network.MaxTimeoutSecs {
		return nil, fmt.Errorf("%w: timeout_secs above %d", ErrInvalidCommand, network.MaxTimeoutSecs)
	}
	ids := TargetIDs(req)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no target device", ErrInvalidCommand)
	}
	n, err := s.devices.CountExisting(ids)
	if err != nil {
		return nil, err
	}
	if int(n) != len(ids) {
		return nil, fmt.Errorf("%w: unknown target device", ErrNotFound)
	}

	snap := s.settings.Snapshot()
	ttl := int64(snap.DefaultActionTTLSeconds)
	if req.TTLSeconds != nil {
		if *req.TTLSeconds <= 0 {
			return nil, ErrInvalidTTL
		}
		ttl = *req.TTLSeconds
	}
	if maxTTL := int64(snap.MaxActionTTLSeconds); ttl > maxTTL {
		ttl = maxTTL
	}

	var args string
	if len(req.Args) > 0 {
		b, err := network.JSON.Marshal(req.Args)
		if err != nil {
			return nil, err
		}
		args = string(b)
	}
	now := s.now()
	a := &models.Action{
		Kind:        string(kind),
		Command:     req.Command,
		Args:        args,
		TimeoutSecs: req.TimeoutSecs,
		Author:      author,
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Duration(ttl) * time.Second),
	}
	e := repo.Entry{Actor: author, Event: "action.submit", Detail: fmt.Sprintf("kind=%s ttl=%ds command=%q", kind, ttl, req.Command)}
	if _, err := s.actions.Create(a, ids, e); err != nil {
		return nil, fmt.Errorf("create action: %w", err)
	}
	s.metrics.IncSubmitted()
	global.Logger.Info().Uint("action_id", a.ID).Strs("devices", ids).Int64("ttl", ttl).Str("author", author).Msg("action submitted")
	if s.notifier != nil {
		s.notifier.Notify(ids...)
	}
	return a, nil
}

func (s *ActionService) ttlInfo(a *models.Action) dto.TTLResponse {
	remaining := int64(a.ExpiresAt.Sub(s.now()) / time.Second)
	if remaining < 0 || a.Canceled {
		remaining = 0
	}
	return dto.TTLResponse{ActionID: a.ID, ExpiresAt: a.ExpiresAt, RemainingSeconds: remaining, Canceled: a.Canceled}
}

func (s *ActionService) TTL(id uint) (dto.TTLResponse, error) {
	a, err := s.actions.Get(id)
	if err != nil {
		return dto.TTLResponse{}, err
	}
	return s.ttlInfo(a), nil
}

// ExtendTTL sets the action to expire ttlSeconds from now, clamped to the
// configured maximum. Canceled actions cannot be revived.
func (s *ActionService) ExtendTTL(id uint, ttlSeconds int64, actor string) (dto.TTLResponse, error) {
	if ttlSeconds <= 0 {
		return dto.TTLResponse{}, ErrInvalidTTL
	}
	a, err := s.actions.Get(id)
	if err != nil {
		return dto.TTLResponse{}, err
	}
	if a.Canceled {
		return dto.TTLResponse{}, ErrActionCanceled
	}
	if maxTTL := int64(s.settings.Snapshot().MaxActionTTLSeconds); ttlSeconds > maxTTL {
		ttlSeconds = maxTTL
	}
	now := s.now()
	expires := now.Add(time.Duration(ttlSeconds) * time.Second)
	e := repo.Entry{Actor: actor, Event: "action.ttl", Target: fmt.Sprintf("action:%d", id),
		Detail: fmt.Sprintf("ttl=%ds expires_at=%s", ttlSeconds, expires.Format(time.RFC3339))}
	ok, err := s.actions.SetExpiresAt(id, expires, e, now)
	if err != nil {
		return dto.TTLResponse{}, err
	}
	if !ok {
		return dto.TTLResponse{}, ErrActionCanceled
	}
	a.ExpiresAt = expires
	global.Logger.Info().Uint("action_id", id).Int64("ttl", ttlSeconds).Str("actor", actor).Msg("action ttl changed")
	return s.ttlInfo(a), nil
}

// Cancel makes the action due now; the next sweep cancels it and expires its
// pending targets.
func (s *ActionService) Cancel(id uint, actor string) error {
	a, err := s.actions.Get(id)
	if err != nil {
		return err
	}
	if a.Canceled {
		return ErrActionCanceled
	}
	now := s.now()
	e := repo.Entry{Actor: actor, Event: "action.cancel", Target: fmt.Sprintf("action:%d", id)}
	ok, err := s.actions.SetExpiresAt(id, now, e, now)
	if err != nil {
		return err
	}
	if !ok {
		return ErrActionCanceled
	}
	global.Logger.Info().Uint("action_id", id).Str("actor", actor).Msg("action cancel requested")
	return nil
}

// Sweep cancels every live action whose deadline passed and expires its
// pending targets. It returns how many actions it canceled. A failed action
// is left for the next sweep.
func (s *ActionService) Sweep() (int, error) {
	now := s.now()
	due, err := s.actions.Due(now)
	if err != nil {
		s.metrics.IncSweep("error")
		return 0, fmt.Errorf("list due actions: %w", err)
	}
	var firstErr error
	canceled := 0
	for _, a := range due {
		e := repo.Entry{Actor: "system", Event: "action.expired", Target: fmt.Sprintf("action:%d", a.ID)}
		ok, expired, err := s.actions.Expire(a.ID, now, e)
		if err != nil {
			global.Logger.Error().Err(err).Uint("action_id", a.ID).Msg("expire action")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !ok {
			continue
		}
		canceled++
		s.metrics.IncExpired()
		s.metrics.IncTargetTransition(models.TargetExpired, int(expired))
		global.Logger.Info().Uint("action_id", a.ID).Int64("targets_expired", expired).Msg("action expired")
	}
	if firstErr != nil {
		s.metrics.IncSweep("error")
		return canceled, firstErr
	}
	s.metrics.IncSweep("ok")
	return canceled, nil
}

// Poll hands the device its deliverable commands, waiting up to the
// configured long-poll window when there are none.
func (s *ActionService) Poll(ctx context.Context, deviceID string) ([]network.RemoteCommand, error) {
	snap := s.settings.Snapshot()
	if !snap.ActionPollingEnabled {
		s.metrics.ObservePoll("disabled", 0)
		return []network.RemoteCommand{}, nil
	}
	d, err := s.devices.FindByUUID(deviceID)
	if err != nil {
		return nil, err
	}
	if !d.Approved {
		return nil, ErrDeviceNotApproved
	}
	if err := s.devices.Touch(deviceID, s.now()); err != nil {
		global.Logger.Warn().Err(err).Str("device_id", deviceID).Msg("touch device")
	}

	wait := time.Duration(snap.LongPollSeconds) * time.Second
	var woken <-chan struct{}
	if wait > 0 && s.waiter != nil {
		// Register before the first claim so a submit landing in between
		// is not missed.
		ch, release := s.waiter.Wait(deviceID)
		defer release()
		woken = ch
	}

	cmds, err := s.claim(deviceID)
	if err != nil || len(cmds) > 0 || woken == nil {
		return s.observePoll(cmds, err)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return s.observePoll(cmds, nil)
	case <-timer.C:
		return s.observePoll(cmds, nil)
	case <-woken:
		return s.observePoll(s.claim(deviceID))
	}
}

func (s *ActionService) observePoll(cmds []network.RemoteCommand, err error) ([]network.RemoteCommand, error) {
	switch {
	case err != nil:
		s.metrics.ObservePoll("error", 0)
		return nil, err
	case len(cmds) == 0:
		s.metrics.ObservePoll("empty", 0)
		return []network.RemoteCommand{}, nil
	default:
		s.metrics.ObservePoll("commands", len(cmds))
		return cmds, nil
	}
}

func (s *ActionService) claim(deviceID string) ([]network.RemoteCommand, error) {
	claimed, err := s.actions.ClaimPending(deviceID, s.now())
	if err != nil {
		return nil, fmt.Errorf("claim targets: %w", err)
	}
	out := make([]network.RemoteCommand, 0, len(claimed))
	for _, c := range claimed {
		cmd := network.RemoteCommand{
			ID:          strconv.FormatUint(uint64(c.Target.ID), 10),
			Kind:        network.CommandKind(c.Action.Kind),
			Name:        c.Action.Command,
			TimeoutSecs: c.Action.TimeoutSecs,
		}
		if c.Action.Args != "" {
			if err := network.JSON.Unmarshal([]byte(c.Action.Args), &cmd.Args); err != nil {
				return nil, fmt.Errorf("decode args of action %d: %w", c.Action.ID, err)
			}
		}
		signed, err := network.Sign(cmd, s.secret)
		if err != nil {
			return nil, err
		}
		out = append(out, signed)
		global.Logger.Info().Str("device_id", deviceID).Uint("action_id", c.Action.ID).Str("command_id", cmd.ID).Msg("command delivered")
	}
	return out, nil
}

// PostResult records a device's result for one command. deviceID may be
// empty when the caller only knows the command id. The first terminal write
// wins; a second one gets ErrTargetFinalized.
func (s *ActionService) PostResult(deviceID, commandID string, res network.CommandResult) error {
	id, err := strconv.ParseUint(commandID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: command %q", ErrNotFound, commandID)
	}
	if res.ID != "" && res.ID != commandID {
		return fmt.Errorf("%w: result id %q does not match command %q", ErrInvalidCommand, res.ID, commandID)
	}
	switch res.Status {
	case network.StatusOK, network.StatusFailed, network.StatusRejected, network.StatusTimeout:
	default:
		return fmt.Errorf("%w: unknown result status %q", ErrInvalidCommand, res.Status)
	}
	t, err := s.actions.GetTarget(uint(id))
	if err != nil {
		return err
	}
	if deviceID != "" && t.DeviceID != deviceID {
		return fmt.Errorf("%w: command %q", ErrNotFound, commandID)
	}

	status := models.TargetCompleted
	if res.Status == network.StatusRejected {
		status = models.TargetRejected
	}
	r := repo.Result{
		Status:       status,
		ResultStatus: string(res.Status),
		ExitCode:     res.ExitCode,
		Stdout:       res.Stdout,
		Stderr:       res.Stderr,
		StartedAt:    res.StartedAt,
		FinishedAt:   res.FinishedAt,
	}
	e := repo.Entry{Actor: "device:" + t.DeviceID, Event: "target." + status, Target: "target:" + commandID,
		Detail: fmt.Sprintf("result=%s", res.Status)}
	ok, err := s.actions.Finish(t.ID, r, e, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrTargetFinalized
	}
	s.metrics.IncTargetTransition(status, 1)
	global.Logger.Info().Str("device_id", t.DeviceID).Uint("action_id", t.ActionID).Str("command_id", commandID).
		Str("status", status).Str("result", string(res.Status)).Msg("result recorded")
	return nil
}

func (s *ActionService) List(limit int) ([]dto.ActionResponse, error) {
	actions, err := s.actions.List(limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ActionResponse, 0, len(actions))
	for _, a := range actions {
		r := dto.ActionResponse{
			ID: a.ID, Kind: a.Kind, Command: a.Command, TimeoutSecs: a.TimeoutSecs, Author: a.Author,
			CreatedAt: a.CreatedAt, ExpiresAt: a.ExpiresAt, Canceled: a.Canceled,
		}
		if a.Args != "" {
			_ = network.JSON.Unmarshal([]byte(a.Args), &r.Args)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *ActionService) Targets(actionID uint) ([]dto.TargetResponse, error) {
	if _, err := s.actions.Get(actionID); err != nil {
		return nil, err
	}
	targets, err := s.actions.Targets(actionID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.TargetResponse, 0, len(targets))
	for _, t := range targets {
		out = append(out, dto.TargetResponse{
			ID: t.ID, ActionID: t.ActionID, DeviceID: t.DeviceID, Status: t.Status, DeliveredAt: t.DeliveredAt,
			ResultStatus: t.ResultStatus, ExitCode: t.ExitCode, Stdout: t.Stdout, Stderr: t.Stderr,
			StartedAt: t.StartedAt, FinishedAt: t.FinishedAt, LastUpdate: t.LastUpdate,
		})
	}
	return out, nil
}
