package command

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"patchpilot/agent/internal/logger"
	"patchpilot/network"
)

// Poller is the slice of the backend API the dispatch loop needs.
type Poller interface {
	PollCommands(ctx context.Context, deviceID string, timeout time.Duration) ([]network.RemoteCommand, error)
	PostResult(ctx context.Context, deviceID string, res network.CommandResult) error
}

// Dispatcher long-polls for commands and runs each one in its own goroutine.
type Dispatcher struct {
	poller   Poller
	policy   *Policy
	engine   *Engine
	deviceID func() string

	LongPoll       time.Duration
	Interval       time.Duration
	Backoff        time.Duration
	DefaultTimeout time.Duration

	// Reauth is called when the server rejects the device token. A nil
	// Reauth treats the rejection like any other poll error.
	Reauth func(ctx context.Context) error

	stopped  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewDispatcher(p Poller, policy *Policy, engine *Engine, deviceID func() string) *Dispatcher {
	return &Dispatcher{
		poller:         p,
		policy:         policy,
		engine:         engine,
		deviceID:       deviceID,
		LongPoll:       60 * time.Second,
		Interval:       5 * time.Second,
		Backoff:        5 * time.Second,
		DefaultTimeout: 300 * time.Second,
		stopCh:         make(chan struct{}),
	}
}

// Run polls until Stop is called or ctx ends. It never waits for the
// commands it dispatches; use Wait for that.
func (d *Dispatcher) Run(ctx context.Context) {
	logger.Infof("Dispatch loop started device=%s", d.deviceID())
	for {
		if d.stopped.Load() || ctx.Err() != nil {
			logger.Info("Dispatch loop stopped")
			return
		}
		cmds, err := d.poller.PollCommands(ctx, d.deviceID(), d.LongPoll)
		switch {
		case err != nil && (network.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded)) && ctx.Err() == nil:
			// idle long-poll
		case network.IsStatus(err, http.StatusUnauthorized) && d.Reauth != nil:
			logger.Warn("Device token rejected, re-registering")
			if rerr := d.Reauth(ctx); rerr != nil && ctx.Err() == nil {
				logger.Warnf("Re-register failed: %v", rerr)
				d.pause(ctx, d.Backoff)
			}
		case err != nil:
			if ctx.Err() == nil {
				logger.Warnf("Poll failed: %v", err)
			}
			d.pause(ctx, d.Backoff)
		case len(cmds) == 0:
			d.pause(ctx, d.Interval)
		default:
			logger.Infof("Received %d command(s)", len(cmds))
			for _, c := range cmds {
				d.spawn(c)
			}
		}
	}
}

// Stop asks the loop to exit before its next poll. In-flight commands keep
// running.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.stopped.Store(true)
		close(d.stopCh)
	})
}

// Wait blocks until every dispatched command has posted its result.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) pause(ctx context.Context, dur time.Duration) {
	if dur <= 0 {
		return
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.C:
	case <-d.stopCh:
	case <-ctx.Done():
	}
}

func (d *Dispatcher) spawn(c network.RemoteCommand) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("Command %s panicked: %v", c.ID, r)
			}
		}()
		res := d.Handle(context.Background(), c)
		d.post(res)
	}()
}

// Handle verifies and executes one command. Verification always happens
// before a concurrency slot is taken.
func (d *Dispatcher) Handle(ctx context.Context, c network.RemoteCommand) network.CommandResult {
	plan, err := d.policy.Verify(c)
	if err != nil {
		now := network.Timestamp(d.engine.Now())
		logger.Warnf("Command %s %v", c.ID, err)
		reason := err.Error()
		var re *RejectError
		if errors.As(err, &re) {
			reason = re.Reason
		}
		return network.CommandResult{
			ID:         c.ID,
			Status:     network.StatusRejected,
			Stderr:     reason,
			StartedAt:  now,
			FinishedAt: now,
		}
	}
	logger.Infof("Executing command %s kind=%s", c.ID, c.Kind)
	return d.engine.Run(ctx, c.ID, plan, c.Timeout(d.DefaultTimeout))
}

// post makes one delivery attempt; a lost result is logged, not retried.
func (d *Dispatcher) post(res network.CommandResult) {
	err := d.poller.PostResult(context.Background(), d.deviceID(), res)
	if err != nil {
		logger.Errorf("Post result for command %s failed: %v", res.ID, err)
		return
	}
	logger.Infof("Command %s finished status=%s%s", res.ID, res.Status, exitSuffix(res.ExitCode))
}

func exitSuffix(code *int) string {
	if code == nil {
		return ""
	}
	return fmt.Sprintf(" exit=%d", *code)
}
