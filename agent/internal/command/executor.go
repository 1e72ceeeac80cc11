package command

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"patchpilot/network"
)

// maxOutput caps each captured stream.
const maxOutput = 1 << 20

// Engine runs verified plans under a fixed concurrency limit.
type Engine struct {
	launcher Launcher
	sem      chan struct{}
	// WaitDelay bounds how long Wait lingers on pipes after a kill.
	WaitDelay time.Duration
	Now       func() time.Time

	inflight atomic.Int64
	peak     atomic.Int64
}

func NewEngine(l Launcher, maxConcurrent int) *Engine {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Engine{
		launcher:  l,
		sem:       make(chan struct{}, maxConcurrent),
		WaitDelay: 2 * time.Second,
		Now:       time.Now,
	}
}

// Peak reports the largest number of processes seen running at once.
func (e *Engine) Peak() int64 { return e.peak.Load() }

// Inflight reports how many processes are running now.
func (e *Engine) Inflight() int64 { return e.inflight.Load() }

// Run executes p and always returns exactly one result for id. The timeout
// covers both the wait for a slot and the process itself.
func (e *Engine) Run(ctx context.Context, id string, p Plan, timeout time.Duration) network.CommandResult {
	res := network.CommandResult{ID: id, StartedAt: network.Timestamp(e.Now())}
	finish := func(st network.ResultStatus) network.CommandResult {
		res.Status = st
		res.FinishedAt = network.Timestamp(e.Now())
		return res
	}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case e.sem <- struct{}{}:
	case <-tctx.Done():
		if errors.Is(tctx.Err(), context.DeadlineExceeded) {
			res.Stderr = "timed out waiting for an execution slot"
			return finish(network.StatusTimeout)
		}
		res.Stderr = tctx.Err().Error()
		return finish(network.StatusFailed)
	}
	defer func() { <-e.sem }()

	var stdout, stderr capped
	cmd := e.launcher.Command(tctx, p)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Cancel = func() error { return e.launcher.Kill(cmd) }
	cmd.WaitDelay = e.WaitDelay

	if err := cmd.Start(); err != nil {
		res.Stderr = err.Error()
		return finish(network.StatusFailed)
	}
	n := e.inflight.Add(1)
	for {
		old := e.peak.Load()
		if n <= old || e.peak.CompareAndSwap(old, n) {
			break
		}
	}
	waitErr := cmd.Wait()
	e.inflight.Add(-1)

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	if errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return finish(network.StatusTimeout)
	}
	if cmd.ProcessState == nil {
		if waitErr != nil {
			res.Stderr += waitErr.Error()
		}
		return finish(network.StatusFailed)
	}
	code := cmd.ProcessState.ExitCode()
	res.ExitCode = &code
	if code < 0 {
		return finish(network.StatusFailed)
	}
	return finish(network.StatusOK)
}

// capped keeps the first maxOutput bytes written to it.
type capped struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	truncated bool
}

func (c *capped) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	room := maxOutput - c.buf.Len()
	if room <= 0 {
		c.truncated = true
		return len(p), nil
	}
	if len(p) > room {
		c.buf.Write(p[:room])
		c.truncated = true
		return len(p), nil
	}
	c.buf.Write(p)
	return len(p), nil
}

func (c *capped) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := strings.ToValidUTF8(c.buf.String(), "�")
	if c.truncated {
		s += "\n[output truncated]"
	}
	return s
}
