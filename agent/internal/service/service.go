package service

import (
	"context"
	"os"
	"time"

	"patchpilot/agent/internal/logger"

	kardianos "github.com/kardianos/service"
)

const (
	Name        = "patchpilot-agent"
	DisplayName = "PatchPilot Agent"
	Description = "Polls the PatchPilot server for signed commands and runs them."
)

// Program adapts Agent to the OS service manager.
type Program struct {
	agent  *Agent
	cancel context.CancelFunc
	done   chan struct{}
}

func NewProgram(a *Agent) *Program { return &Program{agent: a} }

func (p *Program) Start(s kardianos.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		if err := p.agent.Run(ctx); err != nil {
			logger.Errorf("Agent stopped: %v", err)
			if kardianos.Interactive() {
				os.Exit(1)
			}
			_ = s.Stop()
		}
	}()
	return nil
}

func (p *Program) Stop(s kardianos.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	select {
	case <-p.done:
	case <-time.After(30 * time.Second):
		logger.Warn("Timed out waiting for running commands")
	}
	return nil
}

// New wraps p for the host service manager. args are passed to the
// installed service's command line.
func New(p *Program, args []string) (kardianos.Service, error) {
	return kardianos.New(p, &kardianos.Config{
		Name:        Name,
		DisplayName: DisplayName,
		Description: Description,
		Arguments:   args,
	})
}

// Control runs one of install, uninstall, start, stop or restart.
func Control(s kardianos.Service, action string) error {
	return kardianos.Control(s, action)
}
