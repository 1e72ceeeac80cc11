package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"patchpilot/agent/internal/command"
	"patchpilot/agent/internal/config"
	"patchpilot/agent/internal/device"
	"patchpilot/agent/internal/logger"
	"patchpilot/agent/internal/selfupdate"
	"patchpilot/agent/internal/state"
	"patchpilot/agent/internal/sysinfo"
	"patchpilot/network"
)

// Agent ties enrollment, the dispatch loop, heartbeats and update checks
// together for one process.
type Agent struct {
	cfg     config.AppConfig
	version string

	client     *network.Client
	enroller   *device.Enroller
	dispatcher *command.Dispatcher
	updater    *selfupdate.Coordinator
}

func NewAgent(cfg config.AppConfig, version string) *Agent {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 10 * time.Second
	}
	client := network.NewClient(cfg.ServerURL, cfg.RequestTimeout)
	client.Token = state.GetToken
	client.UserAgent = "patchpilot-agent/" + version

	report := func(id string) network.DeviceReport { return sysinfo.Report(id, version) }
	policy := &command.Policy{
		Secret:        []byte(cfg.CommandSecret),
		ScriptsDir:    cfg.ScriptsDir,
		ExecAllowlist: cfg.ExecAllowlist,
		AllowShell:    cfg.AllowShell,
	}
	engine := command.NewEngine(command.NewLauncher(), cfg.MaxConcurrent)
	d := command.NewDispatcher(client, policy, engine, state.GetDeviceID)
	d.LongPoll = cfg.LongPollTimeout
	d.Interval = cfg.PollInterval
	d.Backoff = cfg.ErrorBackoff
	d.DefaultTimeout = cfg.DefaultTimeout

	a := &Agent{
		cfg:     cfg,
		version: version,
		client:  client,
		enroller: &device.Enroller{
			Client:    client,
			IDPath:    cfg.DeviceIDPath,
			TokenPath: cfg.TokenPath,
			Report:    report,
			Retry:     cfg.ErrorBackoff,
			Interval:  cfg.HeartbeatInterval,
		},
		dispatcher: d,
	}
	d.Reauth = a.reauth
	if cfg.Update.ReleaseURL != "" {
		a.updater = selfupdate.NewCoordinator(cfg.Update.ReleaseURL, cfg.Update.AssetName, cfg.Update.HelperPath, version)
	}
	return a
}

// Run blocks until ctx ends. A failure to persist the device id is the only
// error it returns.
func (a *Agent) Run(ctx context.Context) error {
	if len(a.cfg.CommandSecret) == 0 {
		logger.Warn("agent.command_secret is empty; every command will be rejected")
	}
	if _, err := a.enroller.Register(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if err := a.enroller.WaitAdopted(ctx); err != nil {
		return nil
	}

	a.report(ctx)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.heartbeatLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		a.updateLoop(ctx)
	}()

	stop := context.AfterFunc(ctx, a.dispatcher.Stop)
	defer stop()
	a.dispatcher.Run(ctx)
	wg.Wait()
	a.dispatcher.Wait()
	return nil
}

// report posts the full host facts to the device resource.
func (a *Agent) report(ctx context.Context) {
	if _, err := a.enroller.Update(ctx); err != nil && ctx.Err() == nil {
		logger.Warnf("Device update failed: %v", err)
	}
}

// reauth re-registers with the stored token after the server rejected it.
func (a *Agent) reauth(ctx context.Context) error {
	if _, err := a.enroller.Register(ctx); err != nil {
		return err
	}
	a.report(ctx)
	return nil
}

func (a *Agent) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(a.cfg.HeartbeatInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st, err := a.enroller.Heartbeat(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warnf("Heartbeat failed: %v", err)
				}
				continue
			}
			if !st.Adopted {
				logger.Warnf("Device %s is no longer approved", st.DeviceID)
			}
		}
	}
}

func (a *Agent) updateLoop(ctx context.Context) {
	if a.updater == nil || a.cfg.Update.CheckInterval <= 0 {
		return
	}
	t := time.NewTicker(a.cfg.Update.CheckInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			err := a.updater.Run(ctx)
			switch {
			case errors.Is(err, selfupdate.ErrUpToDate):
			case err != nil:
				logger.Warnf("Update check failed: %v", err)
			}
		}
	}
}

// CheckUpdate runs a single update cycle, used by the --update flag.
func (a *Agent) CheckUpdate(ctx context.Context) error {
	if a.updater == nil {
		return errors.New("agent.update.release_url is not configured")
	}
	return a.updater.Run(ctx)
}
