package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"patchpilot/agent/internal/config"
	"patchpilot/agent/internal/logger"
	"patchpilot/agent/internal/privilege"
	"patchpilot/agent/internal/selfupdate"
	"patchpilot/agent/internal/service"

	"github.com/spf13/pflag"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	var (
		cfgPath     = pflag.StringP("config", "c", "", "Path to configuration file")
		control     = pflag.String("service", "", "Service control: install, uninstall, start, stop, restart")
		checkUpdate = pflag.Bool("update", false, "Check for a new agent release once and exit")
		logLevel    = pflag.String("log-level", "info", "Log level (debug, info, warn, error)")
		showVersion = pflag.BoolP("version", "v", false, "Print version and exit")
	)
	pflag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Init(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Cannot load config:", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogPath)
	logger.SetLevel(*logLevel)

	if !privilege.IsElevated() {
		logger.Warn("Agent is not running with administrative rights; some commands may fail")
	}

	agent := service.NewAgent(cfg, version)

	if *checkUpdate {
		err := agent.CheckUpdate(context.Background())
		switch {
		case errors.Is(err, selfupdate.ErrUpToDate):
			logger.Infof("Agent %s is up to date", version)
		case err != nil:
			logger.Errorf("Update failed: %v", err)
			os.Exit(1)
		}
		return
	}

	var args []string
	if *cfgPath != "" {
		abs, err := filepath.Abs(*cfgPath)
		if err == nil {
			args = []string{"--config", abs}
		}
	}
	svc, err := service.New(service.NewProgram(agent), args)
	if err != nil {
		logger.Errorf("Cannot create service: %v", err)
		os.Exit(1)
	}

	if *control != "" {
		if err := service.Control(svc, *control); err != nil {
			logger.Errorf("Service %s failed: %v", *control, err)
			os.Exit(1)
		}
		logger.Infof("Service %s: ok", *control)
		return
	}

	logger.Infof("PatchPilot agent %s starting, server=%s", version, cfg.ServerURL)
	if err := svc.Run(); err != nil {
		logger.Errorf("Service run failed: %v", err)
		os.Exit(1)
	}
}
