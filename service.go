package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/kardianos/service"
)

// program implements service.Interface
type program struct {
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	svcLogger service.Logger
}

func (p *program) Start(s service.Service) error {
	p.svcLogger, _ = s.Logger(nil)
	if p.svcLogger != nil {
		p.svcLogger.Info("Sensoriqua Server service starting")
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.done = make(chan struct{})

	go p.run()
	return nil
}

func (p *program) run() {
	defer close(p.done)

	if p.svcLogger != nil {
		p.svcLogger.Info("Sensoriqua Server service running")
	}

	runServer(p.ctx)

	if p.svcLogger != nil {
		p.svcLogger.Info("Sensoriqua Server service stopping")
	}
}

func (p *program) Stop(s service.Service) error {
	if p.svcLogger != nil {
		p.svcLogger.Info("Sensoriqua Server service stop requested")
	}

	if p.cancel != nil {
		p.cancel()
	}

	// Wait for run() to finish with timeout
	timeout := time.After(30 * time.Second)
	select {
	case <-p.done:
		if p.svcLogger != nil {
			p.svcLogger.Info("Sensoriqua Server service stopped gracefully")
		}
	case <-timeout:
		if p.svcLogger != nil {
			p.svcLogger.Warning("Sensoriqua Server service stopped with timeout")
		}
	}

	return nil
}

func newService() (service.Service, error) {
	return service.New(&program{}, getServiceConfig())
}

func getServiceConfig() *service.Config {
	workingDir, _ := servicePaths()
	return &service.Config{
		Name:             "SensoriquaServer",
		DisplayName:      "Sensoriqua Server",
		Description:      "Sensoriqua telematics dashboard backend. Serves tenant dashboards and batched telemetry aggregates.",
		WorkingDirectory: workingDir,
		Arguments:        []string{"--service", "run"},
		Option: service.KeyValue{
			"StartType":  "automatic",
			"OnFailure":  "restart",
			"Restart":    "on-failure",
			"RestartSec": 5,
			"KillSignal": "SIGTERM",
			"RunAtLoad":  true,
			"KeepAlive":  true,
		},
	}
}

// servicePaths returns the working directory and config file location for the
// current platform. The working directory holds the embedded sqlite state and
// the log directory.
func servicePaths() (workingDir, configPath string) {
	switch runtime.GOOS {
	case "windows":
		workingDir = filepath.Join(os.Getenv("ProgramData"), "Sensoriqua", "server")
		configPath = filepath.Join(workingDir, "sensoriqua.toml")
	case "darwin":
		workingDir = "/Library/Application Support/Sensoriqua/server"
		configPath = filepath.Join(workingDir, "sensoriqua.toml")
	default:
		workingDir = "/var/lib/sensoriqua/server"
		configPath = "/etc/sensoriqua/server.toml"
	}
	return workingDir, configPath
}

// setupServiceDirectories prepares the working directory, log directory and a
// default config file before the service is installed.
func setupServiceDirectories() error {
	workingDir, configPath := servicePaths()
	for _, dir := range []string{filepath.Join(workingDir, "logs"), filepath.Dir(configPath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath); err != nil {
			return fmt.Errorf("failed to generate default config at %s: %w", configPath, err)
		}
		fmt.Printf("Generated default configuration at: %s\n", configPath)
	} else {
		fmt.Printf("Configuration already exists at: %s\n", configPath)
	}
	return nil
}
