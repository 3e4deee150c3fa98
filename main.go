// Sensoriqua server - telematics dashboard backend.
// Resolves tenant context per request, persists dashboard configuration, and
// serves batched time-series aggregates from tenant warehouses.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/AndyMelnik/sensoriqua/appstate"
	"github.com/AndyMelnik/sensoriqua/auth"
	"github.com/AndyMelnik/sensoriqua/logger"
	"github.com/AndyMelnik/sensoriqua/warehouse"
	"github.com/kardianos/service"
)

// Version information (set at build time via -ldflags)
var (
	Version   = "dev"     // Semantic version (e.g., "0.1.0")
	BuildTime = "unknown" // Build timestamp
	GitCommit = "unknown" // Git commit hash
)

var (
	serverConfig    *Config
	serverLogger    *logger.Logger
	sessionResolver *auth.Resolver
	stateStores     *appstate.Manager
	warehouses      *warehouse.Manager
)

func main() {
	configPath := flag.String("config", "sensoriqua.toml", "Path to TOML configuration file")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	logLevel := flag.String("log-level", "", "Log level (error, warn, info, debug, trace)")
	svcFlag := flag.String("service", "", "Service control: install, uninstall, start, stop, run")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *port != 0 {
		cfg.Server.HTTPPort = *port
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	serverConfig = cfg

	if *svcFlag != "" && *svcFlag != "run" {
		if err := controlService(*svcFlag); err != nil {
			log.Fatal(err)
		}
		return
	}
	if *svcFlag == "run" {
		if err := runAsService(); err != nil {
			log.Fatal(err)
		}
		return
	}

	runServer(context.Background())
}

// runServer wires the application and serves HTTP until ctx is cancelled.
func runServer(ctx context.Context) {
	cfg := serverConfig

	log.Printf("Sensoriqua Server %s", Version)
	log.Printf("Build: %s, Commit: %s", BuildTime, GitCommit)
	log.Printf("Go: %s, OS: %s, Arch: %s", runtime.Version(), runtime.GOOS, runtime.GOARCH)

	serverLogger = logger.New(logger.ParseLevel(cfg.Logging.Level), cfg.Logging.Dir, 1000)
	defer serverLogger.Close()
	appstate.SetLogger(serverLogger)
	warehouse.SetLogger(serverLogger)

	codec := auth.NewCodec(cfg.Auth.JWTSecret)
	if codec.Strict() {
		serverLogger.Info("Strict session mode enabled, operator-provided signing secret in use")
	} else {
		serverLogger.Warn("No usable signing secret configured, sessions will not survive a restart",
			"hint", "set JWT_SECRET with at least 32 characters")
	}
	sessionResolver = auth.NewResolver(codec, auth.NewRegistry())

	stateStores = appstate.NewManager(cfg.Storage.AppStateDSN)
	defer stateStores.Close()
	warehouses = warehouse.NewManager()
	defer warehouses.Close()

	handler := withCORS(withSecurityHeaders(setupRoutes()))

	addr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		serverLogger.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		serverLogger.Info("Shutdown requested, draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			serverLogger.Warn("Shutdown did not complete cleanly", "error", err)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			serverLogger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}
}

// controlService installs, uninstalls, starts or stops the system service.
func controlService(action string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	if action == "install" {
		if err := setupServiceDirectories(); err != nil {
			return err
		}
	}
	if err := service.Control(svc, action); err != nil {
		return fmt.Errorf("service %s failed: %w", action, err)
	}
	fmt.Printf("Service %s: done\n", action)
	return nil
}

// runAsService hands control to the service manager.
func runAsService() error {
	svc, err := newService()
	if err != nil {
		return err
	}
	return svc.Run()
}
