// robotsim: simulated mobile robot with an HTTP API, a live status
// websocket and a browser dashboard
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-robotsim/internal/config"
	"github.com/teslashibe/go-robotsim/internal/log"
	"github.com/teslashibe/go-robotsim/pkg/robot"
	"github.com/teslashibe/go-robotsim/pkg/telemetry"
	"github.com/teslashibe/go-robotsim/pkg/web"
)

var (
	version    = "1.0.0"
	configPath = flag.String("config", "", "Path to config file (default: ./robotsim.yaml if present)")
	debug      = flag.Bool("debug", false, "Enable debug logging and request logs")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Log.Level = "debug"
		cfg.Server.Debug = true
	}

	log.Init(cfg.Log.Level)
	logger := log.With("version", version)
	log.Debug("configuration loaded",
		"file", *configPath,
		"addr", cfg.Server.Addr(),
		"telemetry", cfg.Telemetry.Backend)

	fmt.Println()
	fmt.Println("🤖 robotsim v" + version)
	fmt.Println("   Simulated mobile robot")
	fmt.Println()

	sim, err := robot.New(cfg.Robot.Options(logger)...)
	if err != nil {
		log.Error("invalid robot configuration", "error", err)
		os.Exit(1)
	}

	srv := web.NewServer(sim, web.Config{
		StaticDir:      cfg.Server.StaticDir,
		StatusInterval: cfg.Server.StatusInterval,
		Debug:          cfg.Server.Debug,
		Version:        version,
		Logger:         logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx)

	var sink telemetry.Sink
	if cfg.Telemetry.Enabled() {
		sink, err = telemetry.NewSink(cfg.Telemetry)
		if err != nil {
			log.Warn("telemetry disabled", "backend", cfg.Telemetry.Backend, "error", err)
		} else {
			reporter := telemetry.NewReporter(sink, sim, cfg.Telemetry.TopicPrefix, cfg.Telemetry.Interval, logger)
			go reporter.Run(ctx)
			log.Info("telemetry enabled", "backend", cfg.Telemetry.Backend, "prefix", cfg.Telemetry.TopicPrefix)
		}
	}

	// Start server
	addr := cfg.Server.Addr()
	go func() {
		log.Info("starting server", "addr", addr)
		log.Info("endpoints",
			"api", fmt.Sprintf("http://localhost:%d/api/robot", cfg.Server.Port),
			"websocket", fmt.Sprintf("ws://localhost:%d/ws/status", cfg.Server.Port),
			"health", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port))

		if err := srv.Listen(addr); err != nil {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	cancel()
	if sink != nil {
		sink.Close()
	}
	sim.Close()

	log.Info("goodbye")
}
