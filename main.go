package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/beaconsage/claude-zephyr/internal/app"
	"github.com/beaconsage/claude-zephyr/internal/config"
	"github.com/beaconsage/claude-zephyr/internal/dashboard"
	"github.com/beaconsage/claude-zephyr/internal/env"
	"github.com/beaconsage/claude-zephyr/internal/logger"
	"github.com/beaconsage/claude-zephyr/internal/util"
	"github.com/beaconsage/claude-zephyr/internal/version"
	"github.com/beaconsage/claude-zephyr/pkg/container"
	"github.com/beaconsage/claude-zephyr/pkg/format"
	"github.com/beaconsage/claude-zephyr/pkg/nerdstats"
	"github.com/beaconsage/claude-zephyr/pkg/profiler"
)

const (
	exitOK            = 0
	exitConfigInvalid = 1
	exitBindFailed    = 2
	exitInterrupted   = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	startTime := time.Now()
	vlog := log.New(log.Writer(), "", 0)

	flags := parseFlags(os.Args[1:])
	if flags.version {
		version.PrintVersionInfo(true, vlog)
		return exitOK
	}
	version.PrintVersionInfo(false, vlog)

	lcfg := buildLoggerConfig()
	lcfg.PrettyLogs = !flags.headless
	logInstance, styledLogger, cleanup, err := logger.NewWithTheme(lcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialise logger: %v\n", err)
		return exitConfigInvalid
	}
	defer cleanup()
	slog.SetDefault(logInstance)

	styledLogger.Info("Initialising", "version", version.Version, "pid", os.Getpid(), "containerised", container.IsContainerised())

	if flags.pprof {
		profiler.InitialiseProfiler()
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		logInstance.Error("Configuration invalid", "error", err)
		return exitConfigInvalid
	}

	application, err := app.New(cfg, styledLogger)
	if err != nil {
		logInstance.Error("Failed to build application", "error", err)
		return exitConfigInvalid
	}

	if flags.testTiming {
		return runTestTiming(application, styledLogger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	interrupted := false
	go func() {
		select {
		case sig := <-sigCh:
			styledLogger.Info("Shutdown signal received", "signal", sig.String())
			interrupted = true
			cancel()
		case <-application.Control.ShutdownRequested():
			styledLogger.Info("Shutdown requested by operator")
			cancel()
		}
	}()

	if err := application.Start(ctx); err != nil {
		logInstance.Error("Failed to start application", "error", err)
		return exitBindFailed
	}

	if !flags.headless {
		go func() {
			if err := dashboard.Run(application.Control); err != nil {
				styledLogger.Error("dashboard exited with error", "error", err)
			}
			cancel()
		}()
	}

	<-ctx.Done()

	if err := application.Stop(context.Background()); err != nil {
		styledLogger.Error("Error during shutdown", "error", err)
	}

	reportProcessStats(styledLogger, startTime)
	styledLogger.Info("Claude Zephyr has shut down")

	if interrupted {
		return exitInterrupted
	}
	return exitOK
}

// runTestTiming runs exactly one probe round, prints the resulting status,
// and exits - for `--test-timing`.
func runTestTiming(application *app.Application, styledLogger *logger.StyledLogger) int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	application.Orchestrator.RunOnce(ctx)

	status := application.Control.Status()
	for _, ep := range status.Endpoints {
		latency := int64(-1)
		if ep.LastLatencyMs != nil {
			latency = *ep.LastLatencyMs
		}
		styledLogger.Info("probe result", "endpoint", ep.Name, "status", ep.Status, "latency_ms", latency)
	}
	styledLogger.Info("test-timing complete", "current_endpoint", status.CurrentEndpoint)
	return exitOK
}

type cliFlags struct {
	headless   bool
	testTiming bool
	version    bool
	pprof      bool
	configPath string
}

func parseFlags(args []string) cliFlags {
	var flags cliFlags
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--headless":
			flags.headless = true
		case "--test-timing":
			flags.testTiming = true
		case "--version":
			flags.version = true
		case "--pprof":
			flags.pprof = true
		case "--config":
			if i+1 < len(args) {
				flags.configPath = args[i+1]
				i++
			}
		}
	}
	return flags
}

func reportProcessStats(logger *logger.StyledLogger, startTime time.Time) {
	runtime.GC()

	stats := nerdstats.Snapshot(startTime)

	logger.Info("Process Memory Stats",
		"heap_alloc", format.Bytes(stats.HeapAlloc),
		"heap_sys", format.Bytes(stats.HeapSys),
		"heap_inuse", format.Bytes(stats.HeapInuse),
		"heap_released", format.Bytes(stats.HeapReleased),
		"stack_inuse", format.Bytes(stats.StackInuse),
		"total_alloc", format.Bytes(stats.TotalAlloc),
		"memory_pressure", stats.GetMemoryPressure(),
	)

	logger.Info("Process Allocation Stats",
		"total_mallocs", stats.Mallocs,
		"total_frees", stats.Frees,
		"net_objects", util.SafeInt64Diff(stats.Mallocs, stats.Frees),
	)

	if stats.NumGC > 0 {
		logger.Info("Garbage Collection Stats",
			"num_gc_cycles", stats.NumGC,
			"last_gc", stats.LastGC.Format(time.RFC3339),
			"total_gc_time", format.Duration(stats.TotalGCTime),
			"gc_cpu_fraction", fmt.Sprintf("%.4f%%", stats.GCCPUFraction*100),
		)
	}

	logger.Info("Goroutine Stats",
		"num_goroutines", stats.NumGoroutines,
		"goroutine_health", stats.GetGoroutineHealthStatus(),
		"num_cgo_calls", stats.NumCgoCall,
	)

	logger.Info("Runtime Stats",
		"uptime", format.Duration(stats.Uptime),
		"go_version", stats.GoVersion,
		"num_cpu", stats.NumCPU,
		"gomaxprocs", stats.GOMAXPROCS,
	)
}

// buildLoggerConfig creates logger config from environment variables with defaults
func buildLoggerConfig() *logger.Config {
	return &logger.Config{
		Level:      env.GetEnvOrDefault("ZEPHYR_LOG_LEVEL", "info"),
		FileOutput: env.GetEnvBoolOrDefault("ZEPHYR_FILE_OUTPUT", true),
		LogDir:     env.GetEnvOrDefault("ZEPHYR_LOG_DIR", "./logs"),
		MaxSize:    env.GetEnvIntOrDefault("ZEPHYR_MAX_SIZE", 100),
		MaxBackups: env.GetEnvIntOrDefault("ZEPHYR_MAX_BACKUPS", 5),
		MaxAge:     env.GetEnvIntOrDefault("ZEPHYR_MAX_AGE", 30),
		Theme:      env.GetEnvOrDefault("ZEPHYR_THEME", "default"),
	}
}
