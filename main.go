package main

import (
	"context"
	"fmt"
	"github.com/thushan/ladle/internal/app"
	"github.com/thushan/ladle/internal/env"
	"github.com/thushan/ladle/internal/version"
	"github.com/thushan/ladle/pkg/format"
	"github.com/thushan/ladle/pkg/nerdstats"
	"github.com/thushan/ladle/pkg/profiler"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/thushan/ladle/internal/logger"
)

func main() {
	startTime := time.Now()
	vlog := log.New(log.Writer(), "", 0)
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.PrintVersionInfo(true, vlog)
		os.Exit(0)
	} else {
		version.PrintVersionInfo(false, vlog)
	}

	// logging first; everything after this reports through the styled logger
	lcfg := buildLoggerConfig()
	logInstance, styledLogger, cleanup, err := logger.NewWithTheme(lcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	slog.SetDefault(logInstance)

	styledLogger.Info("Initialising", "version", version.Version, "pid", os.Getpid())

	if env.GetEnvBoolOrDefault("LADLE_PROFILER", false) {
		profilerAddr := env.GetEnvOrDefault("LADLE_PROFILER_ADDR", "localhost:6060")
		profiler.InitialiseProfiler(profilerAddr)
		styledLogger.Warn("Profiler enabled", "address", profilerAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		styledLogger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	application, err := app.New(startTime, styledLogger)
	if err != nil {
		logger.FatalWithLogger(logInstance, "Failed to create application", "error", err)
	}

	if err := application.Start(ctx); err != nil {
		logger.FatalWithLogger(logInstance, "Failed to start application", "error", err)
	}

	<-ctx.Done()

	if err := application.Stop(context.Background()); err != nil {
		styledLogger.Error("Error during shutdown", "error", err)
	}

	reportProcessStats(styledLogger, startTime)

	styledLogger.Info("Ladle has shutdown")
}

// reportProcessStats dumps runtime counters on the way out. Handy for
// spotting leaks across long sessions without wiring up the profiler.
func reportProcessStats(log logger.StyledLogger, startTime time.Time) {
	runtime.GC()

	stats := nerdstats.Snapshot(startTime)

	log.Info("Memory at shutdown",
		"heap_alloc", format.Bytes(stats.HeapAlloc),
		"heap_inuse", format.Bytes(stats.HeapInuse),
		"heap_sys", format.Bytes(stats.HeapSys),
		"heap_released", format.Bytes(stats.HeapReleased),
		"stack_inuse", format.Bytes(stats.StackInuse),
		"lifetime_alloc", format.Bytes(stats.TotalAlloc),
		"pressure", stats.GetMemoryPressure(),
	)

	log.Info("Allocator totals",
		"mallocs", stats.Mallocs,
		"frees", stats.Frees,
		"live_objects", int64(stats.Mallocs)-int64(stats.Frees),
	)

	if stats.NumGC > 0 {
		log.Info("Garbage collector",
			"cycles", stats.NumGC,
			"last_run", stats.LastGC.Format(time.RFC3339),
			"total_pause", format.Duration(stats.TotalGCTime),
			"avg_pause", nerdstats.CalculateAverageGCPause(stats),
			"cpu_fraction", fmt.Sprintf("%.4f%%", stats.GCCPUFraction*100),
		)
	}

	log.Info("Runtime",
		"uptime", format.Duration(stats.Uptime),
		"goroutines", stats.NumGoroutines,
		"goroutine_health", stats.GetGoroutineHealthStatus(),
		"go_version", stats.GoVersion,
		"num_cpu", stats.NumCPU,
		"gomaxprocs", stats.GOMAXPROCS,
	)

	if buildInfo := stats.GetBuildInfoSummary(); len(buildInfo) > 0 {
		args := make([]any, 0, len(buildInfo)*2)
		for key, value := range buildInfo {
			args = append(args, key, value)
		}
		log.Info("Build info", args...)
	}
}

// buildLoggerConfig reads the logger settings from the environment; the
// config file can't drive these because logging has to exist before the
// file is read.
func buildLoggerConfig() *logger.Config {
	level := env.FirstEnv("LADLE_LOG_LEVEL", "LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	return &logger.Config{
		Level:      level,
		FileOutput: env.GetEnvBoolOrDefault("LADLE_FILE_OUTPUT", true),
		LogDir:     env.GetEnvOrDefault("LADLE_LOG_DIR", "./logs"),
		MaxSize:    env.GetEnvIntOrDefault("LADLE_MAX_SIZE", 100),
		MaxBackups: env.GetEnvIntOrDefault("LADLE_MAX_BACKUPS", 5),
		MaxAge:     env.GetEnvIntOrDefault("LADLE_MAX_AGE", 30),
		Theme:      env.GetEnvOrDefault("LADLE_THEME", "default"),
	}
}
