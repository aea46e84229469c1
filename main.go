package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sheikhrachel/lifeboard/utils"
)

func main() {
	var (
		configPath = flag.String("config", "config.json", "path to the JSON configuration file")
		logPath    = flag.String("log", "", "write logs to this file (discarded when empty)")
		debug      = flag.Bool("debug", false, "log at debug level")
		headless   = flag.Bool("headless", false, "print generations to stdout instead of opening the terminal UI")
		preset     = flag.String("preset", "glider", "pattern to seed in headless mode")
		steps      = flag.Int("steps", 10, "generations to advance in headless mode")
	)
	flag.Parse()

	// Load configuration - fallback to defaults if file doesn't exist
	config, err := utils.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Using default configuration (%v)\n", err)
		config = utils.DefaultConfig()
	}

	logger, closeLog, err := newLogger(*logPath, *debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error opening log file:", err)
		os.Exit(1)
	}
	defer closeLog()

	app, err := newApp(config, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error starting game:", err)
		os.Exit(1)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *headless {
		err = runHeadless(ctx, app, *preset, *steps, os.Stdout)
	} else {
		err = runTerminal(ctx, app)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger. The terminal UI owns stdout, so logs
// only go to a file.
func newLogger(path string, debug bool) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, func() { f.Close() }, nil
}
