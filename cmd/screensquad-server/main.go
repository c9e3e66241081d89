// ABOUTME: Entry point for the sync coordinator server
// ABOUTME: Parses CLI flags, loads config and starts the coordinator
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/RayendraNagata/ScreenSquad-sub000/internal/config"
	"github.com/RayendraNagata/ScreenSquad-sub000/internal/server"
	"github.com/RayendraNagata/ScreenSquad-sub000/internal/version"
)

var (
	configPath = flag.String("config", "", "Path to YAML config file")
	port       = flag.Int("port", 0, "WebSocket server port (overrides config)")
	name       = flag.String("name", "", "Server friendly name (default: hostname-screensquad)")
	logFile    = flag.String("log-file", "", "Log file path (default: console only)")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	// .env first so config sees the overrides
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *name != "" {
		cfg.Server.Name = *name
	}
	if *logFile != "" {
		cfg.Server.LogFile = *logFile
	}
	if cfg.Server.Name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		cfg.Server.Name = fmt.Sprintf("%s-screensquad", hostname)
	}

	log, closer, err := buildLogger(cfg.Server.LogFile, *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging error: %v\n", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}

	log.Info().
		Str("name", cfg.Server.Name).
		Int("port", cfg.Server.Port).
		Str("version", version.Version).
		Msg("starting coordinator")

	srv := server.New(server.Config{
		Port:           cfg.Server.Port,
		Name:           cfg.Server.Name,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Debug:          *debug,
	}, nil, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

// buildLogger writes console output, plus the log file when one is set.
func buildLogger(path string, debug bool) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stdout}
	if path == "" {
		return zerolog.New(console).Level(level).With().Timestamp().Logger(), nil, nil
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("error opening log file: %w", err)
	}
	w := io.MultiWriter(console, f)
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), f, nil
}
