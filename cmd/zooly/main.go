package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teilomillet/zooly/config"
	"github.com/teilomillet/zooly/errors"
	"github.com/teilomillet/zooly/server"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	configFile = flag.String("config", "", "Path to configuration file (defaults and environment only when empty)")
	validate   = flag.Bool("validate", false, "Validate configuration and exit")
	version    = flag.Bool("version", false, "Print version and exit")
	persona    = flag.String("persona", "", "Persona preset to serve (overrides "+config.EnvPersona+")")
)

const Version = "v0.1.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("zooly %s\n", Version)
		os.Exit(0)
	}

	if *persona != "" {
		os.Setenv(config.EnvPersona, *persona)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *validate {
		fmt.Printf("Configuration is valid (persona %s, model %s)\n", cfg.Persona.Name, cfg.Persona.Model)
		os.Exit(0)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	errors.SetLogger(logger)

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown requested")
		return nil
	})

	logger.Info("Starting zooly",
		zap.String("version", Version),
		zap.String("address", srv.Addr()),
		zap.String("persona", cfg.Persona.Name),
		zap.String("model", cfg.Persona.Model),
		zap.String("callback_path", cfg.LINE.CallbackPath),
	)

	if err := g.Wait(); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
	logger.Info("Server stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadEnv()
	}
	return config.LoadFile(path)
}

// newLogger builds the process logger. "text" selects zap's console encoder.
func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = level
	if cfg.Format == "text" {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return zcfg.Build()
}
