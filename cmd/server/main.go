package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/talkflow/talkflow/internal/asr"
	"github.com/talkflow/talkflow/internal/config"
	"github.com/talkflow/talkflow/internal/metrics"
	"github.com/talkflow/talkflow/internal/server"
	"github.com/talkflow/talkflow/internal/session"
	"github.com/talkflow/talkflow/internal/translate"
	"github.com/talkflow/talkflow/internal/tts"
)

const version = "1.0.0"

func main() {
	var (
		configPath  = flag.String("config", "config.yaml", "path to configuration file")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("talkflow %s\n", version)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting talkflow",
		"version", version,
		"sample_rate", cfg.Audio.SampleRate,
		"vad_engine", cfg.VAD.Engine,
		"asr_engine", cfg.ASR.Engine,
		"translate_engine", cfg.Translate.Engine,
		"tts_engine", cfg.TTS.Engine)

	collab, err := buildCollaborators(cfg)
	if err != nil {
		logger.Error("failed to build pipeline collaborators", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	manager := session.NewManager(cfg, collab, m, logger)
	srv := server.NewServer(cfg, manager, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-gctx.Done()

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
		manager.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// loadConfig reads the config file, falling back to defaults when the default
// path does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if path != "config.yaml" {
			return nil, fmt.Errorf("config file %s does not exist", path)
		}
		cfg := config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.Load(path)
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out *os.File
	switch cfg.Output {
	case "stderr":
		out = os.Stderr
	default:
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}

// buildCollaborators constructs the shared stage backends from configuration.
func buildCollaborators(cfg *config.Config) (session.Collaborators, error) {
	var c session.Collaborators

	switch cfg.ASR.Engine {
	case "http":
		client, err := asr.NewClient(asr.ClientConfig{
			Endpoint:      cfg.ASR.Endpoint,
			APIKey:        cfg.ASR.APIKey,
			Model:         cfg.ASR.Model,
			Timeout:       cfg.ASR.GetTimeoutDuration(),
			MaxRetries:    cfg.ASR.MaxRetries,
			MaxConcurrent: cfg.ASR.MaxConcurrent,
		})
		if err != nil {
			return c, fmt.Errorf("asr client: %w", err)
		}
		c.Recognizer = client
	default:
		c.Recognizer = &asr.MockRecognizer{Delay: 50 * time.Millisecond}
	}

	switch cfg.Translate.Engine {
	case "http":
		client, err := translate.NewClient(translate.ClientConfig{
			Endpoint: cfg.Translate.Endpoint,
			APIKey:   cfg.Translate.APIKey,
			Timeout:  cfg.Translate.GetTimeoutDuration(),
		})
		if err != nil {
			return c, fmt.Errorf("translate client: %w", err)
		}
		c.Translator = client
	default:
		c.Translator = translate.Mock{}
	}

	switch cfg.TTS.Engine {
	case "http":
		client, err := tts.NewClient(tts.ClientConfig{
			Endpoint: cfg.TTS.Endpoint,
			Voice:    cfg.TTS.Voice,
			Timeout:  cfg.TTS.GetTimeoutDuration(),
		})
		if err != nil {
			return c, fmt.Errorf("tts client: %w", err)
		}
		c.Synthesizer = client
	default:
		c.Synthesizer = &tts.Mock{SampleRate: cfg.Audio.SampleRate}
	}

	return c, nil
}
