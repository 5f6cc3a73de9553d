package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"veridia/internal/config"
	"veridia/internal/game"
	"veridia/internal/logger"
	"veridia/internal/services"
	"veridia/internal/storage"
	"veridia/pkg/prompts"
	"veridia/pkg/scenario"
)

func main() {
	cfg := config.Load()

	// The TUI owns the terminal; logs go to a file in the save dir.
	logSink := io.Writer(io.Discard)
	if err := os.MkdirAll(cfg.SaveDir, 0o755); err == nil {
		if f, err := os.OpenFile(filepath.Join(cfg.SaveDir, "client.log"),
			os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
			defer func() { _ = f.Close() }()
			logSink = f
		}
	}
	log := logger.Setup(cfg, logSink)

	scen, err := loadScenario(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load scenario: %v\n", err)
		os.Exit(1)
	}
	builder := prompts.NewBuilder(scen)

	gen, images, err := buildProvider(cfg, builder, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	store, err := buildStore(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up session store: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	ctrl := game.New(gen, images, store, cfg.SaveSlot, log)

	p := tea.NewProgram(NewUI(ctrl, scen, log),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}

	// Let straggler art requests finish and release subscribers before
	// tearing the store down.
	ctrl.Close()
}

func loadScenario(cfg *config.Config) (*scenario.Scenario, error) {
	if cfg.ScenarioPath != "" {
		return scenario.LoadFile(cfg.ScenarioPath)
	}
	return scenario.Default()
}

func buildProvider(cfg *config.Config, builder *prompts.Builder, log *slog.Logger) (services.Generator, services.ImageGenerator, error) {
	switch cfg.Provider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, nil, fmt.Errorf("GEMINI_API_KEY is not set (or set VERIDIA_PROVIDER=ollama for local play)")
		}
		svc := services.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiImageModel, builder, log)
		return svc, svc, nil

	case "ollama":
		svc := services.NewOllamaService(cfg.OllamaURL, cfg.OllamaModel, builder, log)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := svc.InitModel(ctx); err != nil {
			return nil, nil, fmt.Errorf("ollama is not ready: %w", err)
		}
		// No image model locally; scenes go without art.
		return svc, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func buildStore(cfg *config.Config, log *slog.Logger) (storage.Store, error) {
	if cfg.RedisAddr != "" {
		store := storage.NewRedisStore(cfg.RedisAddr, log)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("redis at %s: %w", cfg.RedisAddr, err)
		}
		return store, nil
	}
	return storage.NewFileStore(cfg.SaveDir, log)
}
