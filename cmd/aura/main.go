// Command aura is a terminal research assistant. It talks to the research
// backend, renders answers with an insight panel and can read them aloud.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MrWong99/aura/internal/app"
	"github.com/MrWong99/aura/internal/config"
	"github.com/MrWong99/aura/internal/observe"
)

// shutdownTimeout bounds the teardown after the command finished.
const shutdownTimeout = 15 * time.Second

var (
	configPath string
	envFile    string
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "aura",
	Short: "Aura - a terminal research assistant",
	Long: `Aura is a conversational research assistant for the terminal.

Ask about companies, markets and competitors. Answers are rendered as
Markdown next to an insight panel of metrics, trends and sources, and can be
read aloud through ElevenLabs.

Run without arguments to start the interactive chat.`,
	SilenceUsage: true,
	RunE:         runChat,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "aura.yaml", "path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the configuration")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "aura.log", "log destination while the chat UI owns the terminal")

	rootCmd.AddCommand(chatCmd, askCmd, historyCmd, exportCmd, resetCmd, doctorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "aura:", err)
		os.Exit(1)
	}
}

// loadEnvFile loads path into the process environment. A missing file is
// not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// loadConfig reads the configuration at path, falling back to the defaults
// when the file does not exist, and applies the environment overrides.
func loadConfig(path string, lookup func(string) (string, bool)) (*config.Config, error) {
	cfg, err := config.Load(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Debug("config file not found, using defaults", "path", path)
		cfg = config.Default()
	case err != nil:
		return nil, err
	}
	config.ApplyEnv(cfg, lookup)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, level *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// instance is everything a subcommand needs. close must be called once.
type instance struct {
	app     *app.App
	cfg     *config.Config
	closers []func(context.Context) error
}

// start loads the configuration, installs the logger on logOut and builds
// the application.
func start(ctx context.Context, logOut io.Writer, opts ...app.Option) (*instance, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}
	levelVar := new(slog.LevelVar)
	slog.SetDefault(newLogger(logOut, levelVar))

	cfg, err := loadConfig(configPath, os.LookupEnv)
	if err != nil {
		return nil, err
	}
	levelVar.Set(app.ParseLevel(cfg.LogLevel))

	inst := &instance{cfg: cfg}
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: cfg.Telemetry.ServiceName})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	inst.closers = append(inst.closers, shutdownTelemetry)

	// The global meter provider is set now, so the default instruments
	// report to the Prometheus exporter.
	opts = append([]app.Option{app.WithMetrics(observe.DefaultMetrics()), app.WithLevelVar(levelVar)}, opts...)
	a, err := app.New(ctx, cfg, opts...)
	if err != nil {
		_ = shutdownTelemetry(ctx)
		return nil, err
	}
	inst.app = a
	inst.closers = append([]func(context.Context) error{a.Shutdown}, inst.closers...)

	slog.Info("aura starting",
		"config", configPath,
		"backend", cfg.Backend.BaseURL,
		"storage", cfg.Storage.Driver,
		"speech", cfg.Speech.Engine,
	)
	return inst, nil
}

func (inst *instance) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, c := range inst.closers {
		if err := c(ctx); err != nil {
			slog.Warn("shutdown error", "err", err)
		}
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
