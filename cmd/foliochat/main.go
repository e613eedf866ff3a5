package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/foliochat/internal/backend"
	"github.com/user/foliochat/internal/config"
	"github.com/user/foliochat/internal/controller"
	"github.com/user/foliochat/internal/logging"
	"github.com/user/foliochat/internal/types"
	"github.com/user/foliochat/pkg/uistream"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "foliochat",
	Short:         "Chat with the portfolio assistant and manage chat sessions",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath(), "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config) *zap.Logger {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func newClients(cfg *config.Config) (*backend.Client, *uistream.Client) {
	gw := backend.New(&backend.Config{
		BaseURL: cfg.Backend.URL,
		APIKey:  cfg.Backend.APIKey,
		Timeout: cfg.Backend.Timeout,
	})
	stream := uistream.New(&uistream.Config{URL: gw.StreamURL(), APIKey: cfg.Backend.APIKey})
	return gw, stream
}

// session is the per-command wiring of the chat core for the local visitor.
type session struct {
	cfg        *config.Config
	logger     *zap.Logger
	ctrl       *controller.Controller
	newVisitor bool
}

func openSession() (*session, error) {
	cfg := loadConfig()
	logger := setupLogging(cfg)

	cookie, created, err := config.LoadOrCreateCookie(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	gw, stream := newClients(cfg)
	ctrl := controller.New(gw, stream, controller.Options{
		Cookie:               cookie,
		PageSize:             cfg.Chat.PageSize,
		MaxConcurrentEffects: int64(cfg.Chat.MaxConcurrentEffects),
		Retry: &controller.RetryPolicy{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
			Multiplier:   2.0,
			MaxDelay:     cfg.Retry.MaxDelay,
		},
		Logger: logger,
	})
	return &session{cfg: cfg, logger: logger, ctrl: ctrl, newVisitor: created}, nil
}

func (s *session) Close() {
	s.ctrl.Close()
	_ = s.logger.Sync()
}

// flush waits for queued backend mutations and reports their failures.
func (s *session) flush(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return s.ctrl.Flush(ctx)
}

// ensureSession makes id known to the store, loading the first sessions
// page and falling back to selecting it directly.
func (s *session) ensureSession(ctx context.Context, id types.SessionID) error {
	if err := s.ctrl.RefreshSessions(ctx); err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if _, ok := s.ctrl.State().Session(id); ok {
		return nil
	}
	if err := s.ctrl.SelectSession(ctx, id); err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}
	return nil
}
