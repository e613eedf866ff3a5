package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/foliochat/internal/proxy"
)

const pidFile = "foliochat.pid"

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat front door",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, pidFile)
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := setupLogging(cfg)
	defer logger.Sync()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	gw, stream := newClients(cfg)
	srv := proxy.New(gw.Raw(), stream, proxy.Options{
		CookieName:   cfg.HTTP.CookieName,
		CookieMaxAge: cfg.HTTP.CookieMaxAge,
		SecureCookie: cfg.HTTP.SecureCookie,
		PageSize:     cfg.Chat.PageSize,
		Logger:       logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("foliochat started",
			zap.String("listen", cfg.HTTP.Listen),
			zap.String("backend", cfg.Backend.URL),
			zap.String("pid_file", pidPath))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for {
		select {
		case err, ok := <-serveErr:
			if ok {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case sig := <-sigChan:
			shutdown(httpServer, logger)
			if sig == syscall.SIGHUP {
				logger.Info("received SIGHUP, restarting")
				execPath, err := os.Executable()
				if err != nil {
					return fmt.Errorf("get executable path: %w", err)
				}
				os.Remove(pidPath)
				if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
					return fmt.Errorf("re-exec: %w", err)
				}
			}
			logger.Info("shutting down", zap.String("signal", sig.String()))
			return nil
		}
	}
}

func shutdown(srv *http.Server, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		srv.Close()
	}
}
