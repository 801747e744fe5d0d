// Package service manages the bot process's daemon lifecycle: PID file
// bookkeeping and signal-driven shutdown, the same concerns the teacher's
// internal/service package handles for its HTTP server.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/relaybot/relay/internal/config"
	"github.com/relaybot/relay/pkg/bot"
)

// Daemon runs a *bot.Bot to completion, owning the PID file and the
// signal handling that tells it when to shut down.
type Daemon struct {
	cfg    *config.Config
	bot    *bot.Bot
	logger *slog.Logger

	stopCh    chan struct{}
	stoppedCh chan struct{}
	mu        sync.Mutex
	running   bool
}

// NewDaemon constructs a Daemon around an already-built bot.
func NewDaemon(cfg *config.Config, b *bot.Bot, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{
		cfg:       cfg,
		bot:       b,
		logger:    logger,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start writes the PID file, then loads and starts the bot, removing the
// PID file again if the bot fails to start.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon already running")
	}
	d.running = true
	d.mu.Unlock()

	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	if err := d.writePID(); err != nil {
		return fmt.Errorf("write PID: %w", err)
	}
	if err := d.bot.Run(ctx); err != nil {
		d.removePID()
		return fmt.Errorf("start bot: %w", err)
	}
	return nil
}

// Wait blocks until a shutdown signal arrives or Stop is called, then
// shuts the bot down gracefully.
func (d *Daemon) Wait(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		d.logger.Info("service: received signal, shutting down", "signal", sig.String())
	case <-d.stopCh:
		d.logger.Info("service: stop requested, shutting down")
	}

	d.shutdown(ctx)
}

// Stop signals a running daemon to shut down and waits for it to finish.
func (d *Daemon) Stop(ctx context.Context) {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	close(d.stopCh)
	<-d.stoppedCh
}

func (d *Daemon) shutdown(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(d.cfg.Bot.ShutdownTimeout)*time.Second)
	defer cancel()

	d.bot.Shutdown(shutdownCtx, 0)
	d.removePID()

	d.running = false
	close(d.stoppedCh)
}

func (d *Daemon) writePID() error {
	pidPath := d.cfg.PIDPath()
	if err := os.MkdirAll(filepath.Dir(pidPath), 0755); err != nil {
		return fmt.Errorf("create PID directory: %w", err)
	}
	return os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func (d *Daemon) removePID() {
	_ = os.Remove(d.cfg.PIDPath())
}

// IsRunning reports whether a bot process is already running per the PID
// file recorded in cfg, cleaning up a stale file if the process is gone.
func IsRunning(cfg *config.Config) (bool, int) {
	pidPath := cfg.PIDPath()

	data, err := os.ReadFile(pidPath)
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}

	if err := process.Signal(syscall.Signal(0)); err != nil {
		_ = os.Remove(pidPath)
		return false, 0
	}

	return true, pid
}

// StopRunning sends SIGTERM to a running daemon and waits for it to exit,
// escalating to SIGKILL if it doesn't within a few seconds.
func StopRunning(cfg *config.Config) error {
	running, pid := IsRunning(cfg)
	if !running {
		return fmt.Errorf("daemon not running")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send signal: %w", err)
	}

	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if running, _ := IsRunning(cfg); !running {
			return nil
		}
	}

	if err := process.Kill(); err != nil {
		return fmt.Errorf("kill process: %w", err)
	}
	_ = os.Remove(cfg.PIDPath())
	return nil
}
