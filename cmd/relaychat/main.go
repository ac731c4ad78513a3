// relaychat connects to a chat relay and exchanges messages over stdin/stdout.
// Usage: go run ./cmd/relaychat --config configs/relaychat.example.yaml --name alice
//
// Lines typed on stdin are sent to the relay; /quit disconnects and exits.
// A .env file in the working directory is loaded before the config is read.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/relay-chat/internal/config"
	"github.com/rickgao/relay-chat/internal/connection"
	"github.com/rickgao/relay-chat/internal/terminal"
	"github.com/rickgao/relay-chat/internal/version"
)

// Exit codes
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const (
	quitCommand     = "/quit"
	shutdownTimeout = 5 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config file (optional)")
	url := flag.String("url", "", "relay URL, overrides relay.url")
	name := flag.String("name", "", "display name, overrides relay.identity")
	noColour := flag.Bool("no-color", false, "disable coloured output")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return exitOK
	}

	// Missing .env is fine
	_ = godotenv.Load()

	cfg, err := loadConfig(*configPath, *url, *name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "relaychat: %v\n", err)
		return exitConfig
	}

	// Setup logger
	level, _ := cfg.Log.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	logger.Info("starting relaychat", "version", version.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	presenter := terminal.NewPresenter(os.Stdout, terminal.Options{
		Colours: !*noColour && color.SupportColor(),
	})

	disconnected := make(chan struct{})
	mgrCfg := managerConfig(cfg)
	mgrCfg.Listener = presenter
	mgrCfg.OnDisconnect = sync.OnceFunc(func() { close(disconnected) })

	dialer := connection.NewDialer(sessionConfig(cfg), logger)
	mgr := connection.NewManager(mgrCfg, dialer, logger)

	if err := mgr.Start(ctx); err != nil {
		logger.Error("failed to start connection manager", "error", err)
		return exitRuntime
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		if err := mgr.Stop(stopCtx); err != nil {
			logger.Warn("connection manager stop", "error", err)
		}
		logStats(logger, mgr.Stats())
	}()

	if err := mgr.Connect(cfg.Relay.URL, cfg.Relay.Identity); err != nil {
		fmt.Fprintf(os.Stderr, "relaychat: %v\n", err)
		return exitConfig
	}

	lines := make(chan string)
	go readLines(os.Stdin, lines)

	g, gctx := errgroup.WithContext(ctx)

	// Input: forward lines until /quit, EOF or shutdown
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok || handleLine(mgr, presenter, line) {
					mgr.Disconnect()
					return nil
				}
			}
		}
	})

	// Shutdown watcher: a session that ended for good ends the program
	g.Go(func() error {
		select {
		case <-disconnected:
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("relaychat failed", "error", err)
		return exitRuntime
	}

	if mgr.State().Kind == connection.KindFailed {
		return exitRuntime
	}
	return exitOK
}

// loadConfig reads the optional file, applies flag overrides and validates.
func loadConfig(path, url, name string) (*config.ClientConfig, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadWithDefaults(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if url != "" {
		cfg.Relay.URL = url
	}
	if name != "" {
		cfg.Relay.Identity = name
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func managerConfig(cfg *config.ClientConfig) connection.ManagerConfig {
	mc := connection.DefaultManagerConfig()
	mc.Policy = connection.Policy{
		MaxAttempts: cfg.Reconnect.MaxAttempts,
		Interval:    cfg.Reconnect.Interval,
	}
	mc.EventBufferSize = cfg.Events.BufferSize
	return mc
}

func sessionConfig(cfg *config.ClientConfig) connection.SessionConfig {
	return connection.SessionConfig{
		HandshakeTimeout: cfg.Transport.HandshakeTimeout,
		WriteTimeout:     cfg.Transport.WriteTimeout,
		PingInterval:     cfg.Transport.PingInterval,
		PingTimeout:      cfg.Transport.PingTimeout,
		ReadLimit:        cfg.Transport.ReadLimit,
		SendBufferSize:   cfg.Transport.SendBuffer,
	}
}

// sender is the part of the manager the input loop needs.
type sender interface {
	SendMessage(text string) error
}

// handleLine sends one input line and reports whether the user asked to quit.
func handleLine(s sender, p connection.Listener, line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false
	case line == quitCommand:
		return true
	}

	if err := s.SendMessage(line); err != nil {
		if errors.Is(err, connection.ErrNotOpen) {
			p.OnConnectionError("not connected, message not sent")
		} else {
			p.OnConnectionError(err.Error())
		}
	}
	return false
}

// readLines forwards lines from r until EOF, then closes out.
func readLines(r io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

func logStats(logger *slog.Logger, stats connection.ManagerStats) {
	logger.Info("relaychat stopped",
		"state", stats.State,
		"sessions_dialed", stats.SessionsDialed,
		"sessions_opened", stats.SessionsOpened,
		"messages_sent", stats.MessagesSent,
		"messages_received", stats.MessagesReceived,
		"malformed_frames", stats.MalformedFrames,
	)
}
