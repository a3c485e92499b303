// Package main provides the entry point for the mcp-datasette server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	mcpserver "github.com/txn2/mcp-datasette/internal/server"
	"github.com/txn2/mcp-datasette/pkg/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type serverOptions struct {
	configPath string

	// Single-instance mode, used when no config file is given.
	url           string
	instanceID    string
	description   string
	authToken     string
	courtesyDelay float64

	transport   string
	address     string
	logLevel    string
	showVersion bool
}

func parseFlags() serverOptions {
	opts := serverOptions{}
	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.url, "url", "", "Datasette instance URL (single-instance mode, instead of -config)")
	flag.StringVar(&opts.instanceID, "id", "", "Instance id for -url; derived from the URL when empty")
	flag.StringVar(&opts.description, "description", "", "Description of the instance given with -url")
	flag.StringVar(&opts.authToken, "auth-token", "", "Bearer token for the instance given with -url")
	flag.Float64Var(&opts.courtesyDelay, "courtesy-delay", -1, "Seconds between requests to the same instance (single-instance mode)")
	flag.StringVar(&opts.transport, "transport", "stdio", "Transport type: stdio, http")
	flag.StringVar(&opts.address, "address", ":8080", "Listen address for the http transport")
	flag.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	flag.Parse()
	return opts
}

func setupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx
}

// newLogger writes to stderr so the stdio transport keeps stdout clean for
// protocol frames.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// loadConfig resolves the configuration from, in order: the -config flag,
// single-instance flags, then file discovery.
func loadConfig(opts serverOptions) (*config.Config, error) {
	switch {
	case opts.configPath != "" && opts.url != "":
		return nil, fmt.Errorf("-config and -url are mutually exclusive")
	case opts.configPath != "":
		return config.Load(opts.configPath)
	case opts.url != "":
		si := config.SingleInstance{
			URL:         opts.url,
			ID:          opts.instanceID,
			Description: opts.description,
			AuthToken:   opts.authToken,
		}
		if opts.courtesyDelay >= 0 {
			si.CourtesyDelaySeconds = &opts.courtesyDelay
		}
		return config.FromSingleInstance(si), nil
	}
	if path := config.Discover(); path != "" {
		return config.Load(path)
	}
	return nil, fmt.Errorf("no configuration found: pass -config or -url, set %s, or place a config file under ~/.config/datasette-mcp/ or /etc/datasette-mcp/", config.EnvConfigPath)
}

func run() error {
	opts := parseFlags()

	if opts.showVersion {
		fmt.Printf("mcp-datasette version %s\n", mcpserver.Version)
		return nil
	}

	logger := newLogger(opts.logLevel)
	ctx := setupSignalHandler()

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s, err := mcpserver.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return startServer(ctx, s, opts, logger)
}

func startServer(ctx context.Context, s *mcp.Server, opts serverOptions, logger *slog.Logger) error {
	switch opts.transport {
	case "stdio":
		logger.Info("serving on stdio")
		return s.Run(ctx, &mcp.StdioTransport{})
	case "http":
		return serveHTTP(ctx, s, opts.address, logger)
	default:
		return fmt.Errorf("unknown transport: %s", opts.transport)
	}
}

func serveHTTP(ctx context.Context, s *mcp.Server, address string, logger *slog.Logger) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s
	}, nil)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/mcp", handler)
	r.Handle("/mcp/*", handler)

	srv := &http.Server{
		Addr:              address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving streamable HTTP", "address", address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
