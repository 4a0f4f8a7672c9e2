package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	app "table-call/internal"
	"table-call/internal/backend"
	"table-call/internal/config"
	"table-call/internal/jwt"
	"table-call/internal/push"
	"table-call/internal/routes"
	"table-call/internal/storage"
	"table-call/internal/tablecode"
	"table-call/internal/tableview"
	"table-call/internal/telemetry"
	"table-call/internal/utils"
)

const serviceName = "table-call"

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the table call server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return ServerMain(cmd.Context(), cfg, provider)
	},
}

// Initialize logger
func initLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(cfg.LogLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN", "WARNING":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
		println("Invalid log level in config, defaulting to INFO")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Debug("Logger initialized", "level", level.String())
	return logger
}

// newPushListener builds the listener every mounted view and dashboard
// connects through.
func newPushListener(cfg *config.Config, logger *slog.Logger) (push.Listener, error) {
	switch cfg.Push.Type {
	case "none", "":
		logger.Warn("Push notifications disabled, views only refresh on their own actions")
		return push.Nop{}, nil
	case "websocket", "socketio":
		u, err := push.WebSocketURL(cfg.BackendURL, cfg.Push.Path)
		if err != nil {
			return nil, err
		}
		return push.NewWebSocketListener(u, cfg.Push.Type == "socketio", logger), nil
	case "nats":
		return push.NewNATSListener(cfg.Push.NATSURL, cfg.Push.NATSSubject, logger), nil
	default:
		return nil, fmt.Errorf("unsupported push type %q", cfg.Push.Type)
	}
}

func ServerMain(ctx context.Context, cfg *config.Config, storageProvider storage.Provider) error {
	if cfg == nil {
		return errors.New("config not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := initLogger(cfg)

	shutdownTracing := telemetry.Setup(serviceName, utils.GetVersion())
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Warn("Tracer shutdown failed", "error", err)
		}
	}()

	codec, err := tablecode.NewCodec(cfg.TableSecret)
	if err != nil {
		return err
	}
	client, err := backend.New(cfg.BackendURL, cfg.RequestTimeout, backend.WithLogger(logger))
	if err != nil {
		return err
	}
	listener, err := newPushListener(cfg, logger)
	if err != nil {
		return err
	}

	var signer *jwt.Signer
	if cfg.Secret != "" {
		if signer, err = jwt.NewSigner(cfg.Secret, cfg.AdminTokenTTL); err != nil {
			return err
		}
	}

	views := tableview.NewRegistry()
	defer views.CloseAll()

	s := &routes.Server{
		Cfg:      cfg,
		Codec:    codec,
		Backend:  client,
		Views:    views,
		Signer:   signer,
		Listener: listener,
		Bindings: push.ParseBindings(cfg.Push.Events),
		Logger:   logger,
	}
	if storageProvider != nil {
		s.Storage = storageProvider
	}

	engine, err := app.HTTPServer(s)
	if err != nil {
		return fmt.Errorf("failed to build HTTP server: %w", err)
	}

	// Cancelled on SIGINT/SIGTERM, which also ends every open event stream
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           otelhttp.NewHandler(engine, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Listening", "addr", cfg.Listen, "backend", cfg.BackendURL, "push", cfg.Push.Type, "version", utils.GetVersion())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down", "views", views.Len())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown error", "error", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
