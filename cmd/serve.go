package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanhnv2901/gatespy/internal/api"
	"github.com/khanhnv2901/gatespy/internal/lifecycle"
	"github.com/khanhnv2901/gatespy/internal/relay"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay gateway and dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		cfg := appCtx.Config

		ln, err := net.Listen("tcp", cfg.Serve.Addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.Serve.Addr, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s gatespy listening on http://%s (scanner: %s)\n", colorInfo("→"), ln.Addr(), cfg.ScannerURL)
		fmt.Fprintf(cmd.OutOrStdout(), "%s Press Ctrl+C to gracefully shutdown\n", colorInfo("→"))

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := runServer(ctx, ln, appCtx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Server shutdown complete\n", colorInfo("✓"))
		return nil
	},
}

// newAPIServer assembles the gateway, the dashboard controller and the HTTP surface.
// The returned cleanup releases the controller and background workers.
func newAPIServer(appCtx *AppContext) (*api.Server, func()) {
	cfg := appCtx.Config
	gateway := relay.NewGateway(relay.Config{
		ScannerURL: cfg.ScannerURL,
		Timeout:    cfg.ScannerTimeout,
		Logger:     appCtx.Logger,
	})
	dashboard := lifecycle.New(gateway.Analyzer(), lifecycle.Options{
		Timeout: cfg.ScannerTimeout,
		Logger:  appCtx.Logger,
	})
	server := api.NewServer(api.Config{
		Gateway:     gateway,
		Dashboard:   dashboard,
		Logger:      appCtx.Logger,
		CORSOrigins: cfg.Serve.CORSOrigins,
		RateLimit:   cfg.Serve.RateLimit,
		RateBurst:   cfg.Serve.RateBurst,
	})
	return server, func() {
		dashboard.Close()
		server.Close()
	}
}

// runServer serves on ln until ctx is cancelled, then shuts down gracefully.
func runServer(ctx context.Context, ln net.Listener, appCtx *AppContext) error {
	handler, cleanup := newAPIServer(appCtx)
	defer cleanup()

	// No WriteTimeout: event streams stay open and relayed analyses may run for minutes.
	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	appCtx.Logger.Info("shutting_down", zap.Duration("timeout", appCtx.Config.Serve.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCtx.Config.Serve.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		if closeErr := httpServer.Close(); closeErr != nil {
			return fmt.Errorf("failed to gracefully shutdown server: %w (close error: %v)", err, closeErr)
		}
		return fmt.Errorf("failed to gracefully shutdown server: %w", err)
	}
	return nil
}

func init() {
	serveCmd.Flags().StringVar(&cliConfig.Serve.Addr, "addr", cliConfig.Serve.Addr, "Address for the HTTP server")
	serveCmd.Flags().DurationVar(&cliConfig.Serve.ShutdownTimeout, "shutdown-timeout", cliConfig.Serve.ShutdownTimeout, "Graceful shutdown timeout")
	serveCmd.Flags().StringSliceVar(&cliConfig.Serve.CORSOrigins, "cors-origins", nil, "Allowed CORS origins (empty = allow all)")
	serveCmd.Flags().IntVar(&cliConfig.Serve.RateLimit, "rate-limit", cliConfig.Serve.RateLimit, "Rate limit per IP (requests/second, 0 = disabled)")
	serveCmd.Flags().IntVar(&cliConfig.Serve.RateBurst, "rate-burst", cliConfig.Serve.RateBurst, "Rate limit burst size")
}
