package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/cashier/internal/config"
	"github.com/kozaktomas/cashier/internal/logging"
	"github.com/kozaktomas/cashier/internal/metrics"
	"github.com/kozaktomas/cashier/internal/web"
	"github.com/kozaktomas/cashier/internal/web/middleware"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the session API",
	Long: `Start the cashier session API.
The API holds one operator session and is driven by the browser front end:
catalogue, customer identification (search, recognition, camera capture)
and checkout. Prometheus metrics are exposed on /metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	m := metrics.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl, store, err := openSession(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	defer store.Close()

	if ctrl.LoggedIn() {
		fmt.Println("Restored operator session")
	}
	if cfg.Capture.Enabled() {
		fmt.Printf("Face capture enabled (frames from %s)\n", cfg.Capture.FramesDir)
	}

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(ctrl, web.Options{
		Host:           host,
		Port:           port,
		AllowedOrigins: middleware.ParseAllowedOrigins(os.Getenv("WEB_ALLOWED_ORIGINS")),
		Metrics:        m,
		Logger:         logger,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting cashier API on http://%s:%d against %s\n", host, port, cfg.Backend.URL)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
