package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/cashier/internal/backend"
	"github.com/kozaktomas/cashier/internal/capture"
	"github.com/kozaktomas/cashier/internal/config"
	"github.com/kozaktomas/cashier/internal/metrics"
	"github.com/kozaktomas/cashier/internal/session"
	"github.com/kozaktomas/cashier/internal/tokenstore"
)

// newBackendClient creates a backend client, honouring --capture.
func newBackendClient(cfg *config.Config) (*backend.Client, error) {
	client, err := backend.New(cfg.Backend.URL, backend.WithRecogniseTimeout(cfg.Backend.RecogniseTimeout))
	if err != nil {
		return nil, fmt.Errorf("creating backend client: %w", err)
	}
	if captureDir != "" {
		if err := client.SetCaptureDir(captureDir); err != nil {
			return nil, err
		}
		fmt.Printf("Capturing API responses to %s\n", captureDir)
	}
	return client, nil
}

// openSession builds a session controller with the configured token store
// and restores a persisted login. The caller closes the returned store.
func openSession(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*session.Controller, tokenstore.Store, error) {
	client, err := newBackendClient(cfg)
	if err != nil {
		return nil, nil, err
	}

	store, err := tokenstore.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening token store: %w", err)
	}

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithMetrics(m),
		session.WithEnrollmentBase(cfg.Enrollment.UserAppURL),
	}
	if cfg.Capture.Enabled() {
		opts = append(opts, session.WithCapture(
			capture.NewDirectoryCamera(cfg.Capture.FramesDir),
			capture.NewHTTPDetector(cfg.Capture.DetectorURL, cfg.Capture.Expression),
			capture.Config{
				Interval:    cfg.Capture.Interval,
				Threshold:   cfg.Capture.Threshold,
				JPEGQuality: cfg.Capture.JPEGQuality,
			},
		))
	}

	ctrl := session.New(client, store, opts...)
	if err := ctrl.Restore(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	return ctrl, store, nil
}

// restoreClient returns a backend client carrying the persisted operator token.
func restoreClient(ctx context.Context, cfg *config.Config) (*backend.Client, error) {
	store, err := tokenstore.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening token store: %w", err)
	}
	defer store.Close()

	token, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading token: %w", err)
	}
	if token == "" {
		return nil, fmt.Errorf("not logged in, run \"cashier login\" first")
	}

	client, err := newBackendClient(cfg)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)
	return client, nil
}
