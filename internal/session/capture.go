package session

import (
	"context"

	"github.com/kozaktomas/cashier/internal/apperr"
	"github.com/kozaktomas/cashier/internal/backend"
	"github.com/kozaktomas/cashier/internal/capture"
)

// StartCapture opens the camera and starts polling for a smiling face.
// It returns the activation ID. Capture is only available in Identify
// while no face has been recognised.
func (c *Controller) StartCapture(ctx context.Context) (string, error) {
	const op = "start capture"

	c.mu.Lock()
	if err := c.requireLocked(op, StepIdentify); err != nil {
		c.mu.Unlock()
		return "", err
	}
	if c.camera == nil || c.detector == nil {
		c.mu.Unlock()
		return "", apperr.Validation(op, MsgCaptureDisabled)
	}
	if c.resolver.HasBiometric() {
		c.mu.Unlock()
		return "", apperr.Validation(op, MsgAlreadyRecognised)
	}
	if c.loop == nil {
		c.loop = capture.NewLoop(c.camera, c.detector, c.be, c.captureCfg,
			capture.WithLogger(c.logger),
			capture.WithMetrics(c.metrics),
			capture.WithEvents(c.events),
			capture.WithResultHandler(c.onCaptured),
		)
	}
	loop := c.loop
	c.mu.Unlock()

	if err := loop.Open(ctx); err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.step != StepIdentify || c.token == "" {
		c.mu.Unlock()
		cancel()
		loop.Close()
		return "", ErrSuperseded
	}
	if c.stopLoop != nil {
		c.stopLoop()
	}
	c.stopLoop = cancel
	c.mu.Unlock()

	go func() {
		if err := loop.Run(runCtx); err != nil && runCtx.Err() == nil {
			c.logger.Warn("capture loop stopped", "error", err)
		}
	}()

	id := loop.ActivationID()
	c.logger.Info("capture started", "activation", id)
	return id, nil
}

// StopCapture stops the loop and releases the camera.
func (c *Controller) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLocked("stop capture"); err != nil {
		return err
	}
	c.stopCaptureLocked()
	return nil
}

func (c *Controller) stopCaptureLocked() {
	if c.stopLoop != nil {
		c.stopLoop()
		c.stopLoop = nil
	}
	if c.loop != nil {
		if err := c.loop.Close(); err != nil {
			c.logger.Warn("camera release failed", "error", err)
		}
	}
}

// onCaptured feeds a capture loop result into identification.
func (c *Controller) onCaptured(rec backend.Recognition) {
	if _, err := c.ReceiveBiometric(rec); err != nil {
		c.logger.Debug("capture result dropped", "error", err)
	}
}
