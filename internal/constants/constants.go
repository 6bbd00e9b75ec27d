// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Capture loop constants
const (
	// CaptureInterval is how often the capture loop samples a frame
	CaptureInterval = 200 * time.Millisecond

	// SmileThreshold is the positive-expression score a face must exceed
	// before the loop latches into a capture
	SmileThreshold = 0.90

	// JPEGQuality is the quality used when encoding the captured face region
	JPEGQuality = 90

	// RecogniseTimeout bounds a single recognition upload
	RecogniseTimeout = 10 * time.Second
)

// Persistence constants
const (
	// TokenKey is the fixed name the operator token is stored under
	TokenKey = "jwt"

	// DefaultCashierID is used in upload filenames when the token carries no shop or entity id
	DefaultCashierID = "debug"
)

// Backend defaults
const (
	// DefaultAPIURL is the backend used when CASHIER_API_URL is unset
	DefaultAPIURL = "http://localhost:8002"

	// DefaultUserAppURL is the customer app that handles enrollment hand-off
	DefaultUserAppURL = "http://localhost:5174"
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for capture event channels
	EventChannelBuffer = 100
)

// File upload constants
const (
	// MaxUploadSize is the maximum frame upload size in bytes (10MB)
	MaxUploadSize = 10 << 20
)
