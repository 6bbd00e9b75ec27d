package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/kozaktomas/cashier/internal/constants"
)

const defaultExpression = "happy"

// HTTPDetector scores frames with a face detection service. The service
// receives the frame as multipart field "file" on POST /detect and answers
// with every face it found and its expression probabilities.
type HTTPDetector struct {
	baseURL    string
	expression string
	client     *http.Client
}

// NewHTTPDetector creates a detector. expression selects which expression
// probability is used as the score.
func NewHTTPDetector(baseURL, expression string) *HTTPDetector {
	if expression == "" {
		expression = defaultExpression
	}
	return &HTTPDetector{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		expression: expression,
		client:     &http.Client{},
	}
}

// detectResponse represents the response from the detection service
type detectResponse struct {
	Faces []struct {
		Box         []float64          `json:"box"` // [x1, y1, x2, y2] in pixels
		Expressions map[string]float64 `json:"expressions"`
	} `json:"faces"`
}

// Detect returns the largest face in frame, or nil when there is none.
func (d *HTTPDetector) Detect(ctx context.Context, frame image.Image) (*Detection, error) {
	var encoded bytes.Buffer
	if err := jpeg.Encode(&encoded, frame, &jpeg.Options{Quality: constants.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(encoded.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to write frame data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/detect", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detector error (status %d): %s", resp.StatusCode, string(body))
	}

	var detResp detectResponse
	if err := json.Unmarshal(body, &detResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var best *Detection
	for _, face := range detResp.Faces {
		if len(face.Box) != 4 {
			continue
		}
		box := image.Rect(int(face.Box[0]), int(face.Box[1]), int(face.Box[2]), int(face.Box[3]))
		if best == nil || area(box) > area(best.Box) {
			best = &Detection{Box: box, Score: face.Expressions[d.expression]}
		}
	}
	return best, nil
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}
