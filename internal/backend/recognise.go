package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kozaktomas/cashier/internal/apperr"
	"github.com/kozaktomas/cashier/internal/constants"
)

const recogniseEndpoint = "recognise/"

// ErrNoProfile marks a recognition response that names no profile.
var ErrNoProfile = errors.New("recognition returned no profile")

// Recognise uploads a JPEG face crop and returns the backend's match.
func (c *Client) Recognise(ctx context.Context, image []byte) (*Recognition, error) {
	const op = "biometric recognize"

	if c.recogniseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.recogniseTimeout)
		defer cancel()
	}

	token := c.Token()
	filename := fmt.Sprintf("face-%d-%s.jpg", c.now().UnixMilli(), cashierID(token))

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("could not create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("could not write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("could not close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolveURL(recogniseEndpoint), &body)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set(tokenHeader, token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	respBody, err := c.send(op, recogniseEndpoint, req)
	if err != nil {
		return nil, err
	}

	var result Recognition
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &apperr.Error{Kind: apperr.KindBackend, Op: op, Status: http.StatusOK, Err: err}
	}
	if result.Profile.ID == "" {
		return nil, apperr.Recognition(op, "", ErrNoProfile)
	}
	return &result, nil
}

// cashierID reads the entity or shop id from the operator token's claims.
// The token is issued by the backend; the client only reads it, so the
// signature is not verified here.
func cashierID(token string) string {
	if token == "" {
		return constants.DefaultCashierID
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return constants.DefaultCashierID
	}
	for _, key := range []string{"entity_id", "shop_id"} {
		if id := claimString(claims[key]); id != "" {
			return id
		}
	}
	return constants.DefaultCashierID
}

func claimString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}
