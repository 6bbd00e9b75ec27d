package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kozaktomas/cashier/internal/apperr"
)

// tokenHeader carries the operator credential on every authenticated call.
const tokenHeader = "token"

// doJSON performs a request with an optional JSON body and unmarshals a 200
// response into T. Any other status becomes an apperr backend error carrying
// the response's "detail" field; a request that gets no response becomes a
// transport error.
func doJSON[T any](ctx context.Context, c *Client, op, method, endpoint string, requestBody any, authenticated bool) (*T, error) {
	var bodyReader io.Reader
	if requestBody != nil {
		jsonBody, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("could not marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolveURL(endpoint), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		req.Header.Set(tokenHeader, c.Token())
	}

	body, err := c.send(op, endpoint, req)
	if err != nil {
		return nil, err
	}

	var result T
	if _, isAck := any(&result).(*ack); isAck || len(bytes.TrimSpace(body)) == 0 {
		return &result, nil
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &apperr.Error{Kind: apperr.KindBackend, Op: op, Status: http.StatusOK, Err: fmt.Errorf("could not unmarshal response: %w", err)}
	}
	return &result, nil
}

// send executes req and returns the body of a 200 response.
func (c *Client) send(op, endpoint string, req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req) //nolint:gosec // URL constructed from validated parsedURL via resolveURL
	if err != nil {
		return nil, apperr.Transport(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Transport(op, fmt.Errorf("could not read response body: %w", err))
	}

	c.captureResponse(endpoint, body)

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Backend(op, resp.StatusCode, readDetail(body))
	}
	return body, nil
}

// readDetail extracts a string "detail" field from an error body.
// Returns empty string when the body has none (we're already in an error path).
func readDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err != nil {
		return ""
	}
	return detail
}
