package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/kozaktomas/cashier/internal/capture"
	"github.com/kozaktomas/cashier/internal/session"
)

// isCaptureTerminal returns true if the event ends an activation
func isCaptureTerminal(eventType string) bool {
	return eventType == capture.EventCaptured || eventType == capture.EventClosed || eventType == capture.EventError
}

// setupSSEConnection sets up SSE headers. On failure it writes an error
// response and returns false.
func setupSSEConnection(w http.ResponseWriter) (http.Flusher, bool) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}
	return flusher, true
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}

// streamCaptureEvents streams capture loop events until the client
// disconnects. With ?activation=<id> the stream also ends when that
// activation finishes.
func streamCaptureEvents(w http.ResponseWriter, r *http.Request, ctrl *session.Controller) {
	activation := r.URL.Query().Get("activation")

	flusher, ok := setupSSEConnection(w)
	if !ok {
		return
	}

	events := ctrl.Events()
	eventCh := events.AddListener()
	defer events.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", ctrl.Snapshot())

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			if activation != "" && event.Activation != activation {
				continue
			}
			sendSSEEvent(w, flusher, event.Type, event)
			if activation != "" && isCaptureTerminal(event.Type) {
				return
			}
		}
	}
}
