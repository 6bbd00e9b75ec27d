package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/kozaktomas/cashier/internal/capture"
	"github.com/kozaktomas/cashier/internal/constants"
	"github.com/kozaktomas/cashier/internal/identity"
	"github.com/kozaktomas/cashier/internal/session"
)

// IdentifyHandler serves the identification step.
type IdentifyHandler struct {
	session *session.Controller
	logger  *slog.Logger
}

// NewIdentifyHandler creates a new identify handler
func NewIdentifyHandler(ctrl *session.Controller, logger *slog.Logger) *IdentifyHandler {
	return &IdentifyHandler{session: ctrl, logger: logger}
}

type searchRequest struct {
	Username string `json:"username"`
}

// Search looks up a customer by username.
func (h *IdentifyHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := h.session.Search(r.Context(), req.Username); err != nil {
		respondFailure(w, err, identity.MsgUserNotFound)
		return
	}
	respondJSON(w, http.StatusOK, h.session.Snapshot())
}

// Recognise forwards a face image uploaded by the front end to recognition.
func (h *IdentifyHandler) Recognise(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	if len(data) == 0 {
		respondError(w, http.StatusBadRequest, "file is empty")
		return
	}

	match, err := h.session.RecogniseImage(r.Context(), data)
	if err != nil {
		h.logger.Warn("recognition upload failed", "error", err)
		respondFailure(w, err, capture.MsgRecognitionFailed)
		return
	}
	respondJSON(w, http.StatusOK, match)
}

// StartCapture opens the camera and starts the capture loop.
func (h *IdentifyHandler) StartCapture(w http.ResponseWriter, r *http.Request) {
	id, err := h.session.StartCapture(r.Context())
	if err != nil {
		respondFailure(w, err, capture.MsgCameraUnavailable)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"activation": id})
}

// StopCapture stops the capture loop and releases the camera.
func (h *IdentifyHandler) StopCapture(w http.ResponseWriter, r *http.Request) {
	if err := h.session.StopCapture(); err != nil {
		respondFailure(w, err, "could not stop capture")
		return
	}
	respondJSON(w, http.StatusOK, h.session.Snapshot())
}

// Events streams capture loop events.
func (h *IdentifyHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamCaptureEvents(w, r, h.session)
}

// Correction marks the biometric match as wrong.
func (h *IdentifyHandler) Correction(w http.ResponseWriter, r *http.Request) {
	if err := h.session.RequestCorrection(); err != nil {
		respondFailure(w, err, "correction refused")
		return
	}
	respondJSON(w, http.StatusOK, h.session.Snapshot())
}

type reconcileRequest struct {
	Type string `json:"type"`
}

// Reconcile merges or corrects the biometric match against the searched profile.
// Unknown types are reported through the identity state like the other
// reconciliation errors.
func (h *IdentifyHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	typ, _ := identity.ParseReconcileType(req.Type)
	if err := h.session.Reconcile(r.Context(), typ); err != nil {
		respondFailure(w, err, identity.MsgMergeFailed)
		return
	}
	respondJSON(w, http.StatusOK, h.session.Snapshot())
}

// Reset clears every identity candidate.
func (h *IdentifyHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.session.ResetIdentity(); err != nil {
		respondFailure(w, err, "reset failed")
		return
	}
	respondJSON(w, http.StatusOK, h.session.Snapshot())
}

// Continue confirms the best identity and moves to checkout.
func (h *IdentifyHandler) Continue(w http.ResponseWriter, r *http.Request) {
	if _, err := h.session.ContinueToCheckout(); err != nil {
		respondFailure(w, err, identity.MsgNoIdentity)
		return
	}
	respondJSON(w, http.StatusOK, h.session.Snapshot())
}
