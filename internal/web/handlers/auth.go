package handlers

import (
	"log/slog"
	"net/http"

	"github.com/kozaktomas/cashier/internal/apperr"
	"github.com/kozaktomas/cashier/internal/backend"
	"github.com/kozaktomas/cashier/internal/session"
)

// AuthHandler handles operator login and logout.
type AuthHandler struct {
	session *session.Controller
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(ctrl *session.Controller, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{session: ctrl, logger: logger}
}

type loginRequest struct {
	Shop     string `json:"shop"`
	Account  string `json:"account"`
	Password string `json:"password"` //nolint:gosec // request payload, never logged
}

// LoginResponse represents a login response
type LoginResponse struct {
	Success bool   `json:"success"`
	Step    string `json:"step,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Login authenticates the operator against the backend. A rejected login
// answers with the backend's own message.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Shop == "" || req.Account == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "shop, account and password are required")
		return
	}

	err := h.session.Login(r.Context(), backend.Credentials{
		Shop:     req.Shop,
		Account:  req.Account,
		Password: req.Password,
	})
	if err != nil {
		status := http.StatusUnauthorized
		if apperr.Is(err, apperr.KindTransport) {
			status = http.StatusBadGateway
		}
		h.logger.Info("login rejected", "shop", sanitizeForLog(req.Shop), "account", sanitizeForLog(req.Account))
		respondJSON(w, status, LoginResponse{
			Success: false,
			Error:   apperr.Message(err, session.MsgLoginFailed),
		})
		return
	}

	respondJSON(w, http.StatusOK, LoginResponse{
		Success: true,
		Step:    h.session.Snapshot().Step.String(),
	})
}

// Logout forgets the operator token and all customer state.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		h.logger.Warn("logout incomplete", "error", err)
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// StatusResponse represents the auth status response
type StatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	Error         string `json:"error,omitempty"`
}

// Status reports whether an operator is logged in, with the last login error.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	s := h.session.Snapshot()
	respondJSON(w, http.StatusOK, StatusResponse{
		Authenticated: s.LoggedIn,
		Error:         s.LoginError,
	})
}
