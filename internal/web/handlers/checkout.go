package handlers

import (
	"net/http"

	"github.com/kozaktomas/cashier/internal/backend"
	"github.com/kozaktomas/cashier/internal/checkout"
	"github.com/kozaktomas/cashier/internal/session"
)

// CheckoutHandler serves the checkout step.
type CheckoutHandler struct {
	session *session.Controller
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(ctrl *session.Controller) *CheckoutHandler {
	return &CheckoutHandler{session: ctrl}
}

// Summary returns the confirmed customer and fresh item details.
func (h *CheckoutHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.session.CheckoutSummary(r.Context())
	if err != nil {
		respondFailure(w, err, checkout.MsgDetailsFailed)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// SubmitResponse is the outcome of a submitted transaction.
type SubmitResponse struct {
	Message     string              `json:"message"`
	Transaction backend.Transaction `json:"transaction"`
}

// Submit records the transaction.
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	tx, err := h.session.Submit(r.Context())
	if err != nil {
		respondFailure(w, err, checkout.MsgTransactionFailed)
		return
	}
	respondJSON(w, http.StatusOK, SubmitResponse{
		Message:     checkout.MsgTransactionSuccess,
		Transaction: tx,
	})
}
