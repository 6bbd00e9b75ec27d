package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/cashier/internal/session"
)

// FlowHandler serves the session snapshot, the catalogue and the step transitions.
type FlowHandler struct {
	session *session.Controller
}

// NewFlowHandler creates a new flow handler
func NewFlowHandler(ctrl *session.Controller) *FlowHandler {
	return &FlowHandler{session: ctrl}
}

// Get returns the current session snapshot.
func (h *FlowHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session.Snapshot())
}

// Inventory lists the shop's items. An empty inventory is not an error.
func (h *FlowHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	items, err := h.session.Inventory(r.Context())
	if err != nil {
		respondFailure(w, err, session.MsgInventoryFailed)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// SetQuantity sets the quantity of {itemId}. Zero or less removes it.
func (h *FlowHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")
	if itemID == "" {
		respondError(w, http.StatusBadRequest, "missing item ID")
		return
	}

	var req quantityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.session.SetQuantity(itemID, req.Quantity); err != nil {
		respondFailure(w, err, "could not update cart")
		return
	}
	respondJSON(w, http.StatusOK, h.session.Snapshot())
}

// Identify moves from the catalogue to identification.
func (h *FlowHandler) Identify(w http.ResponseWriter, r *http.Request) {
	h.transition(w, h.session.ProceedToIdentify)
}

// Catalogue returns from identification to the catalogue.
func (h *FlowHandler) Catalogue(w http.ResponseWriter, r *http.Request) {
	h.transition(w, h.session.BackToCatalogue)
}

// Back returns from checkout to identification.
func (h *FlowHandler) Back(w http.ResponseWriter, r *http.Request) {
	h.transition(w, h.session.BackToIdentify)
}

// NextCustomer clears the cart and identity.
func (h *FlowHandler) NextCustomer(w http.ResponseWriter, r *http.Request) {
	h.transition(w, h.session.NextCustomer)
}

func (h *FlowHandler) transition(w http.ResponseWriter, fn func() error) {
	if err := fn(); err != nil {
		respondFailure(w, err, "step change failed")
		return
	}
	respondJSON(w, http.StatusOK, h.session.Snapshot())
}
