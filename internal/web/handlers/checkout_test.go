package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/cashier/internal/checkout"
	"github.com/kozaktomas/cashier/internal/session"
)

func TestCheckoutHandler_SummaryAndSubmit(t *testing.T) {
	rec := &recorded{}
	server := setupMockCashierServer(t, rec, nil)
	handler := NewCheckoutHandler(loggedInSession(t, server, session.StepCheckout))

	recorder := httptest.NewRecorder()
	handler.Summary(recorder, httptest.NewRequest("GET", "/api/v1/checkout/summary", nil))
	assertStatusCode(t, recorder, http.StatusOK)

	var summary checkout.Summary
	parseJSONResponse(t, recorder, &summary)
	if summary.Customer.ID != "userX" || summary.Total != 3000 || len(summary.Lines) != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if got := rec.get("/cashier/get_items_details"); len(got) != 1 || got[0] != `{"item_id_list":["itemA"]}` {
		t.Errorf("unexpected details request %v", got)
	}

	recorder = httptest.NewRecorder()
	handler.Submit(recorder, httptest.NewRequest("POST", "/api/v1/checkout/submit", nil))
	assertStatusCode(t, recorder, http.StatusOK)

	var response SubmitResponse
	parseJSONResponse(t, recorder, &response)
	if response.Message != checkout.MsgTransactionSuccess {
		t.Errorf("expected success message, got %q", response.Message)
	}
	expected := `{"user_id":"userX","item_id_quantity":[["itemA",2]]}`
	if got := rec.get("/cashier/record_transaction"); len(got) != 1 || got[0] != expected {
		t.Errorf("expected transaction %s, got %v", expected, got)
	}

	// A committed transaction is not sent twice.
	recorder = httptest.NewRecorder()
	handler.Submit(recorder, httptest.NewRequest("POST", "/api/v1/checkout/submit", nil))
	assertStatusCode(t, recorder, http.StatusConflict)
	assertJSONError(t, recorder, session.MsgAlreadyCommitted)
	if got := rec.get("/cashier/record_transaction"); len(got) != 1 {
		t.Errorf("expected one transaction, got %d", len(got))
	}
}

func TestCheckoutHandler_Failures(t *testing.T) {
	server := setupMockCashierServer(t, nil, map[string]http.HandlerFunc{
		"/cashier/get_items_details": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"/cashier/record_transaction": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"detail":"Insufficient stock"}`))
		},
	})
	handler := NewCheckoutHandler(loggedInSession(t, server, session.StepCheckout))

	recorder := httptest.NewRecorder()
	handler.Summary(recorder, httptest.NewRequest("GET", "/api/v1/checkout/summary", nil))
	assertStatusCode(t, recorder, http.StatusBadGateway)
	assertJSONError(t, recorder, checkout.MsgDetailsFailed)

	recorder = httptest.NewRecorder()
	handler.Submit(recorder, httptest.NewRequest("POST", "/api/v1/checkout/submit", nil))
	assertStatusCode(t, recorder, http.StatusBadGateway)
	assertJSONError(t, recorder, "Insufficient stock")
}

func TestCheckoutHandler_WrongStep(t *testing.T) {
	server := setupMockCashierServer(t, nil, nil)
	handler := NewCheckoutHandler(loggedInSession(t, server, session.StepIdentify))

	recorder := httptest.NewRecorder()
	handler.Submit(recorder, httptest.NewRequest("POST", "/api/v1/checkout/submit", nil))

	assertStatusCode(t, recorder, http.StatusConflict)
	assertJSONError(t, recorder, "Not available in the identify step.")
}
