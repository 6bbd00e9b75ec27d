package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/cashier/internal/identity"
	"github.com/kozaktomas/cashier/internal/logging"
	"github.com/kozaktomas/cashier/internal/session"
)

func frameUpload(t *testing.T, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if data != nil {
		part, err := writer.CreateFormFile("file", "frame.jpg")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write(data)
	}
	writer.Close()

	req := httptest.NewRequest("POST", "/api/v1/identify/recognise", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestIdentifyHandler_Search(t *testing.T) {
	server := setupMockCashierServer(t, nil, nil)
	handler := NewIdentifyHandler(loggedInSession(t, server, session.StepIdentify), logging.Discard())

	tests := []struct {
		name     string
		body     string
		status   int
		expected string
	}{
		{"found", `{"username": "userx"}`, http.StatusOK, ""},
		{"not found shows backend detail", `{"username": "nobody"}`, http.StatusBadGateway, "User not found"},
		{"empty", `{"username": "  "}`, http.StatusBadRequest, identity.MsgEmptyUsername},
		{"invalid json", `nope`, http.StatusBadRequest, errInvalidRequestBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/identify/search", bytes.NewBufferString(tt.body))
			recorder := httptest.NewRecorder()

			handler.Search(recorder, req)

			assertStatusCode(t, recorder, tt.status)
			if tt.expected != "" {
				assertJSONError(t, recorder, tt.expected)
			}
		})
	}
}

func TestIdentifyHandler_RecogniseMergeContinue(t *testing.T) {
	rec := &recorded{}
	server := setupMockCashierServer(t, rec, map[string]http.HandlerFunc{
		"/cashier/merge_users": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`"merged"`))
		},
	})
	ctrl := loggedInSession(t, server, session.StepIdentify)
	handler := NewIdentifyHandler(ctrl, logging.Discard())

	recorder := httptest.NewRecorder()
	handler.Recognise(recorder, frameUpload(t, []byte("jpeg-bytes")))
	assertStatusCode(t, recorder, http.StatusOK)

	var match identity.BiometricMatch
	parseJSONResponse(t, recorder, &match)
	if !match.IsNew || match.Profile.ID != "n1" {
		t.Fatalf("expected new face n1, got %+v", match)
	}

	// A new face cannot be continued directly.
	recorder = httptest.NewRecorder()
	handler.Continue(recorder, httptest.NewRequest("POST", "/api/v1/flow/checkout", nil))
	assertStatusCode(t, recorder, http.StatusBadRequest)

	recorder = httptest.NewRecorder()
	handler.Search(recorder, httptest.NewRequest("POST", "/api/v1/identify/search", bytes.NewBufferString(`{"username":"userx"}`)))
	assertStatusCode(t, recorder, http.StatusOK)

	var state session.State
	parseJSONResponse(t, recorder, &state)
	if state.Identity.SearchLabel != identity.LabelFindUserToMerge {
		t.Errorf("expected merge label, got %q", state.Identity.SearchLabel)
	}

	recorder = httptest.NewRecorder()
	handler.Reconcile(recorder, httptest.NewRequest("POST", "/api/v1/identify/reconcile", bytes.NewBufferString(`{"type":"merge"}`)))
	assertStatusCode(t, recorder, http.StatusOK)

	state = session.State{}
	parseJSONResponse(t, recorder, &state)
	if state.Identity.Status != identity.MsgMerged {
		t.Errorf("expected merge status, got %q", state.Identity.Status)
	}
	merges := rec.get("/cashier/merge_users")
	if len(merges) != 1 || merges[0] != `{"old_uid":"n1","new_uid":"userX"}` {
		t.Errorf("unexpected merge request %v", merges)
	}

	recorder = httptest.NewRecorder()
	handler.Continue(recorder, httptest.NewRequest("POST", "/api/v1/flow/checkout", nil))
	assertStatusCode(t, recorder, http.StatusOK)
	state = session.State{}
	parseJSONResponse(t, recorder, &state)
	if state.Step != session.StepCheckout || state.Identity.Confirmed == nil || state.Identity.Confirmed.ID != "userX" {
		t.Errorf("expected userX confirmed at checkout, got %+v", state)
	}
}

func TestIdentifyHandler_Reconcile_UnknownType(t *testing.T) {
	server := setupMockCashierServer(t, nil, nil)
	handler := NewIdentifyHandler(loggedInSession(t, server, session.StepIdentify), logging.Discard())

	recorder := httptest.NewRecorder()
	handler.Reconcile(recorder, httptest.NewRequest("POST", "/api/v1/identify/reconcile", bytes.NewBufferString(`{"type":"swap"}`)))

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, identity.MsgUnknownReconcile)
}

func TestIdentifyHandler_Recognise_BadUploads(t *testing.T) {
	server := setupMockCashierServer(t, nil, nil)
	handler := NewIdentifyHandler(loggedInSession(t, server, session.StepIdentify), logging.Discard())

	t.Run("not multipart", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		handler.Recognise(recorder, httptest.NewRequest("POST", "/api/v1/identify/recognise", bytes.NewBufferString("x")))
		assertStatusCode(t, recorder, http.StatusBadRequest)
		assertJSONError(t, recorder, "failed to parse multipart form")
	})

	t.Run("no file", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		handler.Recognise(recorder, frameUpload(t, nil))
		assertStatusCode(t, recorder, http.StatusBadRequest)
		assertJSONError(t, recorder, "file is required")
	})

	t.Run("empty file", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		handler.Recognise(recorder, frameUpload(t, []byte{}))
		assertStatusCode(t, recorder, http.StatusBadRequest)
		assertJSONError(t, recorder, "file is empty")
	})
}

func TestIdentifyHandler_Recognise_BackendFailure(t *testing.T) {
	server := setupMockCashierServer(t, nil, map[string]http.HandlerFunc{
		"/recognise/": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
	})
	handler := NewIdentifyHandler(loggedInSession(t, server, session.StepIdentify), logging.Discard())

	recorder := httptest.NewRecorder()
	handler.Recognise(recorder, frameUpload(t, []byte("jpeg")))

	assertStatusCode(t, recorder, http.StatusBadGateway)
	assertJSONError(t, recorder, "Face recognition failed.")
}

func TestIdentifyHandler_Recognise_NoProfile(t *testing.T) {
	server := setupMockCashierServer(t, nil, map[string]http.HandlerFunc{
		"/recognise/": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"user":null}`))
		},
	})
	ctrl := loggedInSession(t, server, session.StepIdentify)
	handler := NewIdentifyHandler(ctrl, logging.Discard())

	recorder := httptest.NewRecorder()
	handler.Recognise(recorder, frameUpload(t, []byte("jpeg")))

	assertStatusCode(t, recorder, http.StatusServiceUnavailable)
	assertJSONError(t, recorder, "Face recognition failed.")
	if ctrl.Snapshot().Identity.Biometric != nil {
		t.Error("expected no biometric match")
	}
}

func TestIdentifyHandler_CaptureDisabled(t *testing.T) {
	server := setupMockCashierServer(t, nil, nil)
	handler := NewIdentifyHandler(loggedInSession(t, server, session.StepIdentify), logging.Discard())

	recorder := httptest.NewRecorder()
	handler.StartCapture(recorder, httptest.NewRequest("POST", "/api/v1/identify/capture", nil))

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, session.MsgCaptureDisabled)

	recorder = httptest.NewRecorder()
	handler.StopCapture(recorder, httptest.NewRequest("DELETE", "/api/v1/identify/capture", nil))
	assertStatusCode(t, recorder, http.StatusOK)
}

func TestIdentifyHandler_CorrectionWithoutMatch(t *testing.T) {
	server := setupMockCashierServer(t, nil, nil)
	handler := NewIdentifyHandler(loggedInSession(t, server, session.StepIdentify), logging.Discard())

	recorder := httptest.NewRecorder()
	handler.Correction(recorder, httptest.NewRequest("POST", "/api/v1/identify/correction", nil))

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, identity.MsgNothingToCorrect)
}

func TestIdentifyHandler_Reset(t *testing.T) {
	server := setupMockCashierServer(t, nil, nil)
	ctrl := loggedInSession(t, server, session.StepIdentify)
	handler := NewIdentifyHandler(ctrl, logging.Discard())
	handler.Search(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/v1/identify/search", bytes.NewBufferString(`{"username":"userx"}`)))

	recorder := httptest.NewRecorder()
	handler.Reset(recorder, httptest.NewRequest("POST", "/api/v1/identify/reset", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	if ctrl.Snapshot().Identity.Manual != nil {
		t.Error("expected identity cleared")
	}
}
