package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/govcensus/ledger/internal/census/handler"
	"github.com/govcensus/ledger/internal/census/service"
	"github.com/govcensus/ledger/internal/ledger"
	"go.uber.org/zap"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	backend := ledger.NewMemoryBackend("StateMSP", zap.NewNop())
	svc := service.New(backend, zap.NewNop())
	h := handler.NewLedgerHandler(svc, zap.NewNop())
	v1 := r.Group("/api/v1")
	h.Register(v1)
	return r
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func anchorBody(recordID string) map[string]any {
	return map[string]any{
		"record": map[string]any{
			"record_id":    recordID,
			"household_id": "HH-5",
			"name":         "A",
			"income":       1000,
			"flag_status":  "NORMAL",
		},
		"actor_id": "u1",
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestAnchor_201(t *testing.T) {
	router := setupRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/records", anchorBody("CR-1"))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	resp := decode(t, w)
	if resp["status"] != "PENDING_REVIEW" {
		t.Errorf("status: %v", resp["status"])
	}
	if resp["tx_id"] == "" || resp["data_hash"] == "" {
		t.Errorf("response: %v", resp)
	}
}

func TestAnchor_409_duplicate(t *testing.T) {
	router := setupRouter(t)

	doJSON(t, router, http.MethodPost, "/api/v1/records", anchorBody("CR-1"))
	w := doJSON(t, router, http.MethodPost, "/api/v1/records", anchorBody("CR-1"))
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestAnchor_400_missingActor(t *testing.T) {
	router := setupRouter(t)

	body := anchorBody("CR-1")
	delete(body, "actor_id")
	w := doJSON(t, router, http.MethodPost, "/api/v1/records", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestReview_200(t *testing.T) {
	router := setupRouter(t)
	doJSON(t, router, http.MethodPost, "/api/v1/records", anchorBody("CR-1"))

	w := doJSON(t, router, http.MethodPost, "/api/v1/records/CR-1/review", map[string]any{
		"reviewer_id": "u2",
		"decision":    "approved",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["new_status"] != "APPROVED" {
		t.Errorf("new_status: %v", resp["new_status"])
	}
}

func TestReview_400_pendingReviewDecision(t *testing.T) {
	router := setupRouter(t)
	doJSON(t, router, http.MethodPost, "/api/v1/records", anchorBody("CR-1"))

	w := doJSON(t, router, http.MethodPost, "/api/v1/records/CR-1/review", map[string]any{
		"reviewer_id": "u2",
		"decision":    "PENDING_REVIEW",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestReview_404(t *testing.T) {
	router := setupRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/records/CR-x/review", map[string]any{
		"reviewer_id": "u2",
		"decision":    "APPROVED",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestVerify_200_trueAndFalse(t *testing.T) {
	router := setupRouter(t)
	doJSON(t, router, http.MethodPost, "/api/v1/records", anchorBody("CR-1"))

	w := doJSON(t, router, http.MethodPost, "/api/v1/records/CR-1/verify", map[string]any{
		"accessor_id": "u3",
		"record":      anchorBody("CR-1")["record"],
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decode(t, w); resp["verified"] != true {
		t.Errorf("expected verified=true: %v", resp)
	}

	tampered := anchorBody("CR-1")["record"].(map[string]any)
	tampered["income"] = 9999
	w = doJSON(t, router, http.MethodPost, "/api/v1/records/CR-1/verify", map[string]any{
		"accessor_id": "u3",
		"record":      tampered,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("tampered verify should still be 200, got %d", w.Code)
	}
	if resp := decode(t, w); resp["verified"] != false {
		t.Errorf("expected verified=false: %v", resp)
	}
}

func TestVerify_missingRecord_200(t *testing.T) {
	router := setupRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/records/CR-ghost/verify", map[string]any{
		"accessor_id": "u3",
		"record":      map[string]any{"record_id": "CR-ghost"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode(t, w)
	if resp["verified"] != false || resp["error"] == "" {
		t.Errorf("response: %v", resp)
	}
}

func TestLogAccess_200_onMissingRecord(t *testing.T) {
	router := setupRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/records/CR-ghost/access", map[string]any{
		"accessor_id": "clerk",
		"reason":      "scheme eligibility lookup",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["logged"] != true || resp["tx_id"] == "" {
		t.Errorf("response: %v", resp)
	}
}

func TestGetRecord(t *testing.T) {
	router := setupRouter(t)
	doJSON(t, router, http.MethodPost, "/api/v1/records", anchorBody("CR-1"))

	w := doJSON(t, router, http.MethodGet, "/api/v1/records/CR-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode(t, w)
	if resp["version"] != float64(1) || resp["current_status"] != "PENDING_REVIEW" {
		t.Errorf("record: %v", resp)
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/records/CR-ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAuditTrail(t *testing.T) {
	router := setupRouter(t)
	doJSON(t, router, http.MethodPost, "/api/v1/records", anchorBody("CR-1"))
	doJSON(t, router, http.MethodPost, "/api/v1/records/CR-1/review", map[string]any{
		"reviewer_id": "u2", "decision": "APPROVED",
	})

	w := doJSON(t, router, http.MethodGet, "/api/v1/records/CR-1/audit", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode(t, w)
	entries := resp["entries"].([]any)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	first := entries[0].(map[string]any)
	if first["action_type"] != "INITIALIZE" {
		t.Errorf("first entry: %v", first)
	}

	// Unknown record: empty trail, not an error.
	w = doJSON(t, router, http.MethodGet, "/api/v1/records/CR-ghost/audit", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp := decode(t, w); len(resp["entries"].([]any)) != 0 {
		t.Errorf("expected empty trail: %v", resp)
	}
}

func TestQuery(t *testing.T) {
	router := setupRouter(t)
	doJSON(t, router, http.MethodPost, "/api/v1/records", anchorBody("CR-1"))
	doJSON(t, router, http.MethodPost, "/api/v1/records", anchorBody("CR-2"))

	w := doJSON(t, router, http.MethodGet, "/api/v1/records?status=pending_review", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decode(t, w); resp["count"] != float64(2) {
		t.Errorf("count: %v", resp["count"])
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/records?flag=NORMAL", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/records", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing query param should be 400, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/records?status=BOGUS", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown status should be 400, got %d", w.Code)
	}
}

func TestStatus(t *testing.T) {
	router := setupRouter(t)
	doJSON(t, router, http.MethodPost, "/api/v1/records", anchorBody("CR-1"))

	w := doJSON(t, router, http.MethodGet, "/api/v1/ledger/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode(t, w)
	if resp["mode"] != "memory" {
		t.Errorf("mode: %v", resp["mode"])
	}
	if resp["records_count"] != float64(1) || resp["logs_count"] != float64(1) {
		t.Errorf("counts: %v", resp)
	}
}
