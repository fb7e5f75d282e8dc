package client_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/govcensus/ledger/internal/census/handler"
	"github.com/govcensus/ledger/internal/census/service"
	"github.com/govcensus/ledger/internal/ledger"
	"github.com/govcensus/ledger/pkg/client"
	"go.uber.org/zap"
)

var ctx = context.Background()

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	backend := ledger.NewMemoryBackend("StateMSP", zap.NewNop())
	svc := service.New(backend, zap.NewNop())
	h := handler.NewLedgerHandler(svc, zap.NewNop())
	h.Register(r.Group("/api/v1"))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func testRecord() map[string]any {
	return map[string]any{
		"record_id":    "CR-1",
		"household_id": "HH-1",
		"name":         "A",
		"income":       1000,
	}
}

func TestClient_anchorReviewVerify(t *testing.T) {
	srv := newTestServer(t)
	c := client.New(srv.URL)

	anchored, err := c.Anchor(ctx, testRecord(), "u1")
	if err != nil {
		t.Fatalf("Anchor: %v", err)
	}
	if anchored.Status != "PENDING_REVIEW" || anchored.DataHash == "" {
		t.Errorf("anchor result: %+v", anchored)
	}

	corrected := testRecord()
	corrected["income"] = 1200
	reviewed, err := c.Review(ctx, "CR-1", "u2", "APPROVED", corrected)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if reviewed.NewStatus != "APPROVED" || reviewed.NewHash == anchored.DataHash {
		t.Errorf("review result: %+v", reviewed)
	}

	verified, err := c.Verify(ctx, "CR-1", corrected, "u3")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !verified.Verified || verified.OnChainHash != reviewed.NewHash {
		t.Errorf("verify result: %+v", verified)
	}

	rec, err := c.GetRecord(ctx, "CR-1")
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if rec.Version != 2 || rec.PreviousHash != anchored.DataHash {
		t.Errorf("record: %+v", rec)
	}
}

func TestClient_duplicateAnchorIsAPIError(t *testing.T) {
	srv := newTestServer(t)
	c := client.New(srv.URL)

	if _, err := c.Anchor(ctx, testRecord(), "u1"); err != nil {
		t.Fatal(err)
	}
	_, err := c.Anchor(ctx, testRecord(), "u1")

	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != 409 {
		t.Errorf("status: got %d, want 409", apiErr.StatusCode)
	}
}

func TestClient_auditTrailAndStatus(t *testing.T) {
	srv := newTestServer(t)
	c := client.New(srv.URL)

	if _, err := c.Anchor(ctx, testRecord(), "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.LogAccess(ctx, "CR-1", "clerk", "routine lookup"); err != nil {
		t.Fatal(err)
	}

	trail, err := c.AuditTrail(ctx, "CR-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(trail) != 2 || trail[0].ActionType != "INITIALIZE" || trail[1].ActionType != "ACCESS" {
		t.Errorf("trail: %+v", trail)
	}

	status, err := c.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if status.Mode != "memory" || status.Records != 1 || status.Logs != 2 {
		t.Errorf("status: %+v", status)
	}

	pending, err := c.QueryByStatus(ctx, "PENDING_REVIEW")
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Errorf("pending: %+v", pending)
	}
}
