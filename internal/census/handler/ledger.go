// Package handler exposes the census ledger facade over HTTP.
package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/govcensus/ledger/internal/census/service"
	"github.com/govcensus/ledger/internal/ledger"
	"go.uber.org/zap"
)

// LedgerHandler wires the ledger facade into Gin routes.
type LedgerHandler struct {
	svc    *service.Service
	logger *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(svc *service.Service, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{svc: svc, logger: logger}
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	r := rg.Group("/records")
	{
		r.POST("", h.Anchor)
		r.GET("", h.Query)
		r.GET("/:id", h.GetRecord)
		r.GET("/:id/audit", h.AuditTrail)
		r.POST("/:id/review", h.Review)
		r.POST("/:id/verify", h.Verify)
		r.POST("/:id/access", h.LogAccess)
	}
	rg.GET("/ledger/status", h.Status)
}

// anchorRequest is the payload for POST /records.
type anchorRequest struct {
	Record  map[string]any `json:"record" binding:"required"`
	ActorID string         `json:"actor_id" binding:"required"`
}

// reviewRequest is the payload for POST /records/:id/review.
type reviewRequest struct {
	ReviewerID    string         `json:"reviewer_id" binding:"required"`
	Decision      string         `json:"decision" binding:"required"`
	UpdatedRecord map[string]any `json:"updated_record,omitempty"`
}

// verifyRequest is the payload for POST /records/:id/verify.
type verifyRequest struct {
	AccessorID string         `json:"accessor_id" binding:"required"`
	Record     map[string]any `json:"record" binding:"required"`
}

// accessRequest is the payload for POST /records/:id/access.
type accessRequest struct {
	AccessorID string `json:"accessor_id" binding:"required"`
	Reason     string `json:"reason" binding:"required"`
}

// Anchor handles POST /records — computes the record's content hash and
// anchors it on the ledger.
func (h *LedgerHandler) Anchor(c *gin.Context) {
	var req anchorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.svc.Anchor(c.Request.Context(), req.Record, req.ActorID)
	if err != nil {
		h.writeError(c, "anchor", err)
		return
	}
	RecordLedgerOp("anchor")
	c.JSON(http.StatusCreated, res)
}

// Review handles POST /records/:id/review.
func (h *LedgerHandler) Review(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.svc.Review(c.Request.Context(), c.Param("id"), req.ReviewerID, req.Decision, req.UpdatedRecord)
	if err != nil {
		h.writeError(c, "review", err)
		return
	}
	RecordLedgerOp("review")
	c.JSON(http.StatusOK, res)
}

// Verify handles POST /records/:id/verify — re-derives the hash of the
// supplied record snapshot and checks it against the ledger. A failed
// check is a 200 with verified=false, not an error status.
func (h *LedgerHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.svc.Verify(c.Request.Context(), c.Param("id"), req.Record, req.AccessorID)
	if err != nil {
		h.writeError(c, "verify", err)
		return
	}
	RecordIntegrityCheck(res.Verified)
	c.JSON(http.StatusOK, res)
}

// LogAccess handles POST /records/:id/access. Succeeds even for record
// IDs the ledger has never seen.
func (h *LedgerHandler) LogAccess(c *gin.Context) {
	var req accessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.svc.LogAccess(c.Request.Context(), c.Param("id"), req.AccessorID, req.Reason)
	if err != nil {
		h.writeError(c, "log access", err)
		return
	}
	RecordLedgerOp("access")
	c.JSON(http.StatusOK, res)
}

// GetRecord handles GET /records/:id.
func (h *LedgerHandler) GetRecord(c *gin.Context) {
	rec, err := h.svc.GetRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "get record", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// AuditTrail handles GET /records/:id/audit.
func (h *LedgerHandler) AuditTrail(c *gin.Context) {
	recordID := c.Param("id")
	entries, err := h.svc.AuditTrail(c.Request.Context(), recordID)
	if err != nil {
		h.writeError(c, "audit trail", err)
		return
	}
	if entries == nil {
		entries = []ledger.AuditEntry{}
	}
	c.JSON(http.StatusOK, gin.H{
		"record_id": recordID,
		"entries":   entries,
	})
}

// Query handles GET /records?status=... or ?flag=...
func (h *LedgerHandler) Query(c *gin.Context) {
	status := strings.ToUpper(c.Query("status"))
	flag := strings.ToUpper(c.Query("flag"))

	var (
		records []ledger.Record
		err     error
	)
	switch {
	case status != "":
		records, err = h.svc.QueryByStatus(c.Request.Context(), ledger.Status(status))
	case flag != "":
		records, err = h.svc.QueryByFlag(c.Request.Context(), ledger.FlagStatus(flag))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status or flag query parameter is required"})
		return
	}
	if err != nil {
		h.writeError(c, "query records", err)
		return
	}
	if records == nil {
		records = []ledger.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

// Status handles GET /ledger/status.
func (h *LedgerHandler) Status(c *gin.Context) {
	info, err := h.svc.Status(c.Request.Context())
	if err != nil {
		h.writeError(c, "ledger status", err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// writeError maps domain errors to HTTP statuses.
func (h *LedgerHandler) writeError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, ledger.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error(op, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal ledger error"})
	}
}
