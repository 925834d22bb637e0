package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Drix10/hypothesis-arena-sub001/internal/model"
	"github.com/gin-gonic/gin"
)

// CycleRunner is the decision pipeline entry point.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*model.DecisionRecord, error)
}

// DecisionLister serves the audit trail.
type DecisionLister interface {
	List(ctx context.Context, symbol string, limit int) ([]model.DecisionRecord, error)
}

type DecisionHandler struct {
	runner CycleRunner
	lister DecisionLister
}

func NewDecisionHandler(runner CycleRunner, lister DecisionLister) *DecisionHandler {
	return &DecisionHandler{runner: runner, lister: lister}
}

// RunCycle triggers one decision cycle synchronously. Cycle failures are
// still a 200 with an error-outcome record; only a missing record is an
// HTTP error.
func (h *DecisionHandler) RunCycle(c *gin.Context) {
	rec, err := h.runner.RunCycle(c.Request.Context())
	if rec == nil && err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *DecisionHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	recs, err := h.lister.List(c.Request.Context(), c.Query("symbol"), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": recs, "count": len(recs)})
}
