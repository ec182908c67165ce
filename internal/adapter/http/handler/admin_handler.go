package handler

import (
	"context"
	"net/http"

	"github.com/fengq/loanbook/internal/adapter/http/dto"
	"github.com/fengq/loanbook/internal/infrastructure/metrics"
	"github.com/fengq/loanbook/internal/usecase"
)

// AdminService defines the maintenance behavior needed by AdminHandler.
type AdminService interface {
	Rebuild(ctx context.Context) error
	VerifyConsistency(ctx context.Context) (*usecase.ConsistencyReport, error)
}

// AdminHandler handles maintenance HTTP requests.
type AdminHandler struct {
	rebuildUC AdminService
	metrics   *metrics.Metrics
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(rebuildUC AdminService, m *metrics.Metrics) *AdminHandler {
	return &AdminHandler{rebuildUC: rebuildUC, metrics: m}
}

// Rebuild recomputes every snapshot from the logs.
func (h *AdminHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if err := h.rebuildUC.Rebuild(r.Context()); err != nil {
		writeError(w, mapDomainError(err), "rebuild failed", err.Error())
		return
	}

	if h.metrics != nil {
		h.metrics.SnapshotRebuilds.Inc()
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "rebuilt"})
}

// Consistency diffs the stored snapshots against a replay of the logs.
func (h *AdminHandler) Consistency(w http.ResponseWriter, r *http.Request) {
	report, err := h.rebuildUC.VerifyConsistency(r.Context())
	if err != nil {
		writeError(w, mapDomainError(err), "consistency check failed", err.Error())
		return
	}

	if h.metrics != nil {
		outcome := "consistent"
		if !report.Consistent {
			outcome = "drift"
		}
		h.metrics.ConsistencyChecks.WithLabelValues(outcome).Inc()
	}

	writeJSON(w, http.StatusOK, dto.ConsistencyFromReport(report))
}
