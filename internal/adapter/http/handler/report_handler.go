package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fengq/loanbook/internal/adapter/http/dto"
	"github.com/fengq/loanbook/internal/domain"
	"github.com/fengq/loanbook/internal/usecase"
)

// ReportService defines the reporting behavior needed by ReportHandler.
type ReportService interface {
	Summary(ctx context.Context, groupID string, from, to time.Time) (*domain.Snapshot, error)
	Surplus(ctx context.Context, groupID string, from, to time.Time) (decimal.Decimal, error)
	Daily(ctx context.Context, date time.Time, groupID string) (*domain.Snapshot, error)
	IncomeDetail(ctx context.Context, filter usecase.IncomeFilter) ([]*domain.IncomeRecord, error)
	Expenses(ctx context.Context, kind domain.ExpenseKind, from, to time.Time) ([]*domain.ExpenseRecord, error)
	Groups(ctx context.Context) ([]string, error)
}

// ReportHandler handles report HTTP requests.
type ReportHandler struct {
	reportUC ReportService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportUC ReportService) *ReportHandler {
	return &ReportHandler{reportUC: reportUC}
}

// Summary serves the lifetime or date-range aggregate view. Empty
// group_id selects the company-wide scope.
func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	groupID := r.URL.Query().Get("group_id")
	from := parseDateQuery(r, "from")
	to := parseDateQuery(r, "to")

	snap, err := h.reportUC.Summary(r.Context(), groupID, from, to)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to build summary", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.SnapshotFromDomain(snap))
}

// Surplus serves a group's profitability figure.
func (h *ReportHandler) Surplus(w http.ResponseWriter, r *http.Request) {
	groupID := r.URL.Query().Get("group_id")
	from := parseDateQuery(r, "from")
	to := parseDateQuery(r, "to")

	surplus, err := h.reportUC.Surplus(r.Context(), groupID, from, to)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to compute surplus", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.SurplusResponse{GroupID: groupID, Surplus: surplus})
}

// Daily serves a single day's aggregate view.
func (h *ReportHandler) Daily(w http.ResponseWriter, r *http.Request) {
	date := parseDateQuery(r, "date")
	if date.IsZero() {
		writeError(w, http.StatusBadRequest, "missing or invalid date", "expected date=YYYY-MM-DD")
		return
	}

	snap, err := h.reportUC.Daily(r.Context(), date, r.URL.Query().Get("group_id"))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to build daily report", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.SnapshotFromDomain(snap))
}

// Income serves the income log, newest first.
func (h *ReportHandler) Income(w http.ResponseWriter, r *http.Request) {
	filter := usecase.IncomeFilter{
		OrderID: parseInt64Query(r, "order_id"),
		GroupID: r.URL.Query().Get("group_id"),
		From:    parseDateQuery(r, "from"),
		To:      parseDateQuery(r, "to"),
		Limit:   parseIntQuery(r, "limit", 50),
		Offset:  parseIntQuery(r, "offset", 0),
	}
	if k := r.URL.Query().Get("kind"); k != "" {
		filter.Kind = domain.RecordKind(k)
	}

	records, err := h.reportUC.IncomeDetail(r.Context(), filter)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list income", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.IncomeRecordsFromDomain(records))
}

// Expenses serves the expense log, newest first.
func (h *ReportHandler) Expenses(w http.ResponseWriter, r *http.Request) {
	var kind domain.ExpenseKind
	if k := r.URL.Query().Get("kind"); k != "" {
		parsed, err := domain.ParseExpenseKind(k)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid expense kind", err.Error())
			return
		}
		kind = parsed
	}

	records, err := h.reportUC.Expenses(r.Context(), kind, parseDateQuery(r, "from"), parseDateQuery(r, "to"))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list expenses", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ExpenseRecordsFromDomain(records))
}

// Groups lists every group with recorded activity.
func (h *ReportHandler) Groups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.reportUC.Groups(r.Context())
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list groups", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.GroupsResponse{Groups: groups})
}
