package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fengq/loanbook/internal/domain"
)

// ReportUseCase serves the aggregated views: lifetime summaries, daily
// range sums, surplus and the raw income/expense detail.
type ReportUseCase struct {
	snapshots SnapshotRepository
	records   RecordRepository
	cache     Cache
}

// NewReportUseCase creates a new ReportUseCase.
func NewReportUseCase(snapshots SnapshotRepository, records RecordRepository, cache Cache) *ReportUseCase {
	return &ReportUseCase{snapshots: snapshots, records: records, cache: cache}
}

// Summary returns the aggregate view for one scope. With a zero range it
// is the lifetime snapshot (company-wide when groupID is empty); with a
// range it sums the daily rows in [from, to].
func (uc *ReportUseCase) Summary(ctx context.Context, groupID string, from, to time.Time) (*domain.Snapshot, error) {
	if !from.IsZero() || !to.IsZero() {
		return uc.snapshots.RangeSum(ctx, domain.DateOf(from), domain.DateOf(to), groupID)
	}

	if cached := uc.cachedSnapshot(ctx, groupID); cached != nil {
		return cached, nil
	}

	var (
		snap *domain.Snapshot
		err  error
	)
	if groupID == "" {
		snap, err = uc.snapshots.Global(ctx)
	} else {
		snap, err = uc.snapshots.Grouped(ctx, groupID)
	}
	if err != nil {
		return nil, err
	}

	uc.storeSnapshot(ctx, groupID, snap)

	return snap, nil
}

// Surplus returns the group's profitability figure. It is a grouped
// concept only: the company-wide report deliberately has no surplus line.
func (uc *ReportUseCase) Surplus(ctx context.Context, groupID string, from, to time.Time) (decimal.Decimal, error) {
	if err := domain.ValidateGroupID(groupID); err != nil {
		return decimal.Zero, err
	}

	snap, err := uc.Summary(ctx, groupID, from, to)
	if err != nil {
		return decimal.Zero, err
	}

	return snap.Surplus(), nil
}

// Daily returns one day's aggregate row for a scope.
func (uc *ReportUseCase) Daily(ctx context.Context, date time.Time, groupID string) (*domain.Snapshot, error) {
	return uc.snapshots.Daily(ctx, domain.DateOf(date), groupID)
}

// IncomeDetail returns raw income records matching the filter.
func (uc *ReportUseCase) IncomeDetail(ctx context.Context, filter IncomeFilter) ([]*domain.IncomeRecord, error) {
	filter.Limit, filter.Offset = domain.ValidatePagination(filter.Limit, filter.Offset)
	return uc.records.ListIncome(ctx, filter)
}

// Expenses returns raw expense records, optionally narrowed by kind and
// date range.
func (uc *ReportUseCase) Expenses(ctx context.Context, kind domain.ExpenseKind, from, to time.Time) ([]*domain.ExpenseRecord, error) {
	return uc.records.ListExpenses(ctx, kind, from, to)
}

// Groups lists every group that has aggregate data.
func (uc *ReportUseCase) Groups(ctx context.Context) ([]string, error) {
	return uc.snapshots.GroupIDs(ctx)
}

func (uc *ReportUseCase) cachedSnapshot(ctx context.Context, groupID string) *domain.Snapshot {
	if uc.cache == nil {
		return nil
	}

	data, err := uc.cache.Get(ctx, reportCacheKey(groupID))
	if err != nil || data == nil {
		return nil
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil
	}

	return &snap
}

func (uc *ReportUseCase) storeSnapshot(ctx context.Context, groupID string, snap *domain.Snapshot) {
	if uc.cache == nil {
		return
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return
	}

	_ = uc.cache.Set(ctx, reportCacheKey(groupID), data, ReportCacheTTL)
}
