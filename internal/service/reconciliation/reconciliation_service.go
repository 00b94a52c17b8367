package reconciliation

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"shg-finance/internal/pkg/apperrors"
	"shg-finance/internal/pkg/config"
	"shg-finance/internal/pkg/gcs"
	"shg-finance/internal/pkg/lock"
	"shg-finance/internal/pkg/log_messages"
	"shg-finance/internal/pkg/logger"
	"shg-finance/internal/pkg/models"
	"shg-finance/internal/pkg/worker"
	"shg-finance/internal/service/interfaces"
	"shg-finance/internal/service/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReconciliationService recomputes every group's balances from its transaction records and marks
// overdue installments. Each group is handled under its ledger lock.
type ReconciliationService struct {
	groups       interfaces.GroupRepositoryInterface
	loans        interfaces.LoanRepositoryInterface
	transactions interfaces.TransactionRepositoryInterface
	locker       interfaces.LockerInterface
	reports      gcs.GcsInterface
	cfg          config.ReconciliationConfig
	now          func() time.Time
	newRunID     func() string
}

// NewReconciliationService wires the reconciler. reports may be nil when no bucket is configured.
func NewReconciliationService(
	groups interfaces.GroupRepositoryInterface,
	loans interfaces.LoanRepositoryInterface,
	transactions interfaces.TransactionRepositoryInterface,
	locker interfaces.LockerInterface,
	reports gcs.GcsInterface,
	cfg config.ReconciliationConfig,
) *ReconciliationService {
	return &ReconciliationService{
		groups:       groups,
		loans:        loans,
		transactions: transactions,
		locker:       locker,
		reports:      reports,
		cfg:          cfg,
		now:          time.Now,
		newRunID:     uuid.NewString,
	}
}

// Run reconciles every group once. Per-group failures are recorded in the report; the returned error
// covers listing groups and uploading the report.
func (s *ReconciliationService) Run(ctx context.Context) (*models.ReconciliationReport, error) {
	report := &models.ReconciliationReport{
		RunID:      s.newRunID(),
		StartedAt:  s.now().UTC(),
		ApplyFixes: s.cfg.ApplyFixes,
	}
	ctx = logger.WithTraceID(ctx, report.RunID)
	logger.CtxInfo(ctx, log_messages.ReconciliationStarted,
		slog.Bool("apply_fixes", s.cfg.ApplyFixes),
		slog.Bool("mark_overdue", s.cfg.MarkOverdue),
	)

	groupIDs, err := s.groups.ListGroupIDs(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "list groups")
	}

	results := make([]models.GroupReconciliation, len(groupIDs))
	pool := worker.NewWorkerPool(s.cfg.WorkerCount)
	for i, groupID := range groupIDs {
		pool.Submit(func() {
			results[i] = s.reconcileGroup(ctx, groupID, report.StartedAt)
		})
	}
	pool.Wait()
	pool.Stop()

	report.Groups = results
	report.GroupsChecked = len(results)
	for _, r := range results {
		if r.Error != "" {
			report.GroupsFailed++
			continue
		}
		if r.HasDrift() {
			report.GroupsWithDrift++
		}
		report.OverdueLoansMarked += r.OverdueMarked
	}
	report.FinishedAt = s.now().UTC()

	logger.CtxInfo(ctx, log_messages.ReconciliationCompleted,
		slog.Int("groups_checked", report.GroupsChecked),
		slog.Int("groups_with_drift", report.GroupsWithDrift),
		slog.Int("groups_failed", report.GroupsFailed),
		slog.Int64("overdue_loans_marked", report.OverdueLoansMarked),
	)

	if s.reports != nil {
		if _, err := s.reports.UploadReport(ctx, report); err != nil {
			return report, apperrors.Infrastructure(err, "upload reconciliation report")
		}
	}
	return report, nil
}

func (s *ReconciliationService) reconcileGroup(
	ctx context.Context,
	groupID primitive.ObjectID,
	asOf time.Time,
) models.GroupReconciliation {
	result := models.GroupReconciliation{GroupID: groupID.Hex()}

	unlock, err := s.locker.Acquire(ctx, lock.GroupKey(groupID.Hex()))
	if err != nil {
		return s.failed(ctx, result, err)
	}
	defer unlock(ctx)

	if err := s.checkBalances(ctx, groupID, &result); err != nil {
		return s.failed(ctx, result, err)
	}

	if s.cfg.MarkOverdue {
		marked, err := s.loans.MarkOverdueInstallments(ctx, groupID, asOf)
		if err != nil {
			return s.failed(ctx, result, err)
		}
		result.OverdueMarked = marked
		if marked > 0 {
			logger.CtxInfo(ctx, log_messages.OverdueInstallmentsMarked,
				slog.String("group_id", groupID.Hex()),
				slog.Int64("loans", marked),
			)
		}
	}
	return result
}

func (s *ReconciliationService) checkBalances(
	ctx context.Context,
	groupID primitive.ObjectID,
	result *models.GroupReconciliation,
) error {
	group, err := s.groups.GetGroupByID(ctx, groupID)
	if err != nil {
		return err
	}
	totals, err := s.transactions.SumByType(ctx, groupID)
	if err != nil {
		return err
	}
	memberTotals, err := s.transactions.SumSavingsByMember(ctx, groupID)
	if err != nil {
		return err
	}

	expectedCash, expectedSavings := ledger.LedgerTotals(totals)
	result.ExpectedCash = expectedCash
	result.ActualCash = group.CashInHand
	result.CashDrift = group.CashInHand.Sub(expectedCash)
	result.ExpectedSavings = expectedSavings
	result.ActualSavings = group.TotalSavings
	result.SavingsDrift = group.TotalSavings.Sub(expectedSavings)

	expectedMembers := make(map[string]decimal.Decimal, len(memberTotals))
	for _, m := range memberTotals {
		expectedMembers[m.MemberID.Hex()] = m.Total
	}
	result.MemberDrift = memberDrift(expectedMembers, group.MemberSavings)

	if !result.HasDrift() {
		return nil
	}
	logger.CtxWarn(ctx, log_messages.BalanceDriftDetected,
		slog.String("group_id", groupID.Hex()),
		slog.String("cash_drift", result.CashDrift.StringFixed(2)),
		slog.String("savings_drift", result.SavingsDrift.StringFixed(2)),
		slog.Int("members_drifted", len(result.MemberDrift)),
	)
	if !s.cfg.ApplyFixes {
		return nil
	}

	if err := s.groups.SetBalances(ctx, groupID, expectedCash, expectedSavings, expectedMembers); err != nil {
		return err
	}
	result.Fixed = true
	logger.CtxInfo(ctx, log_messages.BalanceDriftFixed, slog.String("group_id", groupID.Hex()))
	return nil
}

// memberDrift lists members whose cached savings differ from the ledger, with the ledger value.
func memberDrift(expected, actual map[string]decimal.Decimal) []models.MemberSavings {
	var drift []models.MemberSavings
	for memberID, want := range expected {
		if !actual[memberID].Equal(want) {
			drift = append(drift, models.MemberSavings{MemberID: memberID, Balance: want})
		}
	}
	for memberID, have := range actual {
		if _, ok := expected[memberID]; !ok && !have.IsZero() {
			drift = append(drift, models.MemberSavings{MemberID: memberID, Balance: decimal.Zero})
		}
	}
	sort.Slice(drift, func(i, j int) bool { return drift[i].MemberID < drift[j].MemberID })
	return drift
}

func (s *ReconciliationService) failed(
	ctx context.Context,
	result models.GroupReconciliation,
	err error,
) models.GroupReconciliation {
	logger.CtxError(ctx, log_messages.ErrorReconcilingGroup, err, slog.String("group_id", result.GroupID))
	result.Error = err.Error()
	return result
}
