package reconciliation

import (
	"context"
	"errors"
	"testing"
	"time"

	"shg-finance/internal/pkg/config"
	"shg-finance/internal/pkg/lock"
	"shg-finance/internal/pkg/models"
	storemodels "shg-finance/internal/pkg/store/models"
	"shg-finance/internal/service/fakes"
	"shg-finance/internal/service/interfaces"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var fixedNow = time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC)

type MockReportUploader struct {
	mock.Mock
}

func (m *MockReportUploader) UploadReport(ctx context.Context, report *models.ReconciliationReport) (string, error) {
	args := m.Called(ctx, report)
	return args.String(0), args.Error(1)
}

func (m *MockReportUploader) Close(ctx context.Context) {
	m.Called(ctx)
}

// failingSums breaks the ledger aggregation for one group.
type failingSums struct {
	*fakes.TransactionStore
	groupID primitive.ObjectID
}

func (f failingSums) SumByType(ctx context.Context, groupID primitive.ObjectID) ([]storemodels.TypeTotal, error) {
	if groupID == f.groupID {
		return nil, errors.New("aggregate timed out")
	}
	return f.TransactionStore.SumByType(ctx, groupID)
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type reconFixture struct {
	groups  *fakes.GroupStore
	loans   *fakes.LoanStore
	txns    *fakes.TransactionStore
	locker  *fakes.Locker
	healthy primitive.ObjectID
	drifted primitive.ObjectID
	saver   primitive.ObjectID
	other   primitive.ObjectID
	loanID  primitive.ObjectID
}

func newReconFixture(t *testing.T) *reconFixture {
	t.Helper()
	ctx := context.Background()
	f := &reconFixture{
		loans:   fakes.NewLoanStore(),
		txns:    fakes.NewTransactionStore(),
		locker:  fakes.NewLocker(),
		healthy: primitive.NewObjectID(),
		drifted: primitive.NewObjectID(),
		saver:   primitive.NewObjectID(),
		other:   primitive.NewObjectID(),
	}

	record := func(groupID primitive.ObjectID, txnType storemodels.TransactionType, amount string, member *primitive.ObjectID) {
		require.NoError(t, f.txns.CreateTransaction(ctx, &storemodels.Transactions{
			GroupID: groupID, Type: txnType, Amount: d(amount), MemberID: member, Date: fixedNow,
		}))
	}
	record(f.healthy, storemodels.TransactionIncome, "1000", nil)
	record(f.healthy, storemodels.TransactionExpense, "200", nil)
	record(f.healthy, storemodels.TransactionSavings, "300", &f.saver)
	record(f.healthy, storemodels.TransactionLoanDisbursal, "500", nil)
	record(f.healthy, storemodels.TransactionLoanRepayment, "100", nil)
	record(f.drifted, storemodels.TransactionSavings, "250", &f.saver)

	f.groups = fakes.NewGroupStore(
		&storemodels.Groups{
			ID:            f.healthy,
			CashInHand:    d("700"),
			TotalSavings:  d("300"),
			MemberSavings: map[string]decimal.Decimal{f.saver.Hex(): d("300")},
		},
		&storemodels.Groups{
			ID:           f.drifted,
			CashInHand:   d("400"),
			TotalSavings: d("250"),
			MemberSavings: map[string]decimal.Decimal{
				f.saver.Hex(): d("200"),
				f.other.Hex(): d("50"),
			},
		},
	)

	disbursedAt := fixedNow.AddDate(0, -3, 0)
	loan := &storemodels.Loans{
		GroupID:         f.healthy,
		DisbursedAmount: d("500"),
		DisbursalDate:   &disbursedAt,
		Status:          storemodels.LoanStatusDisbursed,
		Repayments: []storemodels.Installment{
			{Number: 1, DueDate: fixedNow.AddDate(0, -2, 0), Amount: d("100"), Status: storemodels.InstallmentPending},
			{Number: 2, DueDate: fixedNow.AddDate(0, 1, 0), Amount: d("400"), Status: storemodels.InstallmentPending},
		},
	}
	require.NoError(t, f.loans.CreateLoan(ctx, loan))
	f.loanID = loan.ID
	return f
}

func (f *reconFixture) service(
	txns interfaces.TransactionRepositoryInterface,
	reports *MockReportUploader,
	cfg config.ReconciliationConfig,
) *ReconciliationService {
	svc := NewReconciliationService(f.groups, f.loans, txns, f.locker, nil, cfg)
	if reports != nil {
		svc.reports = reports
	}
	svc.now = func() time.Time { return fixedNow }
	svc.newRunID = func() string { return "run-1" }
	return svc
}

func (f *reconFixture) result(t *testing.T, report *models.ReconciliationReport, groupID primitive.ObjectID) models.GroupReconciliation {
	t.Helper()
	for _, g := range report.Groups {
		if g.GroupID == groupID.Hex() {
			return g
		}
	}
	t.Fatalf("group %s missing from report", groupID.Hex())
	return models.GroupReconciliation{}
}

func TestRunReportsDriftWithoutFixing(t *testing.T) {
	f := newReconFixture(t)
	svc := f.service(f.txns, nil, config.ReconciliationConfig{WorkerCount: 2})

	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 2, report.GroupsChecked)
	assert.Equal(t, 1, report.GroupsWithDrift)
	assert.Equal(t, 0, report.GroupsFailed)
	assert.Equal(t, int64(0), report.OverdueLoansMarked)

	healthy := f.result(t, report, f.healthy)
	assert.False(t, healthy.HasDrift())
	assert.True(t, d("700").Equal(healthy.ExpectedCash))
	assert.True(t, d("300").Equal(healthy.ExpectedSavings))

	drifted := f.result(t, report, f.drifted)
	assert.True(t, drifted.HasDrift())
	assert.False(t, drifted.Fixed)
	assert.True(t, d("250").Equal(drifted.ExpectedCash))
	assert.True(t, d("150").Equal(drifted.CashDrift))
	assert.True(t, drifted.SavingsDrift.IsZero())
	require.Len(t, drifted.MemberDrift, 2)

	group, err := f.groups.GetGroupByID(context.Background(), f.drifted)
	require.NoError(t, err)
	assert.True(t, d("400").Equal(group.CashInHand))
}

func TestRunAppliesFixes(t *testing.T) {
	f := newReconFixture(t)
	svc := f.service(f.txns, nil, config.ReconciliationConfig{WorkerCount: 1, ApplyFixes: true})

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, f.result(t, report, f.drifted).Fixed)
	assert.False(t, f.result(t, report, f.healthy).Fixed)

	group, err := f.groups.GetGroupByID(context.Background(), f.drifted)
	require.NoError(t, err)
	assert.True(t, d("250").Equal(group.CashInHand))
	assert.True(t, d("250").Equal(group.TotalSavings))
	assert.True(t, d("250").Equal(group.MemberSavings[f.saver.Hex()]))
	assert.NotContains(t, group.MemberSavings, f.other.Hex())

	again, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, again.GroupsWithDrift)
}

func TestRunMarksOverdueInstallments(t *testing.T) {
	f := newReconFixture(t)
	svc := f.service(f.txns, nil, config.ReconciliationConfig{WorkerCount: 2, MarkOverdue: true})

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.OverdueLoansMarked)
	assert.Equal(t, int64(1), f.result(t, report, f.healthy).OverdueMarked)

	loan, err := f.loans.GetLoanByID(context.Background(), f.loanID)
	require.NoError(t, err)
	assert.Equal(t, storemodels.InstallmentOverdue, loan.Repayments[0].Status)
	assert.Equal(t, storemodels.InstallmentPending, loan.Repayments[1].Status)

	assert.Contains(t, f.locker.Taken(), lock.GroupKey(f.healthy.Hex()))
	assert.False(t, f.locker.Held(lock.GroupKey(f.healthy.Hex())))
}

func TestRunRecordsGroupFailure(t *testing.T) {
	f := newReconFixture(t)
	svc := f.service(failingSums{TransactionStore: f.txns, groupID: f.drifted}, nil,
		config.ReconciliationConfig{WorkerCount: 2, ApplyFixes: true})

	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.GroupsFailed)
	assert.Equal(t, 0, report.GroupsWithDrift)
	assert.Contains(t, f.result(t, report, f.drifted).Error, "aggregate timed out")

	group, err := f.groups.GetGroupByID(context.Background(), f.drifted)
	require.NoError(t, err)
	assert.True(t, d("400").Equal(group.CashInHand))
}

func TestRunUploadsReport(t *testing.T) {
	f := newReconFixture(t)
	uploader := new(MockReportUploader)
	uploader.On("UploadReport", mock.Anything, mock.MatchedBy(func(r *models.ReconciliationReport) bool {
		return r.RunID == "run-1" && r.GroupsChecked == 2
	})).Return("reconciliation/1748743200_run-1.json", nil).Once()

	svc := f.service(f.txns, uploader, config.ReconciliationConfig{WorkerCount: 2})
	_, err := svc.Run(context.Background())

	require.NoError(t, err)
	uploader.AssertExpectations(t)
}

func TestRunUploadFailureStillReturnsReport(t *testing.T) {
	f := newReconFixture(t)
	uploader := new(MockReportUploader)
	uploader.On("UploadReport", mock.Anything, mock.Anything).Return("", errors.New("bucket not found")).Once()

	svc := f.service(f.txns, uploader, config.ReconciliationConfig{WorkerCount: 2})
	report, err := svc.Run(context.Background())

	require.Error(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 2, report.GroupsChecked)
}

func TestMemberDrift(t *testing.T) {
	a, b, c := "a", "b", "c"
	drift := memberDrift(
		map[string]decimal.Decimal{a: d("10"), b: d("5")},
		map[string]decimal.Decimal{a: d("10"), b: d("4"), c: d("0")},
	)
	require.Len(t, drift, 1)
	assert.Equal(t, b, drift[0].MemberID)
	assert.True(t, d("5").Equal(drift[0].Balance))

	assert.Empty(t, memberDrift(map[string]decimal.Decimal{}, nil))
}
