package loans

import (
	"context"
	"log/slog"
	"time"

	"shg-finance/internal/pkg/amortization"
	"shg-finance/internal/pkg/apperrors"
	"shg-finance/internal/pkg/config"
	"shg-finance/internal/pkg/consts"
	"shg-finance/internal/pkg/lock"
	"shg-finance/internal/pkg/log_messages"
	"shg-finance/internal/pkg/logger"
	"shg-finance/internal/pkg/models"
	storemodels "shg-finance/internal/pkg/store/models"
	"shg-finance/internal/pkg/validation"
	"shg-finance/internal/service/access"
	"shg-finance/internal/service/interfaces"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LoanService drives loans through REQUESTED, APPROVED, DISBURSED and COMPLETED (or REJECTED).
// Mutations hold the loan lock; those that move money also hold the group lock and go through the ledger.
type LoanService struct {
	loans        interfaces.LoanRepositoryInterface
	transactions interfaces.TransactionRepositoryInterface
	access       interfaces.AccessCheckerInterface
	ledger       interfaces.LedgerInterface
	locker       interfaces.LockerInterface
	txRunner     interfaces.TransactionRunnerInterface
	notifier     interfaces.LoanNotifierInterface
	cfg          config.LoansConfig
	now          func() time.Time
}

var _ interfaces.LoanServiceInterface = (*LoanService)(nil)

func NewLoanService(
	loans interfaces.LoanRepositoryInterface,
	transactions interfaces.TransactionRepositoryInterface,
	access interfaces.AccessCheckerInterface,
	ledger interfaces.LedgerInterface,
	locker interfaces.LockerInterface,
	txRunner interfaces.TransactionRunnerInterface,
	notifier interfaces.LoanNotifierInterface,
	cfg config.LoansConfig,
) *LoanService {
	return &LoanService{
		loans:        loans,
		transactions: transactions,
		access:       access,
		ledger:       ledger,
		locker:       locker,
		txRunner:     txRunner,
		notifier:     notifier,
		cfg:          cfg,
		now:          time.Now,
	}
}

func checkMoney(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.Validation("%s must be greater than 0", field)
	}
	if !amount.Equal(amortization.RoundMoney(amount)) {
		return apperrors.Validation("%s must have at most %d decimal places", field, amortization.MinorUnitPlaces)
	}
	return nil
}

// RequestLoan opens a loan for the caller, or for another active member when the caller is an officer.
func (s *LoanService) RequestLoan(ctx context.Context, cmd *models.RequestLoanCommand) (*storemodels.Loans, error) {
	cmd.Normalize()
	if cmd.TenureMonths == 0 {
		cmd.TenureMonths = s.cfg.DefaultTenureMonths
	}
	if err := validation.Struct(cmd); err != nil {
		return nil, err
	}
	if err := checkMoney("requestedAmount", cmd.RequestedAmount); err != nil {
		return nil, err
	}

	group, err := s.access.RequireMember(ctx, cmd.Actor, cmd.GroupID)
	if err != nil {
		return nil, err
	}
	borrowerID := cmd.Actor.UserID
	if cmd.BorrowerID != nil && *cmd.BorrowerID != cmd.Actor.UserID {
		if err := access.Authorize(group, cmd.Actor, access.OfficerRoles...); err != nil {
			return nil, err
		}
		if !access.IsActiveMember(group, *cmd.BorrowerID) {
			return nil, apperrors.Validation("borrower %s is not an active member of this group", cmd.BorrowerID.Hex())
		}
		borrowerID = *cmd.BorrowerID
	}

	now := s.now().UTC()
	loan := &storemodels.Loans{
		GroupID:         cmd.GroupID,
		BorrowerID:      borrowerID,
		RequestedAmount: cmd.RequestedAmount,
		InterestRate:    decimal.NewFromFloat(s.cfg.DefaultInterestRate),
		TenureMonths:    cmd.TenureMonths,
		Purpose:         cmd.Purpose,
		Documents:       cmd.Documents,
		Status:          storemodels.LoanStatusRequested,
		Repayments:      []storemodels.Installment{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.loans.CreateLoan(ctx, loan); err != nil {
		return nil, apperrors.Wrap(err, "create loan")
	}

	logger.CtxInfo(ctx, log_messages.LoanRequested,
		slog.String("loan_id", loan.ID.Hex()),
		slog.String("group_id", loan.GroupID.Hex()),
		slog.String("amount", loan.RequestedAmount.StringFixed(2)),
	)
	s.notify(ctx, loan, consts.LoanEventRequested, cmd.Actor.UserID, loan.RequestedAmount, 0)
	return loan, nil
}

// ApproveLoan fixes the approved amount, rate and tenure and computes the EMI.
func (s *LoanService) ApproveLoan(ctx context.Context, cmd *models.ApproveLoanCommand) (*storemodels.Loans, error) {
	cmd.Normalize()
	if err := validation.Struct(cmd); err != nil {
		return nil, err
	}
	if cmd.ApprovedAmount != nil {
		if err := checkMoney("approvedAmount", *cmd.ApprovedAmount); err != nil {
			return nil, err
		}
	}

	loan, err := s.withLoan(ctx, cmd.LoanID, func(ctx context.Context, loan *storemodels.Loans) error {
		if _, err := s.access.RequireRole(ctx, cmd.Actor, loan.GroupID, access.OfficerRoles...); err != nil {
			return err
		}
		if loan.Status != storemodels.LoanStatusRequested {
			return apperrors.InvalidState("only REQUESTED loans can be approved, loan is %s", loan.Status)
		}

		approved := loan.RequestedAmount
		if cmd.ApprovedAmount != nil {
			approved = *cmd.ApprovedAmount
		}
		if cmd.InterestRate != nil {
			loan.InterestRate = *cmd.InterestRate
		}
		if cmd.TenureMonths != nil {
			loan.TenureMonths = *cmd.TenureMonths
		}
		emi, err := amortization.ComputeEMI(approved, loan.InterestRate, loan.TenureMonths)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		approver := cmd.Actor.UserID
		loan.ApprovedAmount = approved
		loan.EMIAmount = emi
		loan.Status = storemodels.LoanStatusApproved
		loan.ApprovedBy = &approver
		loan.ApprovalDate = &now
		loan.UpdatedAt = now
		return apperrors.Wrap(s.loans.SaveLoan(ctx, loan), "save loan %s", loan.ID.Hex())
	})
	if err != nil {
		return nil, err
	}

	logger.CtxInfo(ctx, log_messages.LoanApproved,
		slog.String("loan_id", loan.ID.Hex()),
		slog.String("approved_amount", loan.ApprovedAmount.StringFixed(2)),
		slog.String("emi", loan.EMIAmount.StringFixed(2)),
	)
	s.notify(ctx, loan, consts.LoanEventApproved, cmd.Actor.UserID, loan.ApprovedAmount, 0)
	return loan, nil
}

func (s *LoanService) RejectLoan(ctx context.Context, cmd *models.RejectLoanCommand) (*storemodels.Loans, error) {
	if err := validation.Struct(cmd); err != nil {
		return nil, err
	}

	loan, err := s.withLoan(ctx, cmd.LoanID, func(ctx context.Context, loan *storemodels.Loans) error {
		if _, err := s.access.RequireRole(ctx, cmd.Actor, loan.GroupID, access.OfficerRoles...); err != nil {
			return err
		}
		if loan.Status != storemodels.LoanStatusRequested {
			return apperrors.InvalidState("only REQUESTED loans can be rejected, loan is %s", loan.Status)
		}

		now := s.now().UTC()
		rejecter := cmd.Actor.UserID
		loan.Status = storemodels.LoanStatusRejected
		loan.RejectedBy = &rejecter
		loan.RejectionDate = &now
		loan.RejectionReason = cmd.Reason
		loan.UpdatedAt = now
		return apperrors.Wrap(s.loans.SaveLoan(ctx, loan), "save loan %s", loan.ID.Hex())
	})
	if err != nil {
		return nil, err
	}

	logger.CtxInfo(ctx, log_messages.LoanRejected, slog.String("loan_id", loan.ID.Hex()))
	s.notify(ctx, loan, consts.LoanEventRejected, cmd.Actor.UserID, loan.RequestedAmount, 0)
	return loan, nil
}

// DisburseLoan pays the loan out of group cash and lays down the repayment schedule.
func (s *LoanService) DisburseLoan(ctx context.Context, cmd *models.DisburseLoanCommand) (*storemodels.Loans, error) {
	if err := validation.Struct(cmd); err != nil {
		return nil, err
	}
	if cmd.DisbursedAmount != nil {
		if err := checkMoney("disbursedAmount", *cmd.DisbursedAmount); err != nil {
			return nil, err
		}
	}

	var txn *storemodels.Transactions
	loan, err := s.withLoan(ctx, cmd.LoanID, func(ctx context.Context, loan *storemodels.Loans) error {
		if _, err := s.access.RequireRole(ctx, cmd.Actor, loan.GroupID, access.OfficerRoles...); err != nil {
			return err
		}
		if loan.Status != storemodels.LoanStatusApproved {
			return apperrors.InvalidState("only APPROVED loans can be disbursed, loan is %s", loan.Status)
		}

		amount := loan.ApprovedAmount
		if cmd.DisbursedAmount != nil {
			amount = *cmd.DisbursedAmount
		}
		emi := loan.EMIAmount
		if !amount.Equal(loan.ApprovedAmount) {
			var err error
			if emi, err = amortization.ComputeEMI(amount, loan.InterestRate, loan.TenureMonths); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		disbursalDate := now
		if cmd.DisbursalDate != nil {
			disbursalDate = cmd.DisbursalDate.UTC()
		}
		schedule, err := amortization.GenerateSchedule(amount, emi, loan.TenureMonths, disbursalDate)
		if err != nil {
			return err
		}

		disburser := cmd.Actor.UserID
		loan.DisbursedAmount = amount
		loan.EMIAmount = emi
		loan.Status = storemodels.LoanStatusDisbursed
		loan.DisbursedBy = &disburser
		loan.DisbursalDate = &disbursalDate
		loan.Repayments = newInstallments(schedule)
		loan.UpdatedAt = now

		loanID := loan.ID
		txn, err = s.commit(ctx, loan, models.LedgerEntry{
			GroupID:    loan.GroupID,
			Type:       storemodels.TransactionLoanDisbursal,
			Amount:     amount,
			Category:   consts.CategoryLoanDisbursal,
			MemberID:   &loan.BorrowerID,
			LoanID:     &loanID,
			Date:       disbursalDate,
			RecordedBy: disburser,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.ledger.Publish(ctx, txn)

	logger.CtxInfo(ctx, log_messages.LoanDisbursed,
		slog.String("loan_id", loan.ID.Hex()),
		slog.String("amount", loan.DisbursedAmount.StringFixed(2)),
		slog.Int("installments", len(loan.Repayments)),
	)
	s.notify(ctx, loan, consts.LoanEventDisbursed, cmd.Actor.UserID, loan.DisbursedAmount, 0)
	return loan, nil
}

func newInstallments(schedule []amortization.ScheduledInstallment) []storemodels.Installment {
	out := make([]storemodels.Installment, 0, len(schedule))
	for _, item := range schedule {
		out = append(out, storemodels.Installment{
			Number:  item.Number,
			DueDate: item.DueDate,
			Amount:  item.Amount,
			Status:  storemodels.InstallmentPending,
		})
	}
	return out
}

// RepayLoan settles one installment, the requested one or else the earliest unpaid. The loan completes
// when its last installment is paid.
func (s *LoanService) RepayLoan(ctx context.Context, cmd *models.RepayLoanCommand) (*storemodels.Loans, error) {
	if err := validation.Struct(cmd); err != nil {
		return nil, err
	}
	if err := checkMoney("amount", cmd.Amount); err != nil {
		return nil, err
	}

	var installment storemodels.Installment
	var txn *storemodels.Transactions
	loan, err := s.withLoan(ctx, cmd.LoanID, func(ctx context.Context, loan *storemodels.Loans) error {
		if _, err := s.access.RequireMember(ctx, cmd.Actor, loan.GroupID); err != nil {
			return err
		}
		if loan.Status != storemodels.LoanStatusDisbursed {
			return apperrors.InvalidState("only DISBURSED loans accept repayments, loan is %s", loan.Status)
		}

		idx, err := pickInstallment(loan, cmd.InstallmentNumber)
		if err != nil {
			return err
		}
		if s.cfg.StrictRepaymentAmount && !cmd.Amount.Equal(loan.Repayments[idx].Amount) {
			return apperrors.Validation("amount %s does not match installment %d amount %s",
				cmd.Amount.StringFixed(2), loan.Repayments[idx].Number, loan.Repayments[idx].Amount.StringFixed(2))
		}

		now := s.now().UTC()
		paidDate := now
		if cmd.PaymentDate != nil {
			paidDate = cmd.PaymentDate.UTC()
		}
		amount := cmd.Amount
		payer := cmd.Actor.UserID
		loan.Repayments[idx].Status = storemodels.InstallmentPaid
		loan.Repayments[idx].PaidDate = &paidDate
		loan.Repayments[idx].PaidAmount = &amount
		loan.Repayments[idx].PaidBy = &payer
		installment = loan.Repayments[idx]
		if loan.AllPaid() {
			loan.Status = storemodels.LoanStatusCompleted
			loan.CompletedAt = &now
		}
		loan.UpdatedAt = now

		loanID := loan.ID
		txn, err = s.commit(ctx, loan, models.LedgerEntry{
			GroupID:    loan.GroupID,
			Type:       storemodels.TransactionLoanRepayment,
			Amount:     amount,
			Category:   consts.CategoryLoanRepayment,
			MemberID:   &loan.BorrowerID,
			LoanID:     &loanID,
			Date:       paidDate,
			RecordedBy: payer,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.ledger.Publish(ctx, txn)

	logger.CtxInfo(ctx, log_messages.LoanRepaymentRecorded,
		slog.String("loan_id", loan.ID.Hex()),
		slog.Int("installment", installment.Number),
		slog.String("amount", cmd.Amount.StringFixed(2)),
	)
	s.notify(ctx, loan, consts.LoanEventRepaid, cmd.Actor.UserID, cmd.Amount, installment.Number)
	if loan.Status == storemodels.LoanStatusCompleted {
		logger.CtxInfo(ctx, log_messages.LoanCompleted, slog.String("loan_id", loan.ID.Hex()))
		s.notify(ctx, loan, consts.LoanEventCompleted, cmd.Actor.UserID, loan.TotalPaid(), 0)
	}
	return loan, nil
}

func pickInstallment(loan *storemodels.Loans, number *int) (int, error) {
	if number != nil {
		idx := loan.InstallmentIndex(*number)
		if idx == -1 {
			return -1, apperrors.NotFound("installment %d not found on loan %s", *number, loan.ID.Hex())
		}
		if loan.Repayments[idx].Status == storemodels.InstallmentPaid {
			return -1, apperrors.AlreadyPaid("installment %d is already paid", *number)
		}
		return idx, nil
	}
	idx := loan.FirstUnpaidIndex()
	if idx == -1 {
		return -1, apperrors.NoPendingInstallment("loan %s has no pending installments", loan.ID.Hex())
	}
	return idx, nil
}

func (s *LoanService) GetLoan(ctx context.Context, principal models.Principal, loanID primitive.ObjectID) (*storemodels.Loans, error) {
	loan, err := s.loans.GetLoanByID(ctx, loanID)
	if err != nil {
		return nil, apperrors.Wrap(err, "load loan %s", loanID.Hex())
	}
	if _, err := s.access.RequireMember(ctx, principal, loan.GroupID); err != nil {
		return nil, err
	}
	return loan, nil
}

// ListLoans returns a group's loans newest first. status and memberID narrow the listing when set.
func (s *LoanService) ListLoans(
	ctx context.Context,
	principal models.Principal,
	groupID primitive.ObjectID,
	status string,
	memberID *primitive.ObjectID,
) ([]storemodels.Loans, error) {
	filter := storemodels.LoanFilter{GroupID: groupID, BorrowerID: memberID}
	if status != "" {
		st := storemodels.LoanStatus(status)
		if !st.Valid() {
			return nil, apperrors.Validation("unknown loan status %q", status)
		}
		filter.Status = &st
	}
	if _, err := s.access.RequireMember(ctx, principal, groupID); err != nil {
		return nil, err
	}
	loans, err := s.loans.ListLoans(ctx, filter)
	if err != nil {
		return nil, apperrors.Wrap(err, "list loans")
	}
	return loans, nil
}

// GetLoanSummary reports per-status totals, the principal still outstanding on disbursed loans and
// everything repaid so far.
func (s *LoanService) GetLoanSummary(
	ctx context.Context,
	principal models.Principal,
	groupID primitive.ObjectID,
) (*models.LoanSummary, error) {
	if _, err := s.access.RequireMember(ctx, principal, groupID); err != nil {
		return nil, err
	}

	byStatus, err := s.loans.SummarizeLoans(ctx, groupID)
	if err != nil {
		return nil, apperrors.Wrap(err, "summarize loans")
	}
	summary := &models.LoanSummary{
		GroupID:              groupID.Hex(),
		ByStatus:             byStatus,
		OutstandingPrincipal: decimal.Zero,
		TotalRepaid:          decimal.Zero,
	}
	for _, row := range byStatus {
		summary.TotalLoans += row.Count
	}

	disbursed := storemodels.LoanStatusDisbursed
	active, err := s.loans.ListLoans(ctx, storemodels.LoanFilter{GroupID: groupID, Status: &disbursed})
	if err != nil {
		return nil, apperrors.Wrap(err, "list disbursed loans")
	}
	for i := range active {
		if remaining := active[i].RemainingBalance(); remaining != nil {
			summary.OutstandingPrincipal = summary.OutstandingPrincipal.Add(*remaining)
		}
	}

	totals, err := s.transactions.SumByType(ctx, groupID)
	if err != nil {
		return nil, apperrors.Wrap(err, "sum transactions")
	}
	for _, t := range totals {
		if t.Type == storemodels.TransactionLoanRepayment {
			summary.TotalRepaid = t.Total
		}
	}
	return summary, nil
}

// withLoan runs fn on a freshly loaded loan while holding its lock.
func (s *LoanService) withLoan(
	ctx context.Context,
	loanID primitive.ObjectID,
	fn func(ctx context.Context, loan *storemodels.Loans) error,
) (*storemodels.Loans, error) {
	unlock, err := s.locker.Acquire(ctx, lock.LoanKey(loanID.Hex()))
	if err != nil {
		return nil, err
	}
	defer unlock(ctx)

	loan, err := s.loans.GetLoanByID(ctx, loanID)
	if err != nil {
		return nil, apperrors.Wrap(err, "load loan %s", loanID.Hex())
	}
	if err := fn(ctx, loan); err != nil {
		return nil, err
	}
	return loan, nil
}

// commit writes the ledger entry and the loan together under the group lock. The loan lock is already held.
// The committed transaction is returned for publishing once both locks are released.
func (s *LoanService) commit(
	ctx context.Context,
	loan *storemodels.Loans,
	entry models.LedgerEntry,
) (*storemodels.Transactions, error) {
	unlock, err := s.ledger.LockGroup(ctx, loan.GroupID)
	if err != nil {
		return nil, err
	}
	defer unlock(ctx)

	// overdue marking runs under the group lock only, so the loaded copy may be stale
	current, err := s.loans.GetLoanByID(ctx, loan.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, "reload loan %s", loan.ID.Hex())
	}
	if current.Version != loan.Version {
		if !adoptOverdueMarks(loan, current) {
			return nil, apperrors.Conflict("loan %s changed while waiting for the group lock, retry", loan.ID.Hex())
		}
		logger.CtxDebug(ctx, log_messages.LoanRebasedOnOverdueMarks,
			slog.String("loan_id", loan.ID.Hex()),
			slog.Int64("version", current.Version),
		)
	}

	version := loan.Version
	var txn *storemodels.Transactions
	err = s.txRunner.RunInTransaction(ctx, func(ctx context.Context) error {
		// a retried transaction starts again from the loaded version
		loan.Version = version
		var applyErr error
		if txn, applyErr = s.ledger.Apply(ctx, entry); applyErr != nil {
			return applyErr
		}
		if saveErr := s.loans.SaveLoan(ctx, loan); saveErr != nil {
			if !s.txRunner.Enabled() {
				logger.CtxError(ctx, log_messages.LedgerWrittenLoanNotSaved, saveErr,
					slog.String("loan_id", loan.ID.Hex()),
					slog.String("transaction_id", txn.ID.Hex()),
				)
			}
			return saveErr
		}
		return nil
	})
	if err != nil {
		loan.Version = version
		return nil, apperrors.Wrap(err, "commit %s for loan %s", entry.Type, loan.ID.Hex())
	}
	return txn, nil
}

// adoptOverdueMarks moves loan onto current's version when the only difference is installments that
// overdue marking flipped from PENDING to OVERDUE. It reports false for any other change.
func adoptOverdueMarks(loan, current *storemodels.Loans) bool {
	if current.Status != storemodels.LoanStatusDisbursed || len(current.Repayments) != len(loan.Repayments) {
		return false
	}
	for i := range current.Repayments {
		stored, mine := current.Repayments[i], loan.Repayments[i]
		if stored.Number != mine.Number || !stored.Amount.Equal(mine.Amount) {
			return false
		}
		switch {
		case stored.Status == mine.Status:
		case mine.Status == storemodels.InstallmentPaid && stored.Unpaid():
			// the installment this call is settling
		case stored.Status == storemodels.InstallmentOverdue && mine.Status == storemodels.InstallmentPending:
		default:
			return false
		}
	}
	for i := range current.Repayments {
		if current.Repayments[i].Status == storemodels.InstallmentOverdue &&
			loan.Repayments[i].Status == storemodels.InstallmentPending {
			loan.Repayments[i].Status = storemodels.InstallmentOverdue
		}
	}
	loan.Version = current.Version
	return true
}

func (s *LoanService) notify(
	ctx context.Context,
	loan *storemodels.Loans,
	event consts.LoanEventType,
	actor primitive.ObjectID,
	amount decimal.Decimal,
	installment int,
) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, models.LoanEvent{
		Event:             event,
		LoanID:            loan.ID.Hex(),
		GroupID:           loan.GroupID.Hex(),
		BorrowerID:        loan.BorrowerID.Hex(),
		ActorID:           actor.Hex(),
		Status:            loan.Status,
		Amount:            amount,
		InstallmentNumber: installment,
		OccurredAt:        s.now().UTC(),
	})
}
