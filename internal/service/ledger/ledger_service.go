package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"shg-finance/internal/pkg/amortization"
	"shg-finance/internal/pkg/apperrors"
	"shg-finance/internal/pkg/config"
	"shg-finance/internal/pkg/lock"
	"shg-finance/internal/pkg/log_messages"
	"shg-finance/internal/pkg/logger"
	"shg-finance/internal/pkg/models"
	storemodels "shg-finance/internal/pkg/store/models"
	"shg-finance/internal/service/interfaces"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LedgerService owns every change to a group's cached balances. Each entry moves the balances and
// appends the matching transaction record, in that order.
type LedgerService struct {
	groups            interfaces.GroupRepositoryInterface
	transactions      interfaces.TransactionRepositoryInterface
	locker            interfaces.LockerInterface
	txRunner          interfaces.TransactionRunnerInterface
	stream            interfaces.KafkaPublisherInterface
	allowNegativeCash bool
	now               func() time.Time
}

var _ interfaces.LedgerInterface = (*LedgerService)(nil)

// NewLedgerService wires the ledger. stream may be nil when no ledger topic is configured.
func NewLedgerService(
	groups interfaces.GroupRepositoryInterface,
	transactions interfaces.TransactionRepositoryInterface,
	locker interfaces.LockerInterface,
	txRunner interfaces.TransactionRunnerInterface,
	stream interfaces.KafkaPublisherInterface,
	cfg config.LedgerConfig,
) *LedgerService {
	return &LedgerService{
		groups:            groups,
		transactions:      transactions,
		locker:            locker,
		txRunner:          txRunner,
		stream:            stream,
		allowNegativeCash: cfg.AllowNegativeCash,
		now:               time.Now,
	}
}

func (s *LedgerService) LockGroup(ctx context.Context, groupID primitive.ObjectID) (lock.Unlock, error) {
	return s.locker.Acquire(ctx, lock.GroupKey(groupID.Hex()))
}

// Record is the entry point for ledger events that do not touch a loan. The stream only sees the
// transaction once the group lock is released.
func (s *LedgerService) Record(ctx context.Context, entry models.LedgerEntry) (*storemodels.Transactions, error) {
	txn, err := s.record(ctx, entry)
	if err != nil {
		return nil, err
	}
	s.Publish(ctx, txn)
	return txn, nil
}

func (s *LedgerService) record(ctx context.Context, entry models.LedgerEntry) (*storemodels.Transactions, error) {
	unlock, err := s.LockGroup(ctx, entry.GroupID)
	if err != nil {
		return nil, err
	}
	defer unlock(ctx)

	var txn *storemodels.Transactions
	err = s.txRunner.RunInTransaction(ctx, func(ctx context.Context) error {
		var applyErr error
		txn, applyErr = s.Apply(ctx, entry)
		return applyErr
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "record %s entry", entry.Type)
	}
	return txn, nil
}

// BalanceDelta is the effect an entry has on the group's cached balances.
func BalanceDelta(entry models.LedgerEntry, allowNegativeCash bool) (storemodels.BalanceDelta, error) {
	delta := storemodels.BalanceDelta{}
	switch entry.Type {
	case storemodels.TransactionIncome, storemodels.TransactionLoanRepayment:
		delta.Cash = entry.Amount
	case storemodels.TransactionExpense:
		delta.Cash = entry.Amount.Neg()
		delta.AllowNegativeCash = allowNegativeCash
	case storemodels.TransactionLoanDisbursal:
		// disbursement never overdraws the group
		delta.Cash = entry.Amount.Neg()
	case storemodels.TransactionSavings:
		if entry.MemberID == nil {
			return delta, apperrors.Validation("memberId is required for SAVINGS entries")
		}
		delta.Cash = entry.Amount
		delta.Savings = entry.Amount
		delta.MemberID = entry.MemberID
	default:
		return delta, apperrors.Validation("unknown transaction type %q", entry.Type)
	}
	return delta, nil
}

func validateEntry(entry models.LedgerEntry) error {
	if entry.GroupID.IsZero() {
		return apperrors.Validation("groupId is required")
	}
	if !entry.Amount.IsPositive() {
		return apperrors.Validation("amount must be greater than 0")
	}
	if !entry.Amount.Equal(amortization.RoundMoney(entry.Amount)) {
		return apperrors.Validation("amount must have at most %d decimal places", amortization.MinorUnitPlaces)
	}
	return nil
}

// Apply moves the balances and then appends the transaction record. Callers hold the group lock and,
// when available, a storage transaction. Without one, a failed record insert reverses the balance move.
func (s *LedgerService) Apply(ctx context.Context, entry models.LedgerEntry) (*storemodels.Transactions, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}
	delta, err := BalanceDelta(entry, s.allowNegativeCash)
	if err != nil {
		return nil, err
	}

	if err := s.groups.ApplyBalanceDelta(ctx, entry.GroupID, delta); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	date := entry.Date
	if date.IsZero() {
		date = now
	}
	txn := &storemodels.Transactions{
		GroupID:   entry.GroupID,
		Type:      entry.Type,
		Amount:    entry.Amount,
		Date:      date.UTC(),
		Category:  entry.Category,
		Notes:     entry.Notes,
		MemberID:  entry.MemberID,
		LoanID:    entry.LoanID,
		CreatedBy: entry.RecordedBy,
		CreatedAt: now,
	}
	if err := s.transactions.CreateTransaction(ctx, txn); err != nil {
		if !s.txRunner.Enabled() {
			s.reverse(ctx, entry.GroupID, delta)
		}
		return nil, err
	}

	logger.CtxInfo(ctx, log_messages.LedgerEntryRecorded,
		slog.String("group_id", entry.GroupID.Hex()),
		slog.String("transaction_id", txn.ID.Hex()),
		slog.String("type", string(txn.Type)),
		slog.String("amount", txn.Amount.StringFixed(2)),
	)
	return txn, nil
}

func (s *LedgerService) reverse(ctx context.Context, groupID primitive.ObjectID, delta storemodels.BalanceDelta) {
	undo := storemodels.BalanceDelta{
		Cash:              delta.Cash.Neg(),
		Savings:           delta.Savings.Neg(),
		MemberID:          delta.MemberID,
		AllowNegativeCash: true,
	}
	if err := s.groups.ApplyBalanceDelta(ctx, groupID, undo); err != nil {
		logger.CtxError(ctx, log_messages.LedgerReversalFailed, err,
			slog.String("group_id", groupID.Hex()),
			slog.String("cash_delta", delta.Cash.StringFixed(2)),
		)
	}
}

// Publish streams a committed transaction. Failures are logged and never reach the caller.
func (s *LedgerService) Publish(ctx context.Context, txn *storemodels.Transactions) {
	if s.stream == nil || txn == nil {
		return
	}
	data, err := json.Marshal(models.NewLedgerRecord(txn))
	if err != nil {
		logger.CtxError(ctx, log_messages.ErrorMarshallingJSON, err)
		return
	}
	if err := s.stream.Publish(ctx, txn.GroupID.Hex(), data); err != nil {
		logger.CtxError(ctx, log_messages.ErrorPublishingLedgerRecord, err,
			slog.String("transaction_id", txn.ID.Hex()))
	}
}
