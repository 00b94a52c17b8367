package ledger

import (
	"context"
	"log/slog"
	"sort"

	"shg-finance/internal/pkg/apperrors"
	"shg-finance/internal/pkg/consts"
	"shg-finance/internal/pkg/logger"
	"shg-finance/internal/pkg/models"
	storemodels "shg-finance/internal/pkg/store/models"
	"shg-finance/internal/pkg/validation"
	"shg-finance/internal/service/access"
	"shg-finance/internal/service/interfaces"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TransactionService exposes the group ledger to API callers: manual entries, savings and balances.
type TransactionService struct {
	ledger       interfaces.LedgerInterface
	transactions interfaces.TransactionRepositoryInterface
	access       interfaces.AccessCheckerInterface
}

var _ interfaces.TransactionServiceInterface = (*TransactionService)(nil)

func NewTransactionService(
	ledger interfaces.LedgerInterface,
	transactions interfaces.TransactionRepositoryInterface,
	access interfaces.AccessCheckerInterface,
) *TransactionService {
	return &TransactionService{ledger: ledger, transactions: transactions, access: access}
}

// CreateTransaction records INCOME, EXPENSE or SAVINGS for any active member.
func (s *TransactionService) CreateTransaction(
	ctx context.Context,
	cmd *models.CreateTransactionCommand,
) (*storemodels.Transactions, error) {
	if cmd.Type == storemodels.TransactionLoanDisbursal || cmd.Type == storemodels.TransactionLoanRepayment {
		return nil, apperrors.Validation("%s transactions are created by the loan workflow", cmd.Type)
	}
	if err := validation.Struct(cmd); err != nil {
		return nil, err
	}
	group, err := s.access.RequireMember(ctx, cmd.Actor, cmd.GroupID)
	if err != nil {
		return nil, err
	}
	if cmd.MemberID != nil && !access.IsActiveMember(group, *cmd.MemberID) {
		return nil, apperrors.Validation("member %s is not an active member of this group", cmd.MemberID.Hex())
	}

	entry := models.LedgerEntry{
		GroupID:    cmd.GroupID,
		Type:       cmd.Type,
		Amount:     cmd.Amount,
		Category:   cmd.Category,
		Notes:      cmd.Notes,
		MemberID:   cmd.MemberID,
		RecordedBy: cmd.Actor.UserID,
	}
	if cmd.Date != nil {
		entry.Date = *cmd.Date
	}
	return s.ledger.Record(ctx, entry)
}

// AddSavings credits a member's savings. Officers only.
func (s *TransactionService) AddSavings(ctx context.Context, cmd *models.AddSavingsCommand) (*storemodels.Transactions, error) {
	if err := validation.Struct(cmd); err != nil {
		return nil, err
	}
	group, err := s.access.RequireRole(ctx, cmd.Actor, cmd.GroupID, access.OfficerRoles...)
	if err != nil {
		return nil, err
	}
	if !access.IsActiveMember(group, cmd.MemberID) {
		return nil, apperrors.Validation("member %s is not an active member of this group", cmd.MemberID.Hex())
	}

	memberID := cmd.MemberID
	entry := models.LedgerEntry{
		GroupID:    cmd.GroupID,
		Type:       storemodels.TransactionSavings,
		Amount:     cmd.Amount,
		Category:   consts.CategorySavings,
		Notes:      cmd.Notes,
		MemberID:   &memberID,
		RecordedBy: cmd.Actor.UserID,
	}
	if cmd.Date != nil {
		entry.Date = *cmd.Date
	}
	return s.ledger.Record(ctx, entry)
}

// ListTransactions returns the group's ledger newest first, optionally narrowed to one type. With a
// limit set, a full page carries the cursor for the next one.
func (s *TransactionService) ListTransactions(
	ctx context.Context,
	principal models.Principal,
	groupID primitive.ObjectID,
	query models.TransactionQuery,
) (*models.TransactionPage, error) {
	if err := validation.Struct(&query); err != nil {
		return nil, err
	}
	filter := storemodels.TransactionFilter{GroupID: groupID}
	if query.Type != "" {
		t := storemodels.TransactionType(query.Type)
		if !t.Valid() {
			return nil, apperrors.Validation("unknown transaction type %q", query.Type)
		}
		filter.Types = []storemodels.TransactionType{t}
	}
	if query.Before != "" {
		cursor, err := storemodels.ParseTransactionCursor(query.Before)
		if err != nil {
			return nil, apperrors.Validation("invalid before cursor: %v", err)
		}
		filter.Cursor = cursor
	}
	if query.Limit > 0 {
		// one extra row tells whether another page follows
		filter.Limit = query.Limit + 1
	}
	if _, err := s.access.RequireMember(ctx, principal, groupID); err != nil {
		return nil, err
	}

	txns, err := s.transactions.ListTransactions(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := &models.TransactionPage{Transactions: txns}
	if query.Limit > 0 && int64(len(txns)) > query.Limit {
		page.Transactions = txns[:query.Limit]
		page.NextCursor = storemodels.CursorFor(page.Transactions[query.Limit-1]).String()
	}
	return page, nil
}

func (s *TransactionService) GetSavings(
	ctx context.Context,
	principal models.Principal,
	groupID primitive.ObjectID,
) (*models.SavingsSummary, error) {
	group, err := s.access.RequireMember(ctx, principal, groupID)
	if err != nil {
		return nil, err
	}

	members := make([]models.MemberSavings, 0, len(group.MemberSavings))
	for memberID, balance := range group.MemberSavings {
		members = append(members, models.MemberSavings{MemberID: memberID, Balance: balance})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].MemberID < members[j].MemberID })

	return &models.SavingsSummary{
		GroupID:      groupID.Hex(),
		TotalSavings: group.TotalSavings,
		Members:      members,
	}, nil
}

func (s *TransactionService) GetBalances(
	ctx context.Context,
	principal models.Principal,
	groupID primitive.ObjectID,
) (*models.GroupBalances, error) {
	group, err := s.access.RequireMember(ctx, principal, groupID)
	if err != nil {
		return nil, err
	}
	logger.CtxDebug(ctx, "Group balances read", slog.String("group_id", groupID.Hex()))
	return &models.GroupBalances{
		GroupID:      groupID.Hex(),
		CashInHand:   group.CashInHand,
		TotalSavings: group.TotalSavings,
		UpdatedAt:    group.UpdatedAt,
	}, nil
}

// LedgerTotals folds per-type sums into the cash and savings the ledger implies.
func LedgerTotals(totals []storemodels.TypeTotal) (cash decimal.Decimal, savings decimal.Decimal) {
	for _, t := range totals {
		cash = cash.Add(t.Type.SignedAmount(t.Total))
		if t.Type == storemodels.TransactionSavings {
			savings = savings.Add(t.Total)
		}
	}
	return cash, savings
}
