package interfaces

import (
	"context"

	"shg-finance/internal/pkg/lock"
	"shg-finance/internal/pkg/models"
	storemodels "shg-finance/internal/pkg/store/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AccessCheckerInterface resolves the caller's standing in a group before any loan or ledger operation.
type AccessCheckerInterface interface {
	RequireMember(ctx context.Context, principal models.Principal, groupID primitive.ObjectID) (*storemodels.Groups, error)
	RequireRole(
		ctx context.Context,
		principal models.Principal,
		groupID primitive.ObjectID,
		roles ...storemodels.MemberRole,
	) (*storemodels.Groups, error)
}

// LedgerInterface is the single path through which group balances change.
type LedgerInterface interface {
	// Record locks the group, applies the entry and publishes it once committed.
	Record(ctx context.Context, entry models.LedgerEntry) (*storemodels.Transactions, error)
	// Apply writes balance then record. Callers must hold the group lock.
	Apply(ctx context.Context, entry models.LedgerEntry) (*storemodels.Transactions, error)
	LockGroup(ctx context.Context, groupID primitive.ObjectID) (lock.Unlock, error)
	Publish(ctx context.Context, txn *storemodels.Transactions)
}

type LoanNotifierInterface interface {
	Notify(ctx context.Context, event models.LoanEvent)
}

// LoanServiceInterface is the loan workflow as the HTTP layer sees it.
type LoanServiceInterface interface {
	RequestLoan(ctx context.Context, cmd *models.RequestLoanCommand) (*storemodels.Loans, error)
	ApproveLoan(ctx context.Context, cmd *models.ApproveLoanCommand) (*storemodels.Loans, error)
	RejectLoan(ctx context.Context, cmd *models.RejectLoanCommand) (*storemodels.Loans, error)
	DisburseLoan(ctx context.Context, cmd *models.DisburseLoanCommand) (*storemodels.Loans, error)
	RepayLoan(ctx context.Context, cmd *models.RepayLoanCommand) (*storemodels.Loans, error)
	GetLoan(ctx context.Context, principal models.Principal, loanID primitive.ObjectID) (*storemodels.Loans, error)
	ListLoans(
		ctx context.Context,
		principal models.Principal,
		groupID primitive.ObjectID,
		status string,
		memberID *primitive.ObjectID,
	) ([]storemodels.Loans, error)
	GetLoanSummary(ctx context.Context, principal models.Principal, groupID primitive.ObjectID) (*models.LoanSummary, error)
}

type TransactionServiceInterface interface {
	CreateTransaction(ctx context.Context, cmd *models.CreateTransactionCommand) (*storemodels.Transactions, error)
	AddSavings(ctx context.Context, cmd *models.AddSavingsCommand) (*storemodels.Transactions, error)
	ListTransactions(
		ctx context.Context,
		principal models.Principal,
		groupID primitive.ObjectID,
		query models.TransactionQuery,
	) (*models.TransactionPage, error)
	GetSavings(ctx context.Context, principal models.Principal, groupID primitive.ObjectID) (*models.SavingsSummary, error)
	GetBalances(ctx context.Context, principal models.Principal, groupID primitive.ObjectID) (*models.GroupBalances, error)
}
