package models

import (
	"time"

	storemodels "shg-finance/internal/pkg/store/models"

	"github.com/shopspring/decimal"
)

// LoanResponse is a loan with its derived balances. Tenure mirrors TenureMonths for older clients.
type LoanResponse struct {
	storemodels.Loans
	Tenure           int              `json:"tenure"`
	TotalPaid        decimal.Decimal  `json:"totalPaid"`
	RemainingBalance *decimal.Decimal `json:"remainingBalance"`
}

func NewLoanResponse(loan *storemodels.Loans) LoanResponse {
	return LoanResponse{
		Loans:            *loan,
		Tenure:           loan.TenureMonths,
		TotalPaid:        loan.TotalPaid(),
		RemainingBalance: loan.RemainingBalance(),
	}
}

func NewLoanResponses(loans []storemodels.Loans) []LoanResponse {
	out := make([]LoanResponse, 0, len(loans))
	for i := range loans {
		out = append(out, NewLoanResponse(&loans[i]))
	}
	return out
}

type LoanSummary struct {
	GroupID              string                        `json:"groupId"`
	TotalLoans           int64                         `json:"totalLoans"`
	ByStatus             []storemodels.LoanStatusTotal `json:"byStatus"`
	OutstandingPrincipal decimal.Decimal               `json:"outstandingPrincipal"`
	TotalRepaid          decimal.Decimal               `json:"totalRepaid"`
}

type MemberSavings struct {
	MemberID string          `json:"memberId"`
	Balance  decimal.Decimal `json:"balance"`
}

type SavingsSummary struct {
	GroupID      string          `json:"groupId"`
	TotalSavings decimal.Decimal `json:"totalSavings"`
	Members      []MemberSavings `json:"members"`
}

type GroupBalances struct {
	GroupID      string          `json:"groupId"`
	CashInHand   decimal.Decimal `json:"cashInHand"`
	TotalSavings decimal.Decimal `json:"totalSavings"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TransactionPage is one page of a ledger listing. NextCursor is empty on the last page.
type TransactionPage struct {
	Transactions []storemodels.Transactions `json:"transactions"`
	NextCursor   string                     `json:"nextCursor,omitempty"`
}
