package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type GroupReconciliation struct {
	GroupID         string          `json:"groupId"`
	ExpectedCash    decimal.Decimal `json:"expectedCash"`
	ActualCash      decimal.Decimal `json:"actualCash"`
	CashDrift       decimal.Decimal `json:"cashDrift"`
	ExpectedSavings decimal.Decimal `json:"expectedSavings"`
	ActualSavings   decimal.Decimal `json:"actualSavings"`
	SavingsDrift    decimal.Decimal `json:"savingsDrift"`
	MemberDrift     []MemberSavings `json:"memberDrift,omitempty"`
	OverdueMarked   int64           `json:"overdueLoansMarked"`
	Fixed           bool            `json:"fixed"`
	Error           string          `json:"error,omitempty"`
}

// HasDrift reports whether cached balances disagree with the ledger.
func (g GroupReconciliation) HasDrift() bool {
	return !g.CashDrift.IsZero() || !g.SavingsDrift.IsZero() || len(g.MemberDrift) > 0
}

type ReconciliationReport struct {
	RunID              string                `json:"runId"`
	StartedAt          time.Time             `json:"startedAt"`
	FinishedAt         time.Time             `json:"finishedAt"`
	ApplyFixes         bool                  `json:"applyFixes"`
	GroupsChecked      int                   `json:"groupsChecked"`
	GroupsWithDrift    int                   `json:"groupsWithDrift"`
	GroupsFailed       int                   `json:"groupsFailed"`
	OverdueLoansMarked int64                 `json:"overdueLoansMarked"`
	Groups             []GroupReconciliation `json:"groups"`
}
