package models

import (
	"time"

	"shg-finance/internal/pkg/consts"
	storemodels "shg-finance/internal/pkg/store/models"

	"github.com/shopspring/decimal"
)

// LoanEvent is published to the notification topic on every loan transition.
type LoanEvent struct {
	Event             consts.LoanEventType   `json:"event"`
	LoanID            string                 `json:"loanId"`
	GroupID           string                 `json:"groupId"`
	BorrowerID        string                 `json:"borrowerId"`
	ActorID           string                 `json:"actorId"`
	Status            storemodels.LoanStatus `json:"status"`
	Amount            decimal.Decimal        `json:"amount"`
	InstallmentNumber int                    `json:"installmentNumber,omitempty"`
	OccurredAt        time.Time              `json:"occurredAt"`
	TraceID           string                 `json:"traceId,omitempty"`
}

// LedgerRecord is the ledger stream message for one committed transaction.
type LedgerRecord struct {
	TransactionID string                      `json:"transactionId"`
	GroupID       string                      `json:"groupId"`
	Type          storemodels.TransactionType `json:"type"`
	Amount        decimal.Decimal             `json:"amount"`
	SignedAmount  decimal.Decimal             `json:"signedAmount"`
	MemberID      string                      `json:"memberId,omitempty"`
	LoanID        string                      `json:"loanId,omitempty"`
	Category      string                      `json:"category,omitempty"`
	Date          time.Time                   `json:"date"`
	RecordedBy    string                      `json:"recordedBy"`
	RecordedAt    time.Time                   `json:"recordedAt"`
}

func NewLedgerRecord(txn *storemodels.Transactions) LedgerRecord {
	record := LedgerRecord{
		TransactionID: txn.ID.Hex(),
		GroupID:       txn.GroupID.Hex(),
		Type:          txn.Type,
		Amount:        txn.Amount,
		SignedAmount:  txn.Type.SignedAmount(txn.Amount),
		Category:      txn.Category,
		Date:          txn.Date,
		RecordedBy:    txn.CreatedBy.Hex(),
		RecordedAt:    txn.CreatedAt,
	}
	if txn.MemberID != nil {
		record.MemberID = txn.MemberID.Hex()
	}
	if txn.LoanID != nil {
		record.LoanID = txn.LoanID.Hex()
	}
	return record
}
