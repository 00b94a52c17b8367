package models

import (
	"time"

	storemodels "shg-finance/internal/pkg/store/models"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CreateTransactionCommand records a manual cash movement. Loan types are produced by the loan engine only.
type CreateTransactionCommand struct {
	GroupID  primitive.ObjectID          `json:"-"`
	Actor    Principal                   `json:"-"`
	Type     storemodels.TransactionType `json:"type" validate:"required,oneof=INCOME EXPENSE SAVINGS"`
	Amount   decimal.Decimal             `json:"amount" validate:"gt=0"`
	Category string                      `json:"category,omitempty" validate:"max=100"`
	Notes    string                      `json:"notes,omitempty" validate:"max=500"`
	MemberID *primitive.ObjectID         `json:"memberId,omitempty" validate:"required_if=Type SAVINGS"`
	Date     *time.Time                  `json:"date,omitempty"`
}

type AddSavingsCommand struct {
	GroupID  primitive.ObjectID `json:"-"`
	Actor    Principal          `json:"-"`
	MemberID primitive.ObjectID `json:"memberId" validate:"required"`
	Amount   decimal.Decimal    `json:"amount" validate:"gt=0"`
	Notes    string             `json:"notes,omitempty" validate:"max=500"`
	Date     *time.Time         `json:"date,omitempty"`
}

// TransactionQuery narrows and pages a ledger listing. A zero Limit returns the whole ledger. Before
// takes the cursor handed out with the previous page.
type TransactionQuery struct {
	Type   string `form:"type"`
	Limit  int64  `form:"limit" validate:"min=0,max=1000"`
	Before string `form:"before"`
}

// LedgerEntry is one financial event routed through the ledger.
type LedgerEntry struct {
	GroupID    primitive.ObjectID
	Type       storemodels.TransactionType
	Amount     decimal.Decimal
	Category   string
	Notes      string
	MemberID   *primitive.ObjectID
	LoanID     *primitive.ObjectID
	Date       time.Time
	RecordedBy primitive.ObjectID
}
