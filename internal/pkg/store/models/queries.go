package models

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LoanFilter narrows a group's loan listing. Nil fields are not applied.
type LoanFilter struct {
	GroupID    primitive.ObjectID
	Status     *LoanStatus
	BorrowerID *primitive.ObjectID
}

// TransactionFilter narrows a group's ledger listing. Zero times are open bounds.
type TransactionFilter struct {
	GroupID  primitive.ObjectID
	Types    []TransactionType
	MemberID *primitive.ObjectID
	From     time.Time
	To       time.Time
	Cursor   *TransactionCursor
	Limit    int64
}

// TransactionCursor marks the last entry of a listing page. Listings run newest date first and break
// date ties on the higher id, so the next page holds everything the cursor Admits.
type TransactionCursor struct {
	Date time.Time
	ID   primitive.ObjectID
}

func CursorFor(txn Transactions) TransactionCursor {
	return TransactionCursor{Date: txn.Date.UTC(), ID: txn.ID}
}

func (c TransactionCursor) String() string {
	return c.Date.UTC().Format(time.RFC3339Nano) + "_" + c.ID.Hex()
}

func (c TransactionCursor) Admits(txn Transactions) bool {
	if !txn.Date.Equal(c.Date) {
		return txn.Date.Before(c.Date)
	}
	return bytes.Compare(txn.ID[:], c.ID[:]) < 0
}

func ParseTransactionCursor(raw string) (*TransactionCursor, error) {
	sep := strings.LastIndex(raw, "_")
	if sep == -1 {
		return nil, fmt.Errorf("cursor %q has no id part", raw)
	}
	date, err := time.Parse(time.RFC3339Nano, raw[:sep])
	if err != nil {
		return nil, fmt.Errorf("cursor date: %w", err)
	}
	id, err := primitive.ObjectIDFromHex(raw[sep+1:])
	if err != nil {
		return nil, fmt.Errorf("cursor id: %w", err)
	}
	return &TransactionCursor{Date: date.UTC(), ID: id}, nil
}

// BalanceDelta is a single atomic change to a group's running balances.
type BalanceDelta struct {
	Cash    decimal.Decimal
	Savings decimal.Decimal
	// MemberID receives Savings in its per-member savings balance.
	MemberID *primitive.ObjectID
	// AllowNegativeCash skips the cashInHand >= debit guard.
	AllowNegativeCash bool
}

// LoanStatusTotal is one row of the per-status loan aggregation.
type LoanStatusTotal struct {
	Status    LoanStatus      `bson:"_id" json:"status"`
	Count     int64           `bson:"count" json:"count"`
	Requested decimal.Decimal `bson:"requested" json:"requestedAmount"`
	Approved  decimal.Decimal `bson:"approved" json:"approvedAmount"`
	Disbursed decimal.Decimal `bson:"disbursed" json:"disbursedAmount"`
}

// TypeTotal is the ledger sum for one transaction type.
type TypeTotal struct {
	Type  TransactionType `bson:"_id"`
	Total decimal.Decimal `bson:"total"`
	Count int64           `bson:"count"`
}

// MemberTotal is the savings ledger sum for one member.
type MemberTotal struct {
	MemberID primitive.ObjectID `bson:"_id"`
	Total    decimal.Decimal    `bson:"total"`
}
