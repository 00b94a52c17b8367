package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RequestLoanCommand opens a loan in REQUESTED. BorrowerID defaults to the caller.
type RequestLoanCommand struct {
	GroupID         primitive.ObjectID  `json:"-"`
	Actor           Principal           `json:"-"`
	BorrowerID      *primitive.ObjectID `json:"borrowerId,omitempty"`
	RequestedAmount decimal.Decimal     `json:"requestedAmount" validate:"gt=0"`
	Purpose         string              `json:"purpose" validate:"required,max=500"`
	TenureMonths    int                 `json:"tenureMonths" validate:"gte=1,lte=360"`
	Tenure          int                 `json:"tenure,omitempty"`
	Documents       []string            `json:"documents,omitempty" validate:"omitempty,max=20,dive,url"`
}

// Normalize folds the legacy "tenure" field into TenureMonths.
func (c *RequestLoanCommand) Normalize() {
	if c.TenureMonths == 0 && c.Tenure > 0 {
		c.TenureMonths = c.Tenure
	}
}

type ApproveLoanCommand struct {
	LoanID         primitive.ObjectID `json:"-"`
	Actor          Principal          `json:"-"`
	ApprovedAmount *decimal.Decimal   `json:"approvedAmount,omitempty" validate:"omitempty,gt=0"`
	InterestRate   *decimal.Decimal   `json:"interestRate,omitempty" validate:"omitempty,gte=0,lte=100"`
	TenureMonths   *int               `json:"tenureMonths,omitempty" validate:"omitempty,gte=1,lte=360"`
	Tenure         *int               `json:"tenure,omitempty"`
}

func (c *ApproveLoanCommand) Normalize() {
	if c.TenureMonths == nil && c.Tenure != nil {
		c.TenureMonths = c.Tenure
	}
}

type RejectLoanCommand struct {
	LoanID primitive.ObjectID `json:"-"`
	Actor  Principal          `json:"-"`
	Reason string             `json:"reason,omitempty" validate:"max=500"`
}

type DisburseLoanCommand struct {
	LoanID          primitive.ObjectID `json:"-"`
	Actor           Principal          `json:"-"`
	DisbursedAmount *decimal.Decimal   `json:"disbursedAmount,omitempty" validate:"omitempty,gt=0"`
	DisbursalDate   *time.Time         `json:"disbursalDate,omitempty"`
}

type RepayLoanCommand struct {
	LoanID            primitive.ObjectID `json:"-"`
	Actor             Principal          `json:"-"`
	Amount            decimal.Decimal    `json:"amount" validate:"gt=0"`
	InstallmentNumber *int               `json:"installmentNumber,omitempty" validate:"omitempty,gte=1"`
	PaymentDate       *time.Time         `json:"paymentDate,omitempty"`
}
