package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type LoanStatus string

const (
	LoanStatusRequested LoanStatus = "REQUESTED"
	LoanStatusApproved  LoanStatus = "APPROVED"
	LoanStatusDisbursed LoanStatus = "DISBURSED"
	LoanStatusCompleted LoanStatus = "COMPLETED"
	LoanStatusRejected  LoanStatus = "REJECTED"
)

func (s LoanStatus) Valid() bool {
	switch s {
	case LoanStatusRequested, LoanStatusApproved, LoanStatusDisbursed, LoanStatusCompleted, LoanStatusRejected:
		return true
	}
	return false
}

type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "PENDING"
	InstallmentPaid    InstallmentStatus = "PAID"
	InstallmentOverdue InstallmentStatus = "OVERDUE"
)

type Installment struct {
	Number     int                 `bson:"emiNumber" json:"emiNumber"`
	DueDate    time.Time           `bson:"dueDate" json:"dueDate"`
	Amount     decimal.Decimal     `bson:"amount" json:"amount"`
	Status     InstallmentStatus   `bson:"status" json:"status"`
	PaidDate   *time.Time          `bson:"paidDate,omitempty" json:"paidDate,omitempty"`
	PaidAmount *decimal.Decimal    `bson:"paidAmount,omitempty" json:"paidAmount,omitempty"`
	PaidBy     *primitive.ObjectID `bson:"paidBy,omitempty" json:"paidBy,omitempty"`
}

// Unpaid reports whether the installment still needs a payment. Overdue installments remain payable.
func (i Installment) Unpaid() bool {
	return i.Status != InstallmentPaid
}

type Loans struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	GroupID         primitive.ObjectID  `bson:"groupId" json:"groupId"`
	BorrowerID      primitive.ObjectID  `bson:"borrowerId" json:"borrowerId"`
	RequestedAmount decimal.Decimal     `bson:"requestedAmount" json:"requestedAmount"`
	ApprovedAmount  decimal.Decimal     `bson:"approvedAmount" json:"approvedAmount"`
	DisbursedAmount decimal.Decimal     `bson:"disbursedAmount" json:"disbursedAmount"`
	InterestRate    decimal.Decimal     `bson:"interestRate" json:"interestRate"`
	TenureMonths    int                 `bson:"tenureMonths" json:"tenureMonths"`
	EMIAmount       decimal.Decimal     `bson:"emiAmount" json:"emiAmount"`
	Purpose         string              `bson:"purpose" json:"purpose"`
	Documents       []string            `bson:"documents,omitempty" json:"documents,omitempty"`
	Status          LoanStatus          `bson:"status" json:"status"`
	Repayments      []Installment       `bson:"repayments" json:"repayments"`
	ApprovedBy      *primitive.ObjectID `bson:"approvedBy,omitempty" json:"approvedBy,omitempty"`
	ApprovalDate    *time.Time          `bson:"approvalDate,omitempty" json:"approvalDate,omitempty"`
	DisbursedBy     *primitive.ObjectID `bson:"disbursedBy,omitempty" json:"disbursedBy,omitempty"`
	DisbursalDate   *time.Time          `bson:"disbursalDate,omitempty" json:"disbursalDate,omitempty"`
	RejectedBy      *primitive.ObjectID `bson:"rejectedBy,omitempty" json:"rejectedBy,omitempty"`
	RejectionDate   *time.Time          `bson:"rejectionDate,omitempty" json:"rejectionDate,omitempty"`
	RejectionReason string              `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
	CompletedAt     *time.Time          `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt" json:"updatedAt"`
	Version         int64               `bson:"version" json:"version"`
}

// TotalPaid sums the scheduled amounts of settled installments. PaidAmount records what the member
// actually handed over and does not move the balance.
func (l *Loans) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, r := range l.Repayments {
		if r.Status == InstallmentPaid {
			total = total.Add(r.Amount)
		}
	}
	return total
}

// RemainingBalance is nil until the loan has been disbursed, and never below zero.
func (l *Loans) RemainingBalance() *decimal.Decimal {
	if l.DisbursalDate == nil {
		return nil
	}
	remaining := l.DisbursedAmount.Sub(l.TotalPaid())
	if remaining.IsNegative() || l.Status == LoanStatusCompleted {
		remaining = decimal.Zero
	}
	return &remaining
}

func (l *Loans) AllPaid() bool {
	if len(l.Repayments) == 0 {
		return false
	}
	for _, r := range l.Repayments {
		if r.Unpaid() {
			return false
		}
	}
	return true
}

// InstallmentIndex returns the slice index of installment number n, or -1.
func (l *Loans) InstallmentIndex(n int) int {
	for i, r := range l.Repayments {
		if r.Number == n {
			return i
		}
	}
	return -1
}

// FirstUnpaidIndex returns the slice index of the lowest-numbered unpaid installment, or -1.
func (l *Loans) FirstUnpaidIndex() int {
	idx := -1
	for i, r := range l.Repayments {
		if r.Unpaid() && (idx == -1 || r.Number < l.Repayments[idx].Number) {
			idx = i
		}
	}
	return idx
}

type MemberRole string

const (
	RolePresident MemberRole = "PRESIDENT"
	RoleTreasurer MemberRole = "TREASURER"
	RoleMember    MemberRole = "MEMBER"
)

type MemberStatus string

const (
	MemberActive   MemberStatus = "ACTIVE"
	MemberPending  MemberStatus = "PENDING"
	MemberInactive MemberStatus = "INACTIVE"
)

type GroupMember struct {
	UserID   primitive.ObjectID `bson:"userId" json:"userId"`
	Role     MemberRole         `bson:"role" json:"role"`
	Status   MemberStatus       `bson:"status" json:"status"`
	JoinedAt time.Time          `bson:"joinedAt" json:"joinedAt"`
}

type Groups struct {
	ID            primitive.ObjectID         `bson:"_id,omitempty" json:"id"`
	Name          string                     `bson:"name" json:"name"`
	Members       []GroupMember              `bson:"members" json:"members"`
	CashInHand    decimal.Decimal            `bson:"cashInHand" json:"cashInHand"`
	TotalSavings  decimal.Decimal            `bson:"totalSavings" json:"totalSavings"`
	MemberSavings map[string]decimal.Decimal `bson:"memberSavingsBalance,omitempty" json:"memberSavingsBalance,omitempty"`
	CreatedAt     time.Time                  `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time                  `bson:"updatedAt" json:"updatedAt"`
}

// Member finds the membership record for userID.
func (g *Groups) Member(userID primitive.ObjectID) (GroupMember, bool) {
	for _, m := range g.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return GroupMember{}, false
}

type TransactionType string

const (
	TransactionIncome        TransactionType = "INCOME"
	TransactionExpense       TransactionType = "EXPENSE"
	TransactionSavings       TransactionType = "SAVINGS"
	TransactionLoanRepayment TransactionType = "LOAN_REPAYMENT"
	TransactionLoanDisbursal TransactionType = "LOAN_DISBURSAL"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionIncome, TransactionExpense, TransactionSavings, TransactionLoanRepayment, TransactionLoanDisbursal:
		return true
	}
	return false
}

// Debit reports whether the type takes cash out of the group.
func (t TransactionType) Debit() bool {
	return t == TransactionExpense || t == TransactionLoanDisbursal
}

// SignedAmount is the effect of a transaction of this type on cash in hand.
func (t TransactionType) SignedAmount(amount decimal.Decimal) decimal.Decimal {
	if t.Debit() {
		return amount.Neg()
	}
	return amount
}

type Transactions struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	GroupID   primitive.ObjectID  `bson:"groupId" json:"groupId"`
	Type      TransactionType     `bson:"type" json:"type"`
	Amount    decimal.Decimal     `bson:"amount" json:"amount"`
	Date      time.Time           `bson:"date" json:"date"`
	Category  string              `bson:"category,omitempty" json:"category,omitempty"`
	Notes     string              `bson:"notes,omitempty" json:"notes,omitempty"`
	MemberID  *primitive.ObjectID `bson:"memberId,omitempty" json:"memberId,omitempty"`
	LoanID    *primitive.ObjectID `bson:"loanId,omitempty" json:"loanId,omitempty"`
	CreatedBy primitive.ObjectID  `bson:"createdBy" json:"createdBy"`
	CreatedAt time.Time           `bson:"createdAt" json:"createdAt"`
}
