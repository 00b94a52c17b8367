// Package fakes holds in-memory implementations of the service interfaces for tests.
package fakes

import (
	"context"
	"sort"
	"sync"
	"time"

	"shg-finance/internal/pkg/apperrors"
	"shg-finance/internal/pkg/models"
	storemodels "shg-finance/internal/pkg/store/models"
	"shg-finance/internal/service/interfaces"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func copyLoan(l *storemodels.Loans) *storemodels.Loans {
	c := *l
	c.Repayments = append([]storemodels.Installment(nil), l.Repayments...)
	c.Documents = append([]string(nil), l.Documents...)
	return &c
}

// LoanStore keeps loans in memory and enforces the same version check as the Mongo repository.
type LoanStore struct {
	mu    sync.Mutex
	loans map[primitive.ObjectID]*storemodels.Loans
	// SaveErr, when set, is returned by the next SaveLoan call.
	SaveErr error
}

var _ interfaces.LoanRepositoryInterface = (*LoanStore)(nil)

func NewLoanStore() *LoanStore {
	return &LoanStore{loans: map[primitive.ObjectID]*storemodels.Loans{}}
}

func (s *LoanStore) CreateLoan(ctx context.Context, loan *storemodels.Loans) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loan.ID.IsZero() {
		loan.ID = primitive.NewObjectID()
	}
	s.loans[loan.ID] = copyLoan(loan)
	return nil
}

func (s *LoanStore) GetLoanByID(ctx context.Context, loanID primitive.ObjectID) (*storemodels.Loans, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loan, ok := s.loans[loanID]
	if !ok {
		return nil, apperrors.NotFound("loan %s not found", loanID.Hex())
	}
	return copyLoan(loan), nil
}

func (s *LoanStore) ListLoans(ctx context.Context, filter storemodels.LoanFilter) ([]storemodels.Loans, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []storemodels.Loans{}
	for _, l := range s.loans {
		if l.GroupID != filter.GroupID {
			continue
		}
		if filter.Status != nil && l.Status != *filter.Status {
			continue
		}
		if filter.BorrowerID != nil && l.BorrowerID != *filter.BorrowerID {
			continue
		}
		out = append(out, *copyLoan(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *LoanStore) SaveLoan(ctx context.Context, loan *storemodels.Loans) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		err := s.SaveErr
		s.SaveErr = nil
		return err
	}
	stored, ok := s.loans[loan.ID]
	if !ok || stored.Version != loan.Version {
		return apperrors.Conflict("loan %s was modified concurrently", loan.ID.Hex())
	}
	loan.Version++
	s.loans[loan.ID] = copyLoan(loan)
	return nil
}

func (s *LoanStore) SummarizeLoans(ctx context.Context, groupID primitive.ObjectID) ([]storemodels.LoanStatusTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := map[storemodels.LoanStatus]*storemodels.LoanStatusTotal{}
	for _, l := range s.loans {
		if l.GroupID != groupID {
			continue
		}
		t, ok := totals[l.Status]
		if !ok {
			t = &storemodels.LoanStatusTotal{Status: l.Status}
			totals[l.Status] = t
		}
		t.Count++
		t.Requested = t.Requested.Add(l.RequestedAmount)
		t.Approved = t.Approved.Add(l.ApprovedAmount)
		t.Disbursed = t.Disbursed.Add(l.DisbursedAmount)
	}
	out := make([]storemodels.LoanStatusTotal, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, nil
}

func (s *LoanStore) MarkOverdueInstallments(ctx context.Context, groupID primitive.ObjectID, asOf time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var modified int64
	for _, l := range s.loans {
		if l.GroupID != groupID || l.Status != storemodels.LoanStatusDisbursed {
			continue
		}
		changed := false
		for i := range l.Repayments {
			if l.Repayments[i].Status == storemodels.InstallmentPending && l.Repayments[i].DueDate.Before(asOf) {
				l.Repayments[i].Status = storemodels.InstallmentOverdue
				changed = true
			}
		}
		if changed {
			l.Version++
			modified++
		}
	}
	return modified, nil
}

// GroupStore keeps groups in memory with the same cash guard as the Mongo repository.
type GroupStore struct {
	mu     sync.Mutex
	groups map[primitive.ObjectID]*storemodels.Groups
	// ApplyErr, when set, is returned by every ApplyBalanceDelta call.
	ApplyErr error
}

var _ interfaces.GroupRepositoryInterface = (*GroupStore)(nil)

func NewGroupStore(groups ...*storemodels.Groups) *GroupStore {
	s := &GroupStore{groups: map[primitive.ObjectID]*storemodels.Groups{}}
	for _, g := range groups {
		s.Put(g)
	}
	return s
}

func copyGroup(g *storemodels.Groups) *storemodels.Groups {
	c := *g
	c.Members = append([]storemodels.GroupMember(nil), g.Members...)
	c.MemberSavings = make(map[string]decimal.Decimal, len(g.MemberSavings))
	for k, v := range g.MemberSavings {
		c.MemberSavings[k] = v
	}
	return &c
}

func (s *GroupStore) Put(g *storemodels.Groups) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID.IsZero() {
		g.ID = primitive.NewObjectID()
	}
	s.groups[g.ID] = copyGroup(g)
}

func (s *GroupStore) GetGroupByID(ctx context.Context, groupID primitive.ObjectID) (*storemodels.Groups, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, apperrors.NotFound("group %s not found", groupID.Hex())
	}
	return copyGroup(g), nil
}

func (s *GroupStore) ListGroupIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]primitive.ObjectID, 0, len(s.groups))
	for id := range s.groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Hex() < ids[j].Hex() })
	return ids, nil
}

func (s *GroupStore) ApplyBalanceDelta(ctx context.Context, groupID primitive.ObjectID, delta storemodels.BalanceDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ApplyErr != nil {
		return s.ApplyErr
	}
	g, ok := s.groups[groupID]
	if !ok {
		return apperrors.NotFound("group %s not found", groupID.Hex())
	}
	if delta.Cash.IsNegative() && !delta.AllowNegativeCash && g.CashInHand.LessThan(delta.Cash.Neg()) {
		return apperrors.InsufficientFunds("group cash in hand is below %s", delta.Cash.Neg().StringFixed(2))
	}
	g.CashInHand = g.CashInHand.Add(delta.Cash)
	if !delta.Savings.IsZero() {
		g.TotalSavings = g.TotalSavings.Add(delta.Savings)
		if delta.MemberID != nil {
			if g.MemberSavings == nil {
				g.MemberSavings = map[string]decimal.Decimal{}
			}
			key := delta.MemberID.Hex()
			g.MemberSavings[key] = g.MemberSavings[key].Add(delta.Savings)
		}
	}
	return nil
}

func (s *GroupStore) SetBalances(
	ctx context.Context,
	groupID primitive.ObjectID,
	cashInHand decimal.Decimal,
	totalSavings decimal.Decimal,
	memberSavings map[string]decimal.Decimal,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return apperrors.NotFound("group %s not found", groupID.Hex())
	}
	g.CashInHand = cashInHand
	g.TotalSavings = totalSavings
	g.MemberSavings = memberSavings
	return nil
}

// TransactionStore is an append-only in-memory ledger.
type TransactionStore struct {
	mu   sync.Mutex
	txns []storemodels.Transactions
	// CreateErr, when set, is returned by every CreateTransaction call.
	CreateErr error
}

var _ interfaces.TransactionRepositoryInterface = (*TransactionStore)(nil)

func NewTransactionStore() *TransactionStore {
	return &TransactionStore{}
}

func (s *TransactionStore) CreateTransaction(ctx context.Context, txn *storemodels.Transactions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return s.CreateErr
	}
	if txn.ID.IsZero() {
		txn.ID = primitive.NewObjectID()
	}
	s.txns = append(s.txns, *txn)
	return nil
}

// All returns every recorded transaction in insertion order.
func (s *TransactionStore) All() []storemodels.Transactions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storemodels.Transactions(nil), s.txns...)
}

func (s *TransactionStore) ListTransactions(
	ctx context.Context,
	filter storemodels.TransactionFilter,
) ([]storemodels.Transactions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []storemodels.Transactions{}
	for i := len(s.txns) - 1; i >= 0; i-- {
		t := s.txns[i]
		if t.GroupID != filter.GroupID {
			continue
		}
		if len(filter.Types) > 0 && !containsType(filter.Types, t.Type) {
			continue
		}
		if filter.MemberID != nil && (t.MemberID == nil || *t.MemberID != *filter.MemberID) {
			continue
		}
		if !filter.From.IsZero() && t.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && t.Date.After(filter.To) {
			continue
		}
		if filter.Cursor != nil && !filter.Cursor.Admits(t) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return storemodels.CursorFor(out[i]).Admits(out[j]) })
	if filter.Limit > 0 && int64(len(out)) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func containsType(types []storemodels.TransactionType, t storemodels.TransactionType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func (s *TransactionStore) SumByType(ctx context.Context, groupID primitive.ObjectID) ([]storemodels.TypeTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := map[storemodels.TransactionType]*storemodels.TypeTotal{}
	for _, t := range s.txns {
		if t.GroupID != groupID {
			continue
		}
		total, ok := totals[t.Type]
		if !ok {
			total = &storemodels.TypeTotal{Type: t.Type}
			totals[t.Type] = total
		}
		total.Total = total.Total.Add(t.Amount)
		total.Count++
	}
	out := make([]storemodels.TypeTotal, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

func (s *TransactionStore) SumSavingsByMember(ctx context.Context, groupID primitive.ObjectID) ([]storemodels.MemberTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := map[primitive.ObjectID]decimal.Decimal{}
	for _, t := range s.txns {
		if t.GroupID != groupID || t.Type != storemodels.TransactionSavings || t.MemberID == nil {
			continue
		}
		totals[*t.MemberID] = totals[*t.MemberID].Add(t.Amount)
	}
	out := make([]storemodels.MemberTotal, 0, len(totals))
	for id, total := range totals {
		out = append(out, storemodels.MemberTotal{MemberID: id, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID.Hex() < out[j].MemberID.Hex() })
	return out, nil
}

// Notifier records loan events.
type Notifier struct {
	mu     sync.Mutex
	events []models.LoanEvent
}

var _ interfaces.LoanNotifierInterface = (*Notifier)(nil)

func (n *Notifier) Notify(ctx context.Context, event models.LoanEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *Notifier) Events() []models.LoanEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.LoanEvent(nil), n.events...)
}
