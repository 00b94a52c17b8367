package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shg-finance/internal/pkg/apperrors"
	"shg-finance/internal/pkg/consts"
	"shg-finance/internal/pkg/models"
	storemodels "shg-finance/internal/pkg/store/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) loanResult(args mock.Arguments) (*storemodels.Loans, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storemodels.Loans), args.Error(1)
}

func (m *MockLoanService) RequestLoan(ctx context.Context, cmd *models.RequestLoanCommand) (*storemodels.Loans, error) {
	return m.loanResult(m.Called(ctx, cmd))
}

func (m *MockLoanService) ApproveLoan(ctx context.Context, cmd *models.ApproveLoanCommand) (*storemodels.Loans, error) {
	return m.loanResult(m.Called(ctx, cmd))
}

func (m *MockLoanService) RejectLoan(ctx context.Context, cmd *models.RejectLoanCommand) (*storemodels.Loans, error) {
	return m.loanResult(m.Called(ctx, cmd))
}

func (m *MockLoanService) DisburseLoan(ctx context.Context, cmd *models.DisburseLoanCommand) (*storemodels.Loans, error) {
	return m.loanResult(m.Called(ctx, cmd))
}

func (m *MockLoanService) RepayLoan(ctx context.Context, cmd *models.RepayLoanCommand) (*storemodels.Loans, error) {
	return m.loanResult(m.Called(ctx, cmd))
}

func (m *MockLoanService) GetLoan(ctx context.Context, p models.Principal, loanID primitive.ObjectID) (*storemodels.Loans, error) {
	return m.loanResult(m.Called(ctx, p, loanID))
}

func (m *MockLoanService) ListLoans(
	ctx context.Context,
	p models.Principal,
	groupID primitive.ObjectID,
	status string,
	memberID *primitive.ObjectID,
) ([]storemodels.Loans, error) {
	args := m.Called(ctx, p, groupID, status, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storemodels.Loans), args.Error(1)
}

func (m *MockLoanService) GetLoanSummary(ctx context.Context, p models.Principal, groupID primitive.ObjectID) (*models.LoanSummary, error) {
	args := m.Called(ctx, p, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LoanSummary), args.Error(1)
}

type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) CreateTransaction(ctx context.Context, cmd *models.CreateTransactionCommand) (*storemodels.Transactions, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storemodels.Transactions), args.Error(1)
}

func (m *MockTransactionService) AddSavings(ctx context.Context, cmd *models.AddSavingsCommand) (*storemodels.Transactions, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storemodels.Transactions), args.Error(1)
}

func (m *MockTransactionService) ListTransactions(
	ctx context.Context,
	p models.Principal,
	groupID primitive.ObjectID,
	query models.TransactionQuery,
) (*models.TransactionPage, error) {
	args := m.Called(ctx, p, groupID, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TransactionPage), args.Error(1)
}

func (m *MockTransactionService) GetSavings(ctx context.Context, p models.Principal, groupID primitive.ObjectID) (*models.SavingsSummary, error) {
	args := m.Called(ctx, p, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SavingsSummary), args.Error(1)
}

func (m *MockTransactionService) GetBalances(ctx context.Context, p models.Principal, groupID primitive.ObjectID) (*models.GroupBalances, error) {
	args := m.Called(ctx, p, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GroupBalances), args.Error(1)
}

var caller = models.Principal{UserID: primitive.NewObjectID(), GlobalRole: consts.GlobalRoleUser}

func init() {
	gin.SetMode(gin.TestMode)
	decimal.MarshalJSONWithoutQuotes = true
}

func newTestRouter(loans *MockLoanService, ledger *MockTransactionService, authenticated bool) *gin.Engine {
	r := gin.New()
	if authenticated {
		r.Use(func(c *gin.Context) {
			c.Set(consts.PrincipalContextKey, caller)
		})
	}
	lh := NewLoanHandler(loans)
	r.POST("/groups/:groupId/loans", lh.RequestLoan)
	r.GET("/groups/:groupId/loans", lh.ListLoans)
	r.GET("/groups/:groupId/loans/summary", lh.GetLoanSummary)
	r.GET("/loans/:loanId", lh.GetLoan)
	r.PUT("/loans/:loanId/approve", lh.ApproveLoan)
	r.PUT("/loans/:loanId/reject", lh.RejectLoan)
	r.PUT("/loans/:loanId/disburse", lh.DisburseLoan)
	r.POST("/loans/:loanId/repay", lh.RepayLoan)

	th := NewLedgerHandler(ledger)
	r.GET("/groups/:groupId/transactions", th.ListTransactions)
	r.POST("/groups/:groupId/transactions", th.CreateTransaction)
	r.GET("/groups/:groupId/savings", th.GetSavings)
	r.POST("/groups/:groupId/savings", th.AddSavings)
	r.GET("/groups/:groupId/balances", th.GetBalances)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func sampleLoan(groupID primitive.ObjectID) *storemodels.Loans {
	disbursed := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	paid := decimal.NewFromInt(1000)
	return &storemodels.Loans{
		ID:              primitive.NewObjectID(),
		GroupID:         groupID,
		BorrowerID:      caller.UserID,
		RequestedAmount: decimal.NewFromInt(2000),
		ApprovedAmount:  decimal.NewFromInt(2000),
		DisbursedAmount: decimal.NewFromInt(2000),
		TenureMonths:    2,
		EMIAmount:       decimal.NewFromInt(1000),
		Status:          storemodels.LoanStatusDisbursed,
		DisbursalDate:   &disbursed,
		Repayments: []storemodels.Installment{
			{Number: 1, Amount: paid, Status: storemodels.InstallmentPaid, PaidAmount: &paid, PaidDate: &disbursed},
			{Number: 2, Amount: paid, Status: storemodels.InstallmentPending},
		},
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		apperrors.Validation("x"):           http.StatusBadRequest,
		apperrors.Unauthenticated("x"):      http.StatusUnauthorized,
		apperrors.Permission("x"):           http.StatusForbidden,
		apperrors.NotFound("x"):             http.StatusNotFound,
		apperrors.InvalidState("x"):         http.StatusConflict,
		apperrors.AlreadyPaid("x"):          http.StatusConflict,
		apperrors.NoPendingInstallment("x"): http.StatusConflict,
		apperrors.InsufficientFunds("x"):    http.StatusConflict,
		apperrors.Conflict("x"):             http.StatusConflict,
		errors.New("socket closed"):         http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusFor(err), err.Error())
	}
}

func TestRequestLoanHandler(t *testing.T) {
	loans := new(MockLoanService)
	r := newTestRouter(loans, new(MockTransactionService), true)
	groupID := primitive.NewObjectID()

	loan := sampleLoan(groupID)
	loan.Status = storemodels.LoanStatusRequested
	loan.DisbursalDate = nil
	loan.Repayments = []storemodels.Installment{}
	loans.On("RequestLoan", mock.Anything, mock.MatchedBy(func(cmd *models.RequestLoanCommand) bool {
		return cmd.GroupID == groupID &&
			cmd.Actor == caller &&
			cmd.RequestedAmount.Equal(decimal.NewFromInt(2000)) &&
			cmd.Purpose == "seeds" &&
			cmd.Tenure == 2
	})).Return(loan, nil).Once()

	w := do(r, http.MethodPost, "/groups/"+groupID.Hex()+"/loans",
		`{"requestedAmount":2000,"purpose":"seeds","tenure":2}`)

	require.Equal(t, http.StatusCreated, w.Code)
	env := decode(t, w)
	assert.True(t, env.Success)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "REQUESTED", body["status"])
	assert.Equal(t, float64(2), body["tenure"])
	assert.Nil(t, body["remainingBalance"])
	loans.AssertExpectations(t)
}

func TestLoanHandlerRejectsBadInput(t *testing.T) {
	loans := new(MockLoanService)
	r := newTestRouter(loans, new(MockTransactionService), true)

	w := do(r, http.MethodPost, "/groups/not-an-id/loans", `{"requestedAmount":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w).Code)

	w = do(r, http.MethodPost, "/groups/"+primitive.NewObjectID().Hex()+"/loans", `{"requestedAmount":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/loans/"+primitive.NewObjectID().Hex()+"/repay", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/groups/"+primitive.NewObjectID().Hex()+"/loans?memberId=zzz", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	loans.AssertNotCalled(t, "RequestLoan", mock.Anything, mock.Anything)
	loans.AssertNotCalled(t, "RepayLoan", mock.Anything, mock.Anything)
}

func TestLoanHandlerRequiresPrincipal(t *testing.T) {
	r := newTestRouter(new(MockLoanService), new(MockTransactionService), false)

	w := do(r, http.MethodGet, "/loans/"+primitive.NewObjectID().Hex(), "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHENTICATED", decode(t, w).Code)
}

func TestApproveLoanWithEmptyBody(t *testing.T) {
	loans := new(MockLoanService)
	r := newTestRouter(loans, new(MockTransactionService), true)
	loan := sampleLoan(primitive.NewObjectID())
	loan.Status = storemodels.LoanStatusApproved

	loans.On("ApproveLoan", mock.Anything, mock.MatchedBy(func(cmd *models.ApproveLoanCommand) bool {
		return cmd.LoanID == loan.ID && cmd.ApprovedAmount == nil && cmd.Actor == caller
	})).Return(loan, nil).Once()

	w := do(r, http.MethodPut, "/loans/"+loan.ID.Hex()+"/approve", "")

	assert.Equal(t, http.StatusOK, w.Code)
	loans.AssertExpectations(t)
}

func TestLoanTransitionsMapDomainErrors(t *testing.T) {
	cases := []struct {
		name   string
		method string
		path   string
		body   string
		mockFn string
		err    error
		status int
		code   string
	}{
		{"reject by member", http.MethodPut, "reject", `{"reason":"no"}`, "RejectLoan", apperrors.Permission("requires officer"), http.StatusForbidden, "PERMISSION_DENIED"},
		{"disburse without cash", http.MethodPut, "disburse", "", "DisburseLoan", apperrors.InsufficientFunds("low cash"), http.StatusConflict, "INSUFFICIENT_FUNDS"},
		{"repay paid installment", http.MethodPost, "repay", `{"amount":1000,"installmentNumber":1}`, "RepayLoan", apperrors.AlreadyPaid("paid"), http.StatusConflict, "ALREADY_PAID"},
		{"repay completed loan", http.MethodPost, "repay", `{"amount":1000}`, "RepayLoan", apperrors.InvalidState("completed"), http.StatusConflict, "INVALID_STATE"},
		{"repay missing loan", http.MethodPost, "repay", `{"amount":1000}`, "RepayLoan", apperrors.NotFound("no loan"), http.StatusNotFound, "NOT_FOUND"},
		{"storage failure", http.MethodPost, "repay", `{"amount":1000}`, "RepayLoan", apperrors.Infrastructure(errors.New("boom"), "save"), http.StatusInternalServerError, "INFRASTRUCTURE_ERROR"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			loans := new(MockLoanService)
			r := newTestRouter(loans, new(MockTransactionService), true)
			loans.On(c.mockFn, mock.Anything, mock.Anything).Return(nil, c.err).Once()

			w := do(r, c.method, "/loans/"+primitive.NewObjectID().Hex()+"/"+c.path, c.body)

			assert.Equal(t, c.status, w.Code)
			env := decode(t, w)
			assert.False(t, env.Success)
			assert.Equal(t, c.code, env.Code)
			if c.status == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", env.Message)
			}
		})
	}
}

func TestRepayLoanHandler(t *testing.T) {
	loans := new(MockLoanService)
	r := newTestRouter(loans, new(MockTransactionService), true)
	loan := sampleLoan(primitive.NewObjectID())

	loans.On("RepayLoan", mock.Anything, mock.MatchedBy(func(cmd *models.RepayLoanCommand) bool {
		return cmd.LoanID == loan.ID &&
			cmd.Amount.Equal(decimal.NewFromInt(1000)) &&
			cmd.InstallmentNumber != nil && *cmd.InstallmentNumber == 1 &&
			cmd.PaymentDate != nil
	})).Return(loan, nil).Once()

	w := do(r, http.MethodPost, "/loans/"+loan.ID.Hex()+"/repay",
		`{"amount":"1000","installmentNumber":1,"paymentDate":"2025-04-10T00:00:00Z"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &body))
	assert.Equal(t, float64(1000), body["totalPaid"])
	assert.Equal(t, float64(1000), body["remainingBalance"])
	assert.Len(t, body["repayments"], 2)
}

func TestListAndSummaryHandlers(t *testing.T) {
	loans := new(MockLoanService)
	r := newTestRouter(loans, new(MockTransactionService), true)
	groupID := primitive.NewObjectID()
	memberID := primitive.NewObjectID()

	loans.On("ListLoans", mock.Anything, caller, groupID, "DISBURSED", &memberID).
		Return([]storemodels.Loans{*sampleLoan(groupID)}, nil).Once()
	loans.On("GetLoanSummary", mock.Anything, caller, groupID).
		Return(&models.LoanSummary{GroupID: groupID.Hex(), TotalLoans: 1}, nil).Once()

	w := do(r, http.MethodGet, "/groups/"+groupID.Hex()+"/loans?status=DISBURSED&memberId="+memberID.Hex(), "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	assert.Len(t, list, 1)

	w = do(r, http.MethodGet, "/groups/"+groupID.Hex()+"/loans/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decode(t, w).Data), `"totalLoans":1`)
	loans.AssertExpectations(t)
}

func TestLedgerHandlers(t *testing.T) {
	ledger := new(MockTransactionService)
	r := newTestRouter(new(MockLoanService), ledger, true)
	groupID := primitive.NewObjectID()
	memberID := primitive.NewObjectID()

	txn := &storemodels.Transactions{
		ID: primitive.NewObjectID(), GroupID: groupID, Type: storemodels.TransactionSavings, Amount: decimal.NewFromInt(200),
	}
	ledger.On("CreateTransaction", mock.Anything, mock.MatchedBy(func(cmd *models.CreateTransactionCommand) bool {
		return cmd.GroupID == groupID && cmd.Type == storemodels.TransactionSavings &&
			cmd.MemberID != nil && *cmd.MemberID == memberID
	})).Return(txn, nil).Once()
	ledger.On("AddSavings", mock.Anything, mock.MatchedBy(func(cmd *models.AddSavingsCommand) bool {
		return cmd.MemberID == memberID && cmd.Actor == caller
	})).Return(txn, nil).Once()
	ledger.On("ListTransactions", mock.Anything, caller, groupID, models.TransactionQuery{Type: "EXPENSE"}).
		Return(&models.TransactionPage{Transactions: []storemodels.Transactions{}}, nil).Once()
	ledger.On("GetSavings", mock.Anything, caller, groupID).Return(&models.SavingsSummary{GroupID: groupID.Hex()}, nil).Once()
	ledger.On("GetBalances", mock.Anything, caller, groupID).
		Return(nil, apperrors.Permission("not a member")).Once()

	base := "/groups/" + groupID.Hex()
	w := do(r, http.MethodPost, base+"/transactions", `{"type":"SAVINGS","amount":200,"memberId":"`+memberID.Hex()+`"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = do(r, http.MethodPost, base+"/savings", `{"memberId":"`+memberID.Hex()+`","amount":200}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = do(r, http.MethodGet, base+"/transactions?type=EXPENSE", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", string(decode(t, w).Data))

	w = do(r, http.MethodGet, base+"/savings", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, base+"/balances", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	ledger.AssertExpectations(t)
}

func TestListTransactionsPaging(t *testing.T) {
	loans, ledger := new(MockLoanService), new(MockTransactionService)
	r := newTestRouter(loans, ledger, true)
	groupID := primitive.NewObjectID()
	base := "/groups/" + groupID.Hex() + "/transactions"

	ledger.On("ListTransactions", mock.Anything, caller, groupID, models.TransactionQuery{Limit: 2, Before: "cursor-1"}).
		Return(&models.TransactionPage{Transactions: []storemodels.Transactions{}, NextCursor: "cursor-2"}, nil).Once()
	ledger.On("ListTransactions", mock.Anything, caller, groupID, models.TransactionQuery{}).
		Return(&models.TransactionPage{Transactions: []storemodels.Transactions{}}, nil).Once()

	w := do(r, http.MethodGet, base+"?limit=2&before=cursor-1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cursor-2", w.Header().Get(nextCursorHeader))

	w = do(r, http.MethodGet, base, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(nextCursorHeader))

	w = do(r, http.MethodGet, base+"?limit=many", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ledger.AssertExpectations(t)
}

func TestHealthCheck(t *testing.T) {
	router := gin.New()
	router.GET("/health", NewHealthCheckHandler().HealthCheck)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Health Check"}`, w.Body.String())
}
