package consts

const (
	ServiceName   = "shg-finance"
	DateFormat    = "2006-01-02"
	GCSFolderName = "reconciliation"

	LoanLockPrefix  = "lock:loan:"
	GroupLockPrefix = "lock:group:"

	// transaction categories written by the loan engine
	CategoryLoanDisbursal = "Loan Disbursal"
	CategoryLoanRepayment = "Loan Repayment"
	CategorySavings       = "Member Savings"

	RequestIDHeader = "X-Request-ID"

	PrincipalContextKey = "principal"
	TraceIDContextKey   = "trace_id"
)

type LoanEventType string

const (
	LoanEventRequested LoanEventType = "LOAN_REQUESTED"
	LoanEventApproved  LoanEventType = "LOAN_APPROVED"
	LoanEventRejected  LoanEventType = "LOAN_REJECTED"
	LoanEventDisbursed LoanEventType = "LOAN_DISBURSED"
	LoanEventRepaid    LoanEventType = "LOAN_REPAID"
	LoanEventCompleted LoanEventType = "LOAN_COMPLETED"
)

// GlobalRole is the platform-wide role carried in the access token, independent of group roles.
type GlobalRole string

const (
	GlobalRoleAdmin        GlobalRole = "ADMIN"
	GlobalRoleFieldOfficer GlobalRole = "FIELD_OFFICER"
	GlobalRoleUser         GlobalRole = "USER"
)
