package consts

const (
	LoanCollection        = "Loans"
	GroupCollection       = "Groups"
	TransactionCollection = "Transactions"
)
