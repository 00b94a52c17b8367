package log_messages

const (
	ServerStartFailure         = "failed to start server"
	ServerExiting              = "Server exiting"
	FailedLoadingConfiguration = "Failed to load configuration"
	CleanupStarted             = "Starting cleanup of resources..."
	CleanupCompleted           = "All resources cleaned up successfully"

	// publishers
	PubsubPublisherCreated      = "PubSub publisher created"
	KafkaProducerCreated        = "Kafka producer created"
	ErrorPublishingLoanEvent    = "Failed to publish loan event"
	ErrorPublishingLedgerRecord = "Failed to publish ledger record"
	ErrorMarshallingJSON        = "Error marshalling JSON"
	GCSClientClosedSuccessfully = "GCS client closed successfully"
	ErrorClosingGCSClient       = "Error closing GCS client"
	ErrorUploadingToGCSBucket   = "Error uploading to GCS bucket"
	ErrorClosingGCSWriter       = "Error closing GCS writer"
	UploadedToGCSBucket         = "Uploaded object to GCS bucket"

	// store
	InvalidObjectID            = "Invalid ObjectID"
	LoanNotFound               = "Loan not found"
	GroupNotFound              = "Group not found"
	ErrorFindingLoan           = "Error finding loan"
	ErrorFindingGroup          = "Error finding group"
	ErrorCreatingLoan          = "Failed to create loan"
	ErrorUpdatingLoan          = "Failed to update loan"
	LoanVersionConflict        = "Loan was modified concurrently"
	ErrorUpdatingGroupBalances = "Failed to update group balances"
	ErrorCreatingTransaction   = "Failed to create transaction"
	ErrorListingTransactions   = "Failed to list transactions"
	ErrorListingLoans          = "Failed to list loans"
	ErrorAggregatingLoans      = "Failed to aggregate loan summary"

	// loan engine
	LoanRequested             = "Loan requested"
	LoanApproved              = "Loan approved"
	LoanRejected              = "Loan rejected"
	LoanDisbursed             = "Loan disbursed"
	LoanRepaymentRecorded     = "Loan repayment recorded"
	LoanCompleted             = "Loan completed"
	LoanRebasedOnOverdueMarks = "Loan rebased on concurrent overdue marking"
	LedgerEntryRecorded       = "Ledger entry recorded"
	LedgerWrittenLoanNotSaved = "Ledger entry recorded but loan update failed"
	LedgerReversalFailed      = "Failed to reverse balance change after ledger insert failure"

	// locks
	LockAcquireFailed = "Failed to acquire lock"
	LockReleaseFailed = "Failed to release lock"

	// reconciliation
	ReconciliationStarted     = "Reconciliation started"
	ReconciliationCompleted   = "Reconciliation completed"
	BalanceDriftDetected      = "Group balance drift detected"
	BalanceDriftFixed         = "Group balance drift corrected"
	OverdueInstallmentsMarked = "Overdue installments marked"
	ErrorReconcilingGroup     = "Failed to reconcile group"
)
