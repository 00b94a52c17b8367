package router

import (
	"shg-finance/internal/app/handlers"
	"shg-finance/internal/app/middleware"
	"shg-finance/internal/pkg/consts"
	"shg-finance/internal/service/interfaces"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
)

func SetupRouter(
	verifier middleware.TokenVerifier,
	loanService interfaces.LoanServiceInterface,
	transactionService interfaces.TransactionServiceInterface,
) *gin.Engine {
	r := gin.Default()
	meter := otel.Meter(consts.ServiceName)
	r.Use(otelgin.Middleware(consts.ServiceName))
	r.Use(middleware.NewMetricMiddleware(meter))
	r.Use(middleware.AttachRequestDetails())

	healthCheckHandler := handlers.NewHealthCheckHandler()
	r.GET("/health", healthCheckHandler.HealthCheck)

	loanHandler := handlers.NewLoanHandler(loanService)
	ledgerHandler := handlers.NewLedgerHandler(transactionService)

	api := r.Group("/api/v1", middleware.Authenticate(verifier))

	groups := api.Group("/groups/:groupId")
	groups.POST("/loans", loanHandler.RequestLoan)
	groups.GET("/loans", loanHandler.ListLoans)
	groups.GET("/loans/summary", loanHandler.GetLoanSummary)
	groups.GET("/transactions", ledgerHandler.ListTransactions)
	groups.POST("/transactions", ledgerHandler.CreateTransaction)
	groups.GET("/savings", ledgerHandler.GetSavings)
	groups.POST("/savings", ledgerHandler.AddSavings)
	groups.GET("/balances", ledgerHandler.GetBalances)

	loans := api.Group("/loans/:loanId")
	loans.GET("", loanHandler.GetLoan)
	loans.PUT("/approve", loanHandler.ApproveLoan)
	loans.PUT("/reject", loanHandler.RejectLoan)
	loans.PUT("/disburse", loanHandler.DisburseLoan)
	loans.POST("/repay", loanHandler.RepayLoan)

	return r
}
