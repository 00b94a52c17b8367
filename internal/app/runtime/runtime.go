package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shg-finance/internal/app/router"
	"shg-finance/internal/pkg/auth"
	"shg-finance/internal/pkg/cleanup"
	"shg-finance/internal/pkg/config"
	"shg-finance/internal/pkg/consts"
	"shg-finance/internal/pkg/db/mongo"
	"shg-finance/internal/pkg/db/redis"
	"shg-finance/internal/pkg/kafka"
	"shg-finance/internal/pkg/lock"
	"shg-finance/internal/pkg/log_messages"
	"shg-finance/internal/pkg/logger"
	"shg-finance/internal/pkg/otel"
	"shg-finance/internal/pkg/pubsub"
	"shg-finance/internal/service/access"
	"shg-finance/internal/service/interfaces"
	"shg-finance/internal/service/ledger"
	"shg-finance/internal/service/loans"
	"shg-finance/internal/service/notification"

	groupsrepo "shg-finance/internal/pkg/store/impl/groups"
	loansrepo "shg-finance/internal/pkg/store/impl/loans"
	transactionsrepo "shg-finance/internal/pkg/store/impl/transactions"

	"github.com/gin-gonic/gin"
)

var (
	loadConfig     = config.LoadFromConfig
	connectMongoDB = mongo.ConnectToMongoDB
	connectRedisDB = func(ctx context.Context, cfg config.RedisConfig) (*redis.RedisClient, error) {
		return redis.ConnectToRedis(ctx, cfg, nil)
	}
	newKafkaProducer = kafka.NewKafkaProducer
	setupTracing     = otel.Setup
)

// App encapsulates application resources and lifecycle.
type App struct {
	Cfg             *config.AppConfig
	PubSubPublisher interfaces.RuntimePubSubPublisher
	KafkaProducer   *kafka.KafkaProducer
	MongoClient     *mongo.MongoClient
	RedisClient     *redis.RedisClient
	HTTPServer      *http.Server
	OtelShutdown    func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	cfg, err := loadConfig()
	if err != nil {
		logger.CtxError(ctx, log_messages.FailedLoadingConfiguration, err)
		return nil, err
	}
	logger.Init(cfg.Logging.LogLevel)

	app := &App{Cfg: cfg}
	if err := app.connect(ctx); err != nil {
		app.Shutdown(ctx)
		return nil, err
	}
	return app, nil
}

// connect opens the stores and the optional publishers. Pub/Sub and Kafka stay nil when not configured.
func (a *App) connect(ctx context.Context) error {
	shutdown, err := setupTracing(ctx, a.serviceName(), a.Cfg.Otel.CollectorURL)
	if err != nil {
		logger.CtxError(ctx, "Failed to set up tracing", err)
		return err
	}
	a.OtelShutdown = shutdown

	a.MongoClient, err = connectMongoDB(ctx, a.Cfg.Mongo)
	if err != nil {
		logger.CtxError(ctx, "Failed to connect to MongoDB", err)
		return err
	}

	a.RedisClient, err = connectRedisDB(ctx, a.Cfg.Redis)
	if err != nil {
		logger.CtxError(ctx, "Failed to connect to Redis", err)
		return err
	}

	if a.Cfg.PubSub.ProjectID != "" && a.Cfg.PubSub.NotificationTopic != "" {
		publisher, err := pubsub.NewPubSubPublisher(ctx, a.Cfg.PubSub.ProjectID)
		if err != nil {
			logger.CtxError(ctx, "Failure in PubSub publisher creation", err)
			return err
		}
		a.PubSubPublisher = publisher
		logger.CtxInfo(ctx, log_messages.PubsubPublisherCreated,
			slog.String("topic", a.Cfg.PubSub.NotificationTopic))
	}

	if a.Cfg.Kafka.Server != "" && a.Cfg.Kafka.LedgerTopic != "" {
		producer, err := newKafkaProducer(a.Cfg.Kafka)
		if err != nil {
			logger.CtxError(ctx, "Failure in Kafka producer creation", err)
			return err
		}
		a.KafkaProducer = producer
		logger.CtxInfo(ctx, log_messages.KafkaProducerCreated, slog.String("topic", a.Cfg.Kafka.LedgerTopic))
	}
	return nil
}

func (a *App) serviceName() string {
	if a.Cfg.Otel.ServiceName != "" {
		return a.Cfg.Otel.ServiceName
	}
	return consts.ServiceName
}

// Services holds the wired domain services shared by the API and the reconciler.
type Services struct {
	Groups       *groupsrepo.GroupRepository
	Loans        *loansrepo.LoanRepository
	Transactions *transactionsrepo.TransactionRepository
	Locker       *lock.RedisLocker
	Ledger       *ledger.LedgerService
	Loan         *loans.LoanService
	Transaction  *ledger.TransactionService
}

func (a *App) BuildServices() *Services {
	groups := groupsrepo.NewGroupsRepository(a.MongoClient)
	loanRepo := loansrepo.NewLoansRepository(a.MongoClient)
	transactions := transactionsrepo.NewTransactionsRepository(a.MongoClient)
	locker := lock.NewRedisLocker(a.RedisClient.Client, a.Cfg.Lock)
	txRunner := mongo.NewTransactionRunner(a.MongoClient, a.Cfg.Mongo.UseTransactions)

	var stream interfaces.KafkaPublisherInterface
	if a.KafkaProducer != nil {
		stream = a.KafkaProducer
	}
	ledgerService := ledger.NewLedgerService(groups, transactions, locker, txRunner, stream, a.Cfg.Ledger)
	accessService := access.NewAccessService(groups)
	notifier := notification.NewNotificationService(a.PubSubPublisher, a.Cfg.PubSub.NotificationTopic)

	return &Services{
		Groups:       groups,
		Loans:        loanRepo,
		Transactions: transactions,
		Locker:       locker,
		Ledger:       ledgerService,
		Loan: loans.NewLoanService(loanRepo, transactions, accessService, ledgerService, locker, txRunner,
			notifier, a.Cfg.Loans),
		Transaction: ledger.NewTransactionService(ledgerService, transactions, accessService),
	}
}

func (a *App) Engine() *gin.Engine {
	services := a.BuildServices()
	verifier := auth.NewTokenVerifier(a.Cfg.Auth)
	return router.SetupRouter(verifier, services.Loan, services.Transaction)
}

// Run starts the HTTP server, then blocks until SIGINT or SIGTERM.
func (a *App) Run(ctx context.Context) error {
	a.HTTPServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Cfg.Server.Port),
		Handler:           a.Engine(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.CtxError(ctx, log_messages.ServerStartFailure, err)
			serveErr <- err
		}
	}()
	logger.CtxInfo(ctx, "HTTP server listening", slog.String("addr", a.HTTPServer.Addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case <-quit:
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	a.Shutdown(context.WithoutCancel(ctx))
	logger.CtxInfo(ctx, log_messages.ServerExiting)
	return runErr
}

// Shutdown gracefully closes all resources with bounded timeouts.
func (a *App) Shutdown(ctx context.Context) {
	var publisher interface{ Close() error }
	if a.PubSubPublisher != nil {
		publisher = a.PubSubPublisher
	}
	cleanup.CleanupResources(ctx,
		a.HTTPServer,
		publisher,
		a.KafkaProducer,
		a.MongoClient,
		a.RedisClient,
		nil,
		a.OtelShutdown,
	)
}
