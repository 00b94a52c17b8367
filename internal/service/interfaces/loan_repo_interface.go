package interfaces

import (
	"context"
	"time"

	"shg-finance/internal/pkg/store/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type LoanRepositoryInterface interface {
	CreateLoan(ctx context.Context, loan *models.Loans) error
	GetLoanByID(ctx context.Context, loanID primitive.ObjectID) (*models.Loans, error)
	ListLoans(ctx context.Context, filter models.LoanFilter) ([]models.Loans, error)
	// SaveLoan persists loan if its stored version still equals loan.Version, then bumps the version.
	SaveLoan(ctx context.Context, loan *models.Loans) error
	SummarizeLoans(ctx context.Context, groupID primitive.ObjectID) ([]models.LoanStatusTotal, error)
	MarkOverdueInstallments(ctx context.Context, groupID primitive.ObjectID, asOf time.Time) (int64, error)
}

type LoanStoreInterface interface {
	Create(ctx context.Context, document interface{}) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter interface{}, opt *options.FindOneOptions) (models.Loans, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Loans, error)
	ModifyOne(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error)
	Update(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	AggregateAll(ctx context.Context, pipeline interface{}, result interface{}) error
}
