package interfaces

import (
	"context"

	"shg-finance/internal/pkg/store/models"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type GroupRepositoryInterface interface {
	GetGroupByID(ctx context.Context, groupID primitive.ObjectID) (*models.Groups, error)
	ListGroupIDs(ctx context.Context) ([]primitive.ObjectID, error)
	ApplyBalanceDelta(ctx context.Context, groupID primitive.ObjectID, delta models.BalanceDelta) error
	// SetBalances overwrites the running balances, used when reconciliation corrects drift.
	SetBalances(
		ctx context.Context,
		groupID primitive.ObjectID,
		cashInHand decimal.Decimal,
		totalSavings decimal.Decimal,
		memberSavings map[string]decimal.Decimal,
	) error
}

type GroupStoreInterface interface {
	FindOne(ctx context.Context, filter interface{}, opt *options.FindOneOptions) (models.Groups, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Groups, error)
	ModifyOne(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error)
	CountDocuments(ctx context.Context, filter interface{}) (int64, error)
}
