package interfaces

import (
	"context"

	"shg-finance/internal/pkg/store/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TransactionRepositoryInterface interface {
	CreateTransaction(ctx context.Context, txn *models.Transactions) error
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transactions, error)
	SumByType(ctx context.Context, groupID primitive.ObjectID) ([]models.TypeTotal, error)
	SumSavingsByMember(ctx context.Context, groupID primitive.ObjectID) ([]models.MemberTotal, error)
}

type TransactionStoreInterface interface {
	Create(ctx context.Context, document interface{}) (*mongo.InsertOneResult, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Transactions, error)
	AggregateAll(ctx context.Context, pipeline interface{}, result interface{}) error
}
