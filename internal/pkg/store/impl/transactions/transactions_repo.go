package transactions

import (
	"context"
	"log/slog"

	"shg-finance/internal/pkg/apperrors"
	"shg-finance/internal/pkg/consts"
	mongodb "shg-finance/internal/pkg/db/mongo"
	"shg-finance/internal/pkg/log_messages"
	"shg-finance/internal/pkg/logger"
	"shg-finance/internal/pkg/store/models"
	"shg-finance/internal/pkg/store/repository"
	"shg-finance/internal/service/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TransactionRepository struct {
	repo interfaces.TransactionStoreInterface
}

var _ interfaces.TransactionRepositoryInterface = (*TransactionRepository)(nil)

func NewTransactionsRepository(client *mongodb.MongoClient) *TransactionRepository {
	collection := client.Database.Collection(consts.TransactionCollection)
	repo := repository.NewMongoRepository[models.Transactions](collection)
	return &TransactionRepository{repo: repo}
}

func NewTransactionRepositoryWithInterface(repo interfaces.TransactionStoreInterface) *TransactionRepository {
	return &TransactionRepository{repo: repo}
}

func (tr *TransactionRepository) CreateTransaction(ctx context.Context, txn *models.Transactions) error {
	result, err := tr.repo.Create(ctx, txn)
	if err != nil {
		logger.CtxError(ctx, log_messages.ErrorCreatingTransaction, err,
			slog.String("group_id", txn.GroupID.Hex()),
			slog.String("type", string(txn.Type)),
		)
		return apperrors.Infrastructure(err, "record transaction")
	}

	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		txn.ID = id
	}
	return nil
}

func (tr *TransactionRepository) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transactions, error) {
	query := bson.M{"groupId": filter.GroupID}
	if len(filter.Types) > 0 {
		query["type"] = bson.M{"$in": filter.Types}
	}
	if filter.MemberID != nil {
		query["memberId"] = *filter.MemberID
	}

	dateRange := bson.M{}
	if !filter.From.IsZero() {
		dateRange["$gte"] = filter.From
	}
	if !filter.To.IsZero() {
		dateRange["$lte"] = filter.To
	}
	if len(dateRange) > 0 {
		query["date"] = dateRange
	}
	if filter.Cursor != nil {
		query["$or"] = bson.A{
			bson.M{"date": bson.M{"$lt": filter.Cursor.Date}},
			bson.M{"date": filter.Cursor.Date, "_id": bson.M{"$lt": filter.Cursor.ID}},
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}

	txns, err := tr.repo.Find(ctx, query, opts)
	if err != nil {
		logger.CtxError(ctx, log_messages.ErrorListingTransactions, err, slog.String("group_id", filter.GroupID.Hex()))
		return nil, apperrors.Infrastructure(err, "list transactions")
	}
	return txns, nil
}

func (tr *TransactionRepository) SumByType(ctx context.Context, groupID primitive.ObjectID) ([]models.TypeTotal, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"groupId": groupID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$type",
			"total": bson.M{"$sum": "$amount"},
			"count": bson.M{"$sum": 1},
		}}},
	}

	var totals []models.TypeTotal
	if err := tr.repo.AggregateAll(ctx, pipeline, &totals); err != nil {
		logger.CtxError(ctx, log_messages.ErrorListingTransactions, err, slog.String("group_id", groupID.Hex()))
		return nil, apperrors.Infrastructure(err, "sum transactions by type")
	}
	return totals, nil
}

func (tr *TransactionRepository) SumSavingsByMember(ctx context.Context, groupID primitive.ObjectID) ([]models.MemberTotal, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"groupId":  groupID,
			"type":     models.TransactionSavings,
			"memberId": bson.M{"$ne": nil},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$memberId",
			"total": bson.M{"$sum": "$amount"},
		}}},
	}

	var totals []models.MemberTotal
	if err := tr.repo.AggregateAll(ctx, pipeline, &totals); err != nil {
		logger.CtxError(ctx, log_messages.ErrorListingTransactions, err, slog.String("group_id", groupID.Hex()))
		return nil, apperrors.Infrastructure(err, "sum savings by member")
	}
	return totals, nil
}
