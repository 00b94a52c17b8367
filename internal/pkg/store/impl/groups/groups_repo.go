package groups

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"shg-finance/internal/pkg/apperrors"
	"shg-finance/internal/pkg/consts"
	mongodb "shg-finance/internal/pkg/db/mongo"
	"shg-finance/internal/pkg/log_messages"
	"shg-finance/internal/pkg/logger"
	"shg-finance/internal/pkg/store/models"
	"shg-finance/internal/pkg/store/repository"
	"shg-finance/internal/service/interfaces"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type GroupRepository struct {
	repo interfaces.GroupStoreInterface
	now  func() time.Time
}

var _ interfaces.GroupRepositoryInterface = (*GroupRepository)(nil)

func NewGroupsRepository(client *mongodb.MongoClient) *GroupRepository {
	collection := client.Database.Collection(consts.GroupCollection)
	repo := repository.NewMongoRepository[models.Groups](collection)
	return NewGroupRepositoryWithInterface(repo)
}

func NewGroupRepositoryWithInterface(repo interfaces.GroupStoreInterface) *GroupRepository {
	return &GroupRepository{repo: repo, now: time.Now}
}

func (gr *GroupRepository) GetGroupByID(ctx context.Context, groupID primitive.ObjectID) (*models.Groups, error) {
	group, err := gr.repo.FindOne(ctx, bson.M{"_id": groupID}, options.FindOne())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			logger.CtxWarn(ctx, log_messages.GroupNotFound, slog.String("group_id", groupID.Hex()))
			return nil, apperrors.NotFound("group %s not found", groupID.Hex())
		}
		logger.CtxError(ctx, log_messages.ErrorFindingGroup, err, slog.String("group_id", groupID.Hex()))
		return nil, apperrors.Infrastructure(err, "find group %s", groupID.Hex())
	}
	return &group, nil
}

func (gr *GroupRepository) ListGroupIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	groups, err := gr.repo.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		logger.CtxError(ctx, log_messages.ErrorFindingGroup, err)
		return nil, apperrors.Infrastructure(err, "list groups")
	}

	ids := make([]primitive.ObjectID, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	return ids, nil
}

// ApplyBalanceDelta increments the group's balances in one conditional update. A debit only applies while
// cashInHand covers it unless the delta allows negative cash.
func (gr *GroupRepository) ApplyBalanceDelta(ctx context.Context, groupID primitive.ObjectID, delta models.BalanceDelta) error {
	filter := bson.M{"_id": groupID}
	if delta.Cash.IsNegative() && !delta.AllowNegativeCash {
		filter["cashInHand"] = bson.M{"$gte": delta.Cash.Neg()}
	}

	inc := bson.M{"cashInHand": delta.Cash}
	if !delta.Savings.IsZero() {
		inc["totalSavings"] = delta.Savings
		if delta.MemberID != nil {
			inc["memberSavingsBalance."+delta.MemberID.Hex()] = delta.Savings
		}
	}
	update := bson.M{
		"$inc": inc,
		"$set": bson.M{"updatedAt": gr.now().UTC()},
	}

	result, err := gr.repo.ModifyOne(ctx, filter, update)
	if err != nil {
		logger.CtxError(ctx, log_messages.ErrorUpdatingGroupBalances, err, slog.String("group_id", groupID.Hex()))
		return apperrors.Infrastructure(err, "update balances of group %s", groupID.Hex())
	}
	if result.MatchedCount > 0 {
		return nil
	}

	// Nothing matched: either the group is gone or the cash guard rejected the debit.
	count, err := gr.repo.CountDocuments(ctx, bson.M{"_id": groupID})
	if err != nil {
		return apperrors.Infrastructure(err, "find group %s", groupID.Hex())
	}
	if count == 0 {
		return apperrors.NotFound("group %s not found", groupID.Hex())
	}
	return apperrors.InsufficientFunds("group cash in hand is below %s", delta.Cash.Neg().StringFixed(2))
}

func (gr *GroupRepository) SetBalances(
	ctx context.Context,
	groupID primitive.ObjectID,
	cashInHand decimal.Decimal,
	totalSavings decimal.Decimal,
	memberSavings map[string]decimal.Decimal,
) error {
	set := bson.M{
		"cashInHand":           cashInHand,
		"totalSavings":         totalSavings,
		"memberSavingsBalance": memberSavings,
		"updatedAt":            gr.now().UTC(),
	}

	result, err := gr.repo.ModifyOne(ctx, bson.M{"_id": groupID}, bson.M{"$set": set})
	if err != nil {
		logger.CtxError(ctx, log_messages.ErrorUpdatingGroupBalances, err, slog.String("group_id", groupID.Hex()))
		return apperrors.Infrastructure(err, "overwrite balances of group %s", groupID.Hex())
	}
	if result.MatchedCount == 0 {
		return apperrors.NotFound("group %s not found", groupID.Hex())
	}
	return nil
}
