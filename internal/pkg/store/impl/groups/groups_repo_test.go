package groups

import (
	"context"
	"errors"
	"testing"
	"time"

	"shg-finance/internal/pkg/apperrors"
	mongodb "shg-finance/internal/pkg/db/mongo"
	"shg-finance/internal/pkg/store/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MockGroupStore struct {
	mock.Mock
}

func (m *MockGroupStore) FindOne(ctx context.Context, filter interface{}, opt *options.FindOneOptions) (models.Groups, error) {
	args := m.Called(ctx, filter, opt)
	return args.Get(0).(models.Groups), args.Error(1)
}

func (m *MockGroupStore) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Groups, error) {
	args := m.Called(ctx, filter, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Groups), args.Error(1)
}

func (m *MockGroupStore) ModifyOne(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error) {
	args := m.Called(ctx, filter, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mongo.UpdateResult), args.Error(1)
}

func (m *MockGroupStore) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func setupTest() (*GroupRepository, *MockGroupStore) {
	mockStore := new(MockGroupStore)
	repo := NewGroupRepositoryWithInterface(mockStore)
	repo.now = func() time.Time { return fixedNow }
	return repo, mockStore
}

func TestGetGroupByID(t *testing.T) {
	groupRepo, mockStore := setupTest()
	ctx := context.Background()
	groupID := primitive.NewObjectID()

	t.Run("Success", func(t *testing.T) {
		expected := models.Groups{ID: groupID, Name: "Lakshmi SHG", CashInHand: decimal.NewFromInt(500)}
		mockStore.On("FindOne", ctx, bson.M{"_id": groupID}, mock.AnythingOfType("*options.FindOneOptions")).Return(expected, nil).Once()

		group, err := groupRepo.GetGroupByID(ctx, groupID)

		require.NoError(t, err)
		assert.Equal(t, "Lakshmi SHG", group.Name)
	})

	t.Run("Not Found", func(t *testing.T) {
		mockStore.On("FindOne", ctx, bson.M{"_id": groupID}, mock.AnythingOfType("*options.FindOneOptions")).
			Return(models.Groups{}, mongo.ErrNoDocuments).Once()

		group, err := groupRepo.GetGroupByID(ctx, groupID)

		assert.Nil(t, group)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
	mockStore.AssertExpectations(t)
}

func TestListGroupIDs(t *testing.T) {
	groupRepo, mockStore := setupTest()
	ctx := context.Background()
	a, b := primitive.NewObjectID(), primitive.NewObjectID()

	mockStore.On("Find", ctx, bson.M{}, mock.Anything).Return([]models.Groups{{ID: a}, {ID: b}}, nil).Once()

	ids, err := groupRepo.ListGroupIDs(ctx)

	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{a, b}, ids)
	mockStore.AssertExpectations(t)
}

func TestApplyBalanceDelta(t *testing.T) {
	ctx := context.Background()
	groupID := primitive.NewObjectID()

	t.Run("debit is guarded by cash in hand", func(t *testing.T) {
		groupRepo, mockStore := setupTest()
		filter := bson.M{"_id": groupID, "cashInHand": bson.M{"$gte": decimal.NewFromInt(300)}}
		update := bson.M{
			"$inc": bson.M{"cashInHand": decimal.NewFromInt(-300)},
			"$set": bson.M{"updatedAt": fixedNow},
		}
		mockStore.On("ModifyOne", ctx, filter, update).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil).Once()

		err := groupRepo.ApplyBalanceDelta(ctx, groupID, models.BalanceDelta{Cash: decimal.NewFromInt(-300)})

		require.NoError(t, err)
		mockStore.AssertExpectations(t)
	})

	t.Run("negative cash allowed skips guard", func(t *testing.T) {
		groupRepo, mockStore := setupTest()
		filter := bson.M{"_id": groupID}
		mockStore.On("ModifyOne", ctx, filter, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 1}, nil).Once()

		err := groupRepo.ApplyBalanceDelta(ctx, groupID, models.BalanceDelta{Cash: decimal.NewFromInt(-300), AllowNegativeCash: true})

		require.NoError(t, err)
		mockStore.AssertExpectations(t)
	})

	t.Run("savings credit member balance", func(t *testing.T) {
		groupRepo, mockStore := setupTest()
		memberID := primitive.NewObjectID()
		amount := decimal.NewFromInt(100)
		update := bson.M{
			"$inc": bson.M{
				"cashInHand":                              amount,
				"totalSavings":                            amount,
				"memberSavingsBalance." + memberID.Hex(): amount,
			},
			"$set": bson.M{"updatedAt": fixedNow},
		}
		mockStore.On("ModifyOne", ctx, bson.M{"_id": groupID}, update).Return(&mongo.UpdateResult{MatchedCount: 1}, nil).Once()

		err := groupRepo.ApplyBalanceDelta(ctx, groupID, models.BalanceDelta{Cash: amount, Savings: amount, MemberID: &memberID})

		require.NoError(t, err)
		mockStore.AssertExpectations(t)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		groupRepo, mockStore := setupTest()
		mockStore.On("ModifyOne", ctx, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 0}, nil).Once()
		mockStore.On("CountDocuments", ctx, bson.M{"_id": groupID}).Return(int64(1), nil).Once()

		err := groupRepo.ApplyBalanceDelta(ctx, groupID, models.BalanceDelta{Cash: decimal.NewFromInt(-5000)})

		assert.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
		mockStore.AssertExpectations(t)
	})

	t.Run("missing group", func(t *testing.T) {
		groupRepo, mockStore := setupTest()
		mockStore.On("ModifyOne", ctx, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 0}, nil).Once()
		mockStore.On("CountDocuments", ctx, bson.M{"_id": groupID}).Return(int64(0), nil).Once()

		err := groupRepo.ApplyBalanceDelta(ctx, groupID, models.BalanceDelta{Cash: decimal.NewFromInt(10)})

		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("database error", func(t *testing.T) {
		groupRepo, mockStore := setupTest()
		mockStore.On("ModifyOne", ctx, mock.Anything, mock.Anything).Return(nil, errors.New("write conflict")).Once()

		err := groupRepo.ApplyBalanceDelta(ctx, groupID, models.BalanceDelta{Cash: decimal.NewFromInt(10)})

		assert.Equal(t, apperrors.KindInfrastructure, apperrors.KindOf(err))
	})
}

func TestSetBalances(t *testing.T) {
	ctx := context.Background()
	groupID := primitive.NewObjectID()
	savings := map[string]decimal.Decimal{"m1": decimal.NewFromInt(40)}

	t.Run("Success", func(t *testing.T) {
		groupRepo, mockStore := setupTest()
		update := bson.M{"$set": bson.M{
			"cashInHand":           decimal.NewFromInt(900),
			"totalSavings":         decimal.NewFromInt(40),
			"memberSavingsBalance": savings,
			"updatedAt":            fixedNow,
		}}
		mockStore.On("ModifyOne", ctx, bson.M{"_id": groupID}, update).Return(&mongo.UpdateResult{MatchedCount: 1}, nil).Once()

		err := groupRepo.SetBalances(ctx, groupID, decimal.NewFromInt(900), decimal.NewFromInt(40), savings)

		require.NoError(t, err)
		mockStore.AssertExpectations(t)
	})

	t.Run("Not Found", func(t *testing.T) {
		groupRepo, mockStore := setupTest()
		mockStore.On("ModifyOne", ctx, bson.M{"_id": groupID}, mock.Anything).Return(&mongo.UpdateResult{}, nil).Once()

		err := groupRepo.SetBalances(ctx, groupID, decimal.Zero, decimal.Zero, nil)

		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestGroupsRepositoryAgainstMockDeployment(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("get group by id", func(mt *mtest.T) {
		repo := NewGroupsRepository(&mongodb.MongoClient{Database: mt.DB})
		groupID := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "shg.groups", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: groupID},
			{Key: "name", Value: "Asha SHG"},
		}))

		group, err := repo.GetGroupByID(context.Background(), groupID)
		require.NoError(mt, err)
		assert.Equal(mt, groupID, group.ID)
		assert.Equal(mt, "Asha SHG", group.Name)
	})

	mt.Run("missing group", func(mt *mtest.T) {
		repo := NewGroupsRepository(&mongodb.MongoClient{Database: mt.DB})
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "shg.groups", mtest.FirstBatch))

		_, err := repo.GetGroupByID(context.Background(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, apperrors.ErrNotFound)
	})

	mt.Run("list group ids", func(mt *mtest.T) {
		repo := NewGroupsRepository(&mongodb.MongoClient{Database: mt.DB})
		first, second := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "shg.groups", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: first}},
			bson.D{{Key: "_id", Value: second}},
		))

		ids, err := repo.ListGroupIDs(context.Background())
		require.NoError(mt, err)
		assert.Equal(mt, []primitive.ObjectID{first, second}, ids)
	})

	mt.Run("command error is infrastructure", func(mt *mtest.T) {
		repo := NewGroupsRepository(&mongodb.MongoClient{Database: mt.DB})
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 11600, Message: "interrupted"}))

		_, err := repo.ListGroupIDs(context.Background())
		assert.Equal(mt, apperrors.KindInfrastructure, apperrors.KindOf(err))
	})
}
