package access

import (
	"context"
	"testing"

	"shg-finance/internal/pkg/apperrors"
	"shg-finance/internal/pkg/consts"
	"shg-finance/internal/pkg/models"
	storemodels "shg-finance/internal/pkg/store/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MockGroupRepo struct {
	mock.Mock
}

func (m *MockGroupRepo) GetGroupByID(ctx context.Context, groupID primitive.ObjectID) (*storemodels.Groups, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storemodels.Groups), args.Error(1)
}

func (m *MockGroupRepo) ListGroupIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	args := m.Called(ctx)
	return args.Get(0).([]primitive.ObjectID), args.Error(1)
}

func (m *MockGroupRepo) ApplyBalanceDelta(ctx context.Context, groupID primitive.ObjectID, delta storemodels.BalanceDelta) error {
	return m.Called(ctx, groupID, delta).Error(0)
}

func (m *MockGroupRepo) SetBalances(
	ctx context.Context,
	groupID primitive.ObjectID,
	cashInHand decimal.Decimal,
	totalSavings decimal.Decimal,
	memberSavings map[string]decimal.Decimal,
) error {
	return m.Called(ctx, groupID, cashInHand, totalSavings, memberSavings).Error(0)
}

type fixture struct {
	group     *storemodels.Groups
	president primitive.ObjectID
	member    primitive.ObjectID
	pending   primitive.ObjectID
	outsider  primitive.ObjectID
}

func newFixture() fixture {
	f := fixture{
		president: primitive.NewObjectID(),
		member:    primitive.NewObjectID(),
		pending:   primitive.NewObjectID(),
		outsider:  primitive.NewObjectID(),
	}
	f.group = &storemodels.Groups{
		ID:   primitive.NewObjectID(),
		Name: "Sakhi SHG",
		Members: []storemodels.GroupMember{
			{UserID: f.president, Role: storemodels.RolePresident, Status: storemodels.MemberActive},
			{UserID: f.member, Role: storemodels.RoleMember, Status: storemodels.MemberActive},
			{UserID: f.pending, Role: storemodels.RoleTreasurer, Status: storemodels.MemberPending},
		},
	}
	return f
}

func TestAuthorize(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name      string
		principal models.Principal
		roles     []storemodels.MemberRole
		wantErr   bool
	}{
		{"active member without role requirement", models.Principal{UserID: f.member}, nil, false},
		{"president holds officer role", models.Principal{UserID: f.president}, OfficerRoles, false},
		{"member lacks officer role", models.Principal{UserID: f.member}, OfficerRoles, true},
		{"pending treasurer is rejected", models.Principal{UserID: f.pending}, OfficerRoles, true},
		{"outsider is rejected", models.Principal{UserID: f.outsider}, nil, true},
		{
			"field officer overrides group role",
			models.Principal{UserID: f.member, GlobalRole: consts.GlobalRoleFieldOfficer},
			OfficerRoles, false,
		},
		{
			"admin still needs membership",
			models.Principal{UserID: f.outsider, GlobalRole: consts.GlobalRoleAdmin},
			OfficerRoles, true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(f.group, tt.principal, tt.roles...)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrPermission)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	t.Run("returns group for officer", func(t *testing.T) {
		repo := new(MockGroupRepo)
		repo.On("GetGroupByID", ctx, f.group.ID).Return(f.group, nil)

		group, err := NewAccessService(repo).RequireRole(ctx, models.Principal{UserID: f.president}, f.group.ID, OfficerRoles...)
		require.NoError(t, err)
		assert.Same(t, f.group, group)
		repo.AssertExpectations(t)
	})

	t.Run("group lookup failure propagates", func(t *testing.T) {
		repo := new(MockGroupRepo)
		repo.On("GetGroupByID", ctx, f.group.ID).Return(nil, apperrors.NotFound("group not found"))

		group, err := NewAccessService(repo).RequireMember(ctx, models.Principal{UserID: f.member}, f.group.ID)
		assert.Nil(t, group)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("permission denied", func(t *testing.T) {
		repo := new(MockGroupRepo)
		repo.On("GetGroupByID", ctx, f.group.ID).Return(f.group, nil)

		_, err := NewAccessService(repo).RequireRole(ctx, models.Principal{UserID: f.member}, f.group.ID, OfficerRoles...)
		assert.ErrorIs(t, err, apperrors.ErrPermission)
	})
}

func TestIsActiveMember(t *testing.T) {
	f := newFixture()
	assert.True(t, IsActiveMember(f.group, f.member))
	assert.False(t, IsActiveMember(f.group, f.pending))
	assert.False(t, IsActiveMember(f.group, f.outsider))
}
