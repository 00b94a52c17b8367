package access

import (
	"context"
	"slices"

	"shg-finance/internal/pkg/apperrors"
	"shg-finance/internal/pkg/models"
	storemodels "shg-finance/internal/pkg/store/models"
	"shg-finance/internal/service/interfaces"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OfficerRoles may approve, reject and disburse loans and post savings for other members.
var OfficerRoles = []storemodels.MemberRole{storemodels.RolePresident, storemodels.RoleTreasurer}

type AccessService struct {
	groups interfaces.GroupRepositoryInterface
}

var _ interfaces.AccessCheckerInterface = (*AccessService)(nil)

func NewAccessService(groups interfaces.GroupRepositoryInterface) *AccessService {
	return &AccessService{groups: groups}
}

// RequireMember loads the group and checks the caller is an active member of it.
func (s *AccessService) RequireMember(
	ctx context.Context,
	principal models.Principal,
	groupID primitive.ObjectID,
) (*storemodels.Groups, error) {
	return s.RequireRole(ctx, principal, groupID)
}

// RequireRole loads the group and checks the caller is an active member holding one of roles.
// With no roles any active member passes.
func (s *AccessService) RequireRole(
	ctx context.Context,
	principal models.Principal,
	groupID primitive.ObjectID,
	roles ...storemodels.MemberRole,
) (*storemodels.Groups, error) {
	group, err := s.groups.GetGroupByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(group, principal, roles...); err != nil {
		return nil, err
	}
	return group, nil
}

// Authorize is the membership and role rule. ADMIN and FIELD_OFFICER satisfy any role requirement
// but must still be active members of the group.
func Authorize(group *storemodels.Groups, principal models.Principal, roles ...storemodels.MemberRole) error {
	member, ok := group.Member(principal.UserID)
	if !ok {
		return apperrors.Permission("not a member of this group")
	}
	if member.Status != storemodels.MemberActive {
		return apperrors.Permission("membership is %s, not ACTIVE", member.Status)
	}
	if len(roles) == 0 || principal.Elevated() || slices.Contains(roles, member.Role) {
		return nil
	}
	return apperrors.Permission("requires one of the roles %v", roles)
}

func IsActiveMember(group *storemodels.Groups, userID primitive.ObjectID) bool {
	member, ok := group.Member(userID)
	return ok && member.Status == storemodels.MemberActive
}
