package models

import (
	"shg-finance/internal/pkg/consts"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Principal is the authenticated caller resolved from the bearer token.
type Principal struct {
	UserID     primitive.ObjectID
	GlobalRole consts.GlobalRole
}

// Elevated reports whether the caller's platform role overrides group roles.
func (p Principal) Elevated() bool {
	return p.GlobalRole == consts.GlobalRoleAdmin || p.GlobalRole == consts.GlobalRoleFieldOfficer
}
