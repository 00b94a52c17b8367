package middleware

import (
	"net/http"

	"shg-finance/internal/pkg/apperrors"
	"shg-finance/internal/pkg/auth"
	"shg-finance/internal/pkg/consts"
	"shg-finance/internal/pkg/logger"
	"shg-finance/internal/pkg/models"

	"github.com/gin-gonic/gin"
)

type TokenVerifier interface {
	Verify(tokenString string) (models.Principal, error)
}

// Authenticate resolves the bearer token into a Principal and stores it on the gin context.
func Authenticate(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err == nil {
			var principal models.Principal
			if principal, err = verifier.Verify(token); err == nil {
				c.Set(consts.PrincipalContextKey, principal)
				c.Next()
				return
			}
		}

		logger.CtxDebug(c.Request.Context(), "Request rejected: "+err.Error())
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
			Success: false,
			Code:    string(apperrors.KindUnauthenticated),
			Message: err.Error(),
		})
	}
}

// PrincipalFrom returns the caller stored by Authenticate.
func PrincipalFrom(c *gin.Context) (models.Principal, bool) {
	value, ok := c.Get(consts.PrincipalContextKey)
	if !ok {
		return models.Principal{}, false
	}
	principal, ok := value.(models.Principal)
	return principal, ok
}
