package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"shg-finance/internal/app/middleware"
	"shg-finance/internal/pkg/apperrors"
	"shg-finance/internal/pkg/logger"
	"shg-finance/internal/pkg/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperrors.KindPermission:
		return http.StatusForbidden
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindInvalidState,
		apperrors.KindAlreadyPaid,
		apperrors.KindNoPendingInstallment,
		apperrors.KindInsufficientFunds,
		apperrors.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := StatusFor(err)
	message := err.Error()
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status == http.StatusInternalServerError {
		logger.CtxError(c.Request.Context(), "Request failed", err,
			slog.String("route", c.FullPath()))
		message = "internal server error"
	}
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Success: false,
		Code:    string(apperrors.KindOf(err)),
		Message: message,
	})
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func objectIDParam(c *gin.Context, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		return primitive.NilObjectID, apperrors.Validation("%s must be a valid id", name)
	}
	return id, nil
}

// bindJSON decodes the request body into dst. Optional bodies may be empty.
func bindJSON(c *gin.Context, dst interface{}, optional bool) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.Validation("invalid request body: %v", err)
	}
	return nil
}

func principal(c *gin.Context) (models.Principal, error) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return models.Principal{}, apperrors.Unauthenticated("authentication required")
	}
	return p, nil
}
