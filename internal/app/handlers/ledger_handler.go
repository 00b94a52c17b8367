package handlers

import (
	"net/http"

	"shg-finance/internal/pkg/apperrors"
	"shg-finance/internal/pkg/models"
	"shg-finance/internal/service/interfaces"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// nextCursorHeader carries the before cursor of the following page when a listing was cut short.
const nextCursorHeader = "X-Next-Cursor"

// LedgerHandler serves group transactions, savings and balances.
type LedgerHandler struct {
	service interfaces.TransactionServiceInterface
}

func NewLedgerHandler(service interfaces.TransactionServiceInterface) *LedgerHandler {
	return &LedgerHandler{service: service}
}

func groupRequest(c *gin.Context) (models.Principal, primitive.ObjectID, bool) {
	actor, err := principal(c)
	if err != nil {
		respondError(c, err)
		return models.Principal{}, primitive.NilObjectID, false
	}
	groupID, err := objectIDParam(c, "groupId")
	if err != nil {
		respondError(c, err)
		return models.Principal{}, primitive.NilObjectID, false
	}
	return actor, groupID, true
}

func (h *LedgerHandler) ListTransactions(c *gin.Context) {
	actor, groupID, ok := groupRequest(c)
	if !ok {
		return
	}
	var query models.TransactionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, apperrors.Validation("invalid query: %v", err))
		return
	}
	page, err := h.service.ListTransactions(c.Request.Context(), actor, groupID, query)
	if err != nil {
		respondError(c, err)
		return
	}
	if page.NextCursor != "" {
		c.Header(nextCursorHeader, page.NextCursor)
	}
	respondOK(c, http.StatusOK, page.Transactions)
}

func (h *LedgerHandler) CreateTransaction(c *gin.Context) {
	actor, groupID, ok := groupRequest(c)
	if !ok {
		return
	}
	var cmd models.CreateTransactionCommand
	if err := bindJSON(c, &cmd, false); err != nil {
		respondError(c, err)
		return
	}
	cmd.GroupID, cmd.Actor = groupID, actor

	txn, err := h.service.CreateTransaction(c.Request.Context(), &cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, txn)
}

func (h *LedgerHandler) GetSavings(c *gin.Context) {
	actor, groupID, ok := groupRequest(c)
	if !ok {
		return
	}
	savings, err := h.service.GetSavings(c.Request.Context(), actor, groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, savings)
}

func (h *LedgerHandler) AddSavings(c *gin.Context) {
	actor, groupID, ok := groupRequest(c)
	if !ok {
		return
	}
	var cmd models.AddSavingsCommand
	if err := bindJSON(c, &cmd, false); err != nil {
		respondError(c, err)
		return
	}
	cmd.GroupID, cmd.Actor = groupID, actor

	txn, err := h.service.AddSavings(c.Request.Context(), &cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, txn)
}

func (h *LedgerHandler) GetBalances(c *gin.Context) {
	actor, groupID, ok := groupRequest(c)
	if !ok {
		return
	}
	balances, err := h.service.GetBalances(c.Request.Context(), actor, groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, balances)
}
