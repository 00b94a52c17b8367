package handlers

import (
	"net/http"

	"shg-finance/internal/pkg/apperrors"
	"shg-finance/internal/pkg/models"
	storemodels "shg-finance/internal/pkg/store/models"
	"shg-finance/internal/service/interfaces"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type LoanHandler struct {
	service interfaces.LoanServiceInterface
}

func NewLoanHandler(service interfaces.LoanServiceInterface) *LoanHandler {
	return &LoanHandler{service: service}
}

func (h *LoanHandler) RequestLoan(c *gin.Context) {
	actor, err := principal(c)
	if err != nil {
		respondError(c, err)
		return
	}
	groupID, err := objectIDParam(c, "groupId")
	if err != nil {
		respondError(c, err)
		return
	}
	var cmd models.RequestLoanCommand
	if err := bindJSON(c, &cmd, false); err != nil {
		respondError(c, err)
		return
	}
	cmd.GroupID = groupID
	cmd.Actor = actor

	loan, err := h.service.RequestLoan(c.Request.Context(), &cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, models.NewLoanResponse(loan))
}

func (h *LoanHandler) ListLoans(c *gin.Context) {
	actor, err := principal(c)
	if err != nil {
		respondError(c, err)
		return
	}
	groupID, err := objectIDParam(c, "groupId")
	if err != nil {
		respondError(c, err)
		return
	}
	var memberID *primitive.ObjectID
	if raw := c.Query("memberId"); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			respondError(c, apperrors.Validation("memberId must be a valid id"))
			return
		}
		memberID = &id
	}

	loans, err := h.service.ListLoans(c.Request.Context(), actor, groupID, c.Query("status"), memberID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, models.NewLoanResponses(loans))
}

func (h *LoanHandler) GetLoanSummary(c *gin.Context) {
	actor, err := principal(c)
	if err != nil {
		respondError(c, err)
		return
	}
	groupID, err := objectIDParam(c, "groupId")
	if err != nil {
		respondError(c, err)
		return
	}

	summary, err := h.service.GetLoanSummary(c.Request.Context(), actor, groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, summary)
}

func (h *LoanHandler) GetLoan(c *gin.Context) {
	actor, err := principal(c)
	if err != nil {
		respondError(c, err)
		return
	}
	loanID, err := objectIDParam(c, "loanId")
	if err != nil {
		respondError(c, err)
		return
	}

	loan, err := h.service.GetLoan(c.Request.Context(), actor, loanID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, models.NewLoanResponse(loan))
}

func (h *LoanHandler) ApproveLoan(c *gin.Context) {
	var cmd models.ApproveLoanCommand
	h.transition(c, &cmd, true, func(loanID primitive.ObjectID, actor models.Principal) (*storemodels.Loans, error) {
		cmd.LoanID, cmd.Actor = loanID, actor
		return h.service.ApproveLoan(c.Request.Context(), &cmd)
	})
}

func (h *LoanHandler) RejectLoan(c *gin.Context) {
	var cmd models.RejectLoanCommand
	h.transition(c, &cmd, true, func(loanID primitive.ObjectID, actor models.Principal) (*storemodels.Loans, error) {
		cmd.LoanID, cmd.Actor = loanID, actor
		return h.service.RejectLoan(c.Request.Context(), &cmd)
	})
}

func (h *LoanHandler) DisburseLoan(c *gin.Context) {
	var cmd models.DisburseLoanCommand
	h.transition(c, &cmd, true, func(loanID primitive.ObjectID, actor models.Principal) (*storemodels.Loans, error) {
		cmd.LoanID, cmd.Actor = loanID, actor
		return h.service.DisburseLoan(c.Request.Context(), &cmd)
	})
}

func (h *LoanHandler) RepayLoan(c *gin.Context) {
	var cmd models.RepayLoanCommand
	h.transition(c, &cmd, false, func(loanID primitive.ObjectID, actor models.Principal) (*storemodels.Loans, error) {
		cmd.LoanID, cmd.Actor = loanID, actor
		return h.service.RepayLoan(c.Request.Context(), &cmd)
	})
}

// transition binds body, resolves the caller and loan id, then runs apply.
func (h *LoanHandler) transition(
	c *gin.Context,
	body interface{},
	optionalBody bool,
	apply func(loanID primitive.ObjectID, actor models.Principal) (*storemodels.Loans, error),
) {
	actor, err := principal(c)
	if err != nil {
		respondError(c, err)
		return
	}
	loanID, err := objectIDParam(c, "loanId")
	if err != nil {
		respondError(c, err)
		return
	}
	if err := bindJSON(c, body, optionalBody); err != nil {
		respondError(c, err)
		return
	}

	loan, err := apply(loanID, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, models.NewLoanResponse(loan))
}
