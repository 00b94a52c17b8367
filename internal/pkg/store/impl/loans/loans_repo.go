package loans

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

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type LoanRepository struct {
	repo interfaces.LoanStoreInterface
}

var _ interfaces.LoanRepositoryInterface = (*LoanRepository)(nil)

func NewLoansRepository(client *mongodb.MongoClient) *LoanRepository {
	collection := client.Database.Collection(consts.LoanCollection)
	repo := repository.NewMongoRepository[models.Loans](collection)
	return &LoanRepository{repo: repo}
}

func NewLoanRepositoryWithInterface(repo interfaces.LoanStoreInterface) *LoanRepository {
	return &LoanRepository{repo: repo}
}

func (lr *LoanRepository) CreateLoan(ctx context.Context, loan *models.Loans) error {
	result, err := lr.repo.Create(ctx, loan)
	if err != nil {
		logger.CtxError(ctx, log_messages.ErrorCreatingLoan, err, slog.String("group_id", loan.GroupID.Hex()))
		return apperrors.Infrastructure(err, "create loan")
	}

	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		loan.ID = id
	}
	return nil
}

func (lr *LoanRepository) GetLoanByID(ctx context.Context, loanID primitive.ObjectID) (*models.Loans, error) {
	loan, err := lr.repo.FindOne(ctx, bson.M{"_id": loanID}, options.FindOne())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			logger.CtxWarn(ctx, log_messages.LoanNotFound, slog.String("loan_id", loanID.Hex()))
			return nil, apperrors.NotFound("loan %s not found", loanID.Hex())
		}
		logger.CtxError(ctx, log_messages.ErrorFindingLoan, err, slog.String("loan_id", loanID.Hex()))
		return nil, apperrors.Infrastructure(err, "find loan %s", loanID.Hex())
	}

	return &loan, nil
}

func (lr *LoanRepository) ListLoans(ctx context.Context, filter models.LoanFilter) ([]models.Loans, error) {
	query := bson.M{"groupId": filter.GroupID}
	if filter.Status != nil {
		query["status"] = *filter.Status
	}
	if filter.BorrowerID != nil {
		query["borrowerId"] = *filter.BorrowerID
	}

	loans, err := lr.repo.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		logger.CtxError(ctx, log_messages.ErrorListingLoans, err, slog.String("group_id", filter.GroupID.Hex()))
		return nil, apperrors.Infrastructure(err, "list loans")
	}

	logger.CtxDebug(ctx, "Fetched loans for group", slog.String("group_id", filter.GroupID.Hex()), slog.Int("count", len(loans)))
	return loans, nil
}

func (lr *LoanRepository) SaveLoan(ctx context.Context, loan *models.Loans) error {
	filter := bson.M{"_id": loan.ID, "version": loan.Version}
	update := bson.M{
		"$set": bson.M{
			"approvedAmount":  loan.ApprovedAmount,
			"disbursedAmount": loan.DisbursedAmount,
			"interestRate":    loan.InterestRate,
			"tenureMonths":    loan.TenureMonths,
			"emiAmount":       loan.EMIAmount,
			"status":          loan.Status,
			"repayments":      loan.Repayments,
			"approvedBy":      loan.ApprovedBy,
			"approvalDate":    loan.ApprovalDate,
			"disbursedBy":     loan.DisbursedBy,
			"disbursalDate":   loan.DisbursalDate,
			"rejectedBy":      loan.RejectedBy,
			"rejectionDate":   loan.RejectionDate,
			"rejectionReason": loan.RejectionReason,
			"completedAt":     loan.CompletedAt,
			"updatedAt":       loan.UpdatedAt,
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := lr.repo.ModifyOne(ctx, filter, update)
	if err != nil {
		logger.CtxError(ctx, log_messages.ErrorUpdatingLoan, err, slog.String("loan_id", loan.ID.Hex()))
		return apperrors.Infrastructure(err, "update loan %s", loan.ID.Hex())
	}
	if result.MatchedCount == 0 {
		logger.CtxWarn(ctx, log_messages.LoanVersionConflict,
			slog.String("loan_id", loan.ID.Hex()),
			slog.Int64("version", loan.Version),
		)
		return apperrors.Conflict("loan %s was modified by another request", loan.ID.Hex())
	}

	loan.Version++
	return nil
}

func (lr *LoanRepository) SummarizeLoans(ctx context.Context, groupID primitive.ObjectID) ([]models.LoanStatusTotal, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"groupId": groupID}}},
		{{Key: "$group", Value: bson.M{
			"_id":       "$status",
			"count":     bson.M{"$sum": 1},
			"requested": bson.M{"$sum": "$requestedAmount"},
			"approved":  bson.M{"$sum": "$approvedAmount"},
			"disbursed": bson.M{"$sum": "$disbursedAmount"},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	var totals []models.LoanStatusTotal
	if err := lr.repo.AggregateAll(ctx, pipeline, &totals); err != nil {
		logger.CtxError(ctx, log_messages.ErrorAggregatingLoans, err, slog.String("group_id", groupID.Hex()))
		return nil, apperrors.Infrastructure(err, "summarize loans")
	}
	return totals, nil
}

// MarkOverdueInstallments flips PENDING installments due before asOf to OVERDUE on the group's disbursed loans.
// It returns the number of loans touched.
func (lr *LoanRepository) MarkOverdueInstallments(ctx context.Context, groupID primitive.ObjectID, asOf time.Time) (int64, error) {
	filter := bson.M{
		"groupId": groupID,
		"status":  models.LoanStatusDisbursed,
		"repayments": bson.M{"$elemMatch": bson.M{
			"status":  models.InstallmentPending,
			"dueDate": bson.M{"$lt": asOf},
		}},
	}
	update := bson.M{
		"$set": bson.M{
			"repayments.$[due].status": models.InstallmentOverdue,
			"updatedAt":                asOf,
		},
		"$inc": bson.M{"version": 1},
	}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{
			"due.status":  models.InstallmentPending,
			"due.dueDate": bson.M{"$lt": asOf},
		}},
	})

	result, err := lr.repo.Update(ctx, filter, update, opts)
	if err != nil {
		logger.CtxError(ctx, log_messages.ErrorUpdatingLoan, err, slog.String("group_id", groupID.Hex()))
		return 0, apperrors.Infrastructure(err, "mark overdue installments")
	}
	return result.ModifiedCount, nil
}
