package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"shg-finance/internal/pkg/log_messages"
	"shg-finance/internal/pkg/logger"
	"shg-finance/internal/pkg/models"
	"shg-finance/internal/service/interfaces"
)

const publishTimeout = 5 * time.Second

// NotificationService publishes loan lifecycle events to the notification topic.
type NotificationService struct {
	publisher interfaces.RuntimePubSubPublisher
	topic     string
}

var _ interfaces.LoanNotifierInterface = (*NotificationService)(nil)

// NewNotificationService returns a notifier. A nil publisher or empty topic turns Notify into a no-op.
func NewNotificationService(publisher interfaces.RuntimePubSubPublisher, topic string) *NotificationService {
	return &NotificationService{publisher: publisher, topic: topic}
}

// Notify publishes event and waits for the ack. The caller's operation has already committed,
// so failures are only logged.
func (s *NotificationService) Notify(ctx context.Context, event models.LoanEvent) {
	if s.publisher == nil || s.topic == "" {
		return
	}
	if event.TraceID == "" {
		event.TraceID = logger.GetTraceID(ctx)
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.CtxError(ctx, log_messages.ErrorMarshallingJSON, err)
		return
	}
	attributes := map[string]string{
		"event":   string(event.Event),
		"loanId":  event.LoanID,
		"groupId": event.GroupID,
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(publishCtx, s.topic, data, attributes); err != nil {
		logger.CtxError(ctx, log_messages.ErrorPublishingLoanEvent, err,
			slog.String("event", string(event.Event)),
			slog.String("loan_id", event.LoanID),
		)
		return
	}
	logger.CtxDebug(ctx, "Loan event published", slog.String("event", string(event.Event)))
}
