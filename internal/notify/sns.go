package notify

import (
	"context"
	"encoding/json"
	"time"

	"application-board/internal/common/errors"
	"application-board/internal/common/logger"
)

// Publisher is satisfied by aws.SNSClient.
type Publisher interface {
	PublishMessage(ctx context.Context, subject, message string, attrs map[string]string) (string, error)
}

// SNSNotifier pushes a copy of each notification to an SNS topic for other devices.
// Delivery is best effort.
type SNSNotifier struct {
	publisher Publisher
	userID    string
	timeout   time.Duration
	logger    logger.Logger
}

func NewSNSNotifier(publisher Publisher, userID string, timeout time.Duration, log logger.Logger) *SNSNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SNSNotifier{
		publisher: publisher,
		userID:    userID,
		timeout:   timeout,
		logger:    log.WithFields(map[string]interface{}{"component": "sns-notifier"}),
	}
}

func (s *SNSNotifier) Notify(ctx context.Context, n Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		s.logger.Error("failed to encode notification", map[string]interface{}{"error": err})
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	msgID, err := s.publisher.PublishMessage(ctx, "board-"+string(n.Kind), string(payload), map[string]string{
		"userId": s.userID,
		"kind":   string(n.Kind),
	})
	if err != nil {
		wrapped := errors.NewNotificationSendFailedError("sns", err)
		s.logger.Warn("notification delivery failed", map[string]interface{}{
			"notificationId": n.ID,
			"errorCode":      string(wrapped.Code),
			"error":          err,
		})
		return
	}
	s.logger.Debug("notification published", map[string]interface{}{
		"notificationId": n.ID,
		"messageId":      msgID,
	})
}
