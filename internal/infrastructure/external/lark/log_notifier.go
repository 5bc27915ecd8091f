package lark

import (
	"context"

	"go.uber.org/zap"

	"github.com/garyjia/incident-intake/internal/domain/entity"
)

// LogNotifier stands in for the messenger when Lark is disabled; every
// notification is written to the log and counted as delivered.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that only logs
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, recipient *entity.User, n *entity.Notification) error {
	l.logger.Info("Notification",
		zap.String("notification_id", n.ID),
		zap.String("recipient", recipient.ID),
		zap.String("type", n.TypeCode),
		zap.String("title", n.Title),
		zap.String("message", n.Message))
	return nil
}
