package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/portal-session/internal/events"
)

// StartSessionAudit registers handlers that log every session change.
func StartSessionAudit(dispatcher events.Dispatcher, logger *zap.Logger) {
	if dispatcher == nil || logger == nil {
		return
	}
	for _, t := range events.Types {
		dispatcher.Subscribe(t, func(_ context.Context, event events.Event) error {
			fields := []zap.Field{
				zap.String("event_id", event.ID),
				zap.String("role", string(event.Role)),
				zap.Time("at", event.Timestamp),
			}
			if event.AccountID != 0 {
				fields = append(fields, zap.Int64("account_id", event.AccountID))
			}
			if event.Code != 0 {
				fields = append(fields, zap.String("code", event.Code.String()))
			}
			logger.Info(string(event.Type), fields...)
			return nil
		})
	}
}
