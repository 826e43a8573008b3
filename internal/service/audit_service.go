package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/banking-auth/internal/events"
)

// AuditService records authentication events to the audit log.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{dispatcher: dispatcher, logger: logger.Named("audit")}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventUserRegistered, a.handleUserRegistered)
	a.dispatcher.Subscribe(events.EventTokenIssued, a.handleTokenIssued)
}

func (a *AuditService) handleUserRegistered(_ context.Context, event events.Event) error {
	a.logger.Info("UserRegistered",
		zap.String("event_id", event.ID),
		zap.String("subject", event.Subject),
		zap.Int64("user_id", event.UserID),
		zap.Any("payload", event.Payload))
	return nil
}

func (a *AuditService) handleTokenIssued(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("subject", event.Subject),
		zap.Int64("user_id", event.UserID),
	}
	if p, ok := event.Payload.(events.TokenIssuedPayload); ok {
		fields = append(fields,
			zap.String("algorithm", p.Algorithm),
			zap.Bool("post_quantum", p.PostQuantum),
			zap.Time("expires_at", p.ExpiresAt),
			zap.String("reason", p.Reason))
	}
	a.logger.Info("TokenIssued", fields...)
	return nil
}
