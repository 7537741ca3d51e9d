package websocket

import (
	"go.uber.org/zap"

	"convo-relay/pkg/logger"
)

// EventLogger provides structured logging for WebSocket events
type EventLogger struct {
	logger *zap.Logger
}

func NewEventLogger(l *logger.Logger) *EventLogger {
	base := zap.L()
	if l != nil {
		base = l.Logger
	}
	return &EventLogger{logger: base.With(zap.String("component", "websocket"))}
}

func (l *EventLogger) fields(event, userID, clientID string, extra []zap.Field) []zap.Field {
	return append([]zap.Field{
		zap.String("event", event),
		zap.String("user_id", userID),
		zap.String("client_id", clientID),
	}, extra...)
}

func (l *EventLogger) Info(event, userID, clientID string, fields ...zap.Field) {
	l.logger.Info("websocket_event", l.fields(event, userID, clientID, fields)...)
}

func (l *EventLogger) Warn(event, userID, clientID string, fields ...zap.Field) {
	l.logger.Warn("websocket_warning", l.fields(event, userID, clientID, fields)...)
}

func (l *EventLogger) Error(event, userID, clientID string, err error, fields ...zap.Field) {
	l.logger.Error("websocket_error", l.fields(event, userID, clientID, append(fields, zap.Error(err)))...)
}
