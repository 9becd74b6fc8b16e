package logging

import (
	"context"
	"log/slog"

	"narrativ/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldStage is the standardized structured logging key for workflow phase names.
	FieldStage = "stage"
	// FieldTopic is the standardized structured logging key for the story topic.
	FieldTopic = "topic"
	// FieldBoardID is the standardized structured logging key for board identifiers.
	FieldBoardID = "board_id"
	// FieldBoardType is the standardized structured logging key for board collections (research, images).
	FieldBoardType = "board_type"
	// FieldProvider is the standardized structured logging key for LLM and image providers.
	FieldProvider = "provider"
	// FieldSlideNumber is the standardized structured logging key for 1-based slide numbers.
	FieldSlideNumber = "slide_number"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a warning or error for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if topic, ok := services.TopicFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTopic, topic))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
