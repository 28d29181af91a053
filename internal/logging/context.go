package logging

import (
	"context"
	"log/slog"

	"sitekeeper/internal/services"
)

// Standardized structured logging keys.
const (
	FieldComponent     = "component"
	FieldSiteID        = "site_id"
	FieldOperation     = "operation"
	FieldCorrelationID = "correlation_id"
	FieldEventType     = "event_type"
	FieldErrorHint     = "error_hint"
	FieldErrorKind     = "error_kind"
	FieldImpact        = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.SiteIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldSiteID, id))
	}
	if op, ok := services.OperationFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldOperation, op))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}
