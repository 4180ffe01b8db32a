package database

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/CatalogGo/pkg/database"

// maxStatementAttr caps the SQL text copied onto spans and slow-query logs.
const maxStatementAttr = 2048

type slowQueryPolicy struct {
	threshold time.Duration
	logger    *slog.Logger
}

var slowQuery atomic.Pointer[slowQueryPolicy]

// SetSlowQueryLogging makes TraceQuery warn about statements slower than
// threshold. A zero threshold or nil logger turns it off.
func SetSlowQueryLogging(threshold time.Duration, logger *slog.Logger) {
	if threshold <= 0 || logger == nil {
		slowQuery.Store(nil)
		return
	}
	slowQuery.Store(&slowQueryPolicy{threshold: threshold, logger: logger})
}

func truncateStatement(stmt string) string {
	if len(stmt) <= maxStatementAttr {
		return stmt
	}
	return stmt[:maxStatementAttr] + "..."
}

// TraceQuery opens a client span named after the query id. Call the returned
// func exactly once with the statement's outcome:
//
//	ctx, end := database.TraceQuery(ctx, "catalog.product.get", stmt)
//	defer func() { end(err) }()
func TraceQuery(ctx context.Context, operation, statement string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	statement = truncateStatement(statement)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
		trace.WithAttributes(attrs...),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		policy := slowQuery.Load()
		if policy == nil {
			return
		}
		elapsed := time.Since(start)
		if elapsed < policy.threshold {
			return
		}
		fields := []slog.Attr{
			slog.String("operation", operation),
			slog.Duration("duration", elapsed),
			slog.String("statement", statement),
		}
		for _, a := range attrs {
			fields = append(fields, slog.String(string(a.Key), a.Value.Emit()))
		}
		if err != nil {
			fields = append(fields, slog.String("error", err.Error()))
		}
		policy.logger.LogAttrs(ctx, slog.LevelWarn, "slow query detected", fields...)
	}
}
