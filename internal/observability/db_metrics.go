package observability

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
)

// ObserveDB wraps one logical store operation in a span and, when p is
// non-nil, records its latency and error class. A missing row is an answer,
// so it is timed as "not_found" and neither counted nor marked on the span.
func (p *Prom) ObserveDB(ctx context.Context, op string, fn func() error) error {
	_, end := StartSpan(ctx, "db."+op,
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", op),
	)

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	notFound := errors.Is(err, pgx.ErrNoRows)
	if notFound {
		end(nil)
	} else {
		end(err)
	}

	if p == nil {
		return err
	}

	status := "ok"
	switch {
	case notFound:
		status = "not_found"
	case err != nil:
		status = "error"
		p.DbErrorsTotal.WithLabelValues(op, ClassifyDBErr(err)).Inc()
	}
	p.DbQueryDuration.WithLabelValues(op, status).Observe(elapsed.Seconds())
	return err
}

var pgClasses = map[string]string{
	"23505": "unique_violation",
	"23503": "foreign_key_violation",
	"23514": "check_violation",
	"40001": "serialization_failure",
	"40P01": "deadlock",
	"57014": "query_canceled",
}

// ClassifyDBErr buckets an error into a low-cardinality metric label.
func ClassifyDBErr(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if class, ok := pgClasses[pgErr.Code]; ok {
			return class
		}
		return "pg_" + pgErr.Code
	}

	var netErr *net.OpError
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded), pgconn.Timeout(err):
		return "timeout"
	case errors.As(err, &netErr):
		return "connection"
	}
	return "unknown"
}
