package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/CatalogGo/pkg/breaker"
	"github.com/utafrali/CatalogGo/pkg/database"
	apperrors "github.com/utafrali/CatalogGo/pkg/errors"
	"github.com/utafrali/CatalogGo/services/catalog/internal/repository"
)

// readSnapshot is used for queries with more than one statement so that all
// their row-sets describe the same state.
var readSnapshot = pgx.TxOptions{
	AccessMode: pgx.ReadOnly,
	IsoLevel:   pgx.RepeatableRead,
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Executor implements repository.QueryExecutor using PostgreSQL.
type Executor struct {
	db      database.DBTX
	queries map[string][]statement
	cb      *breaker.Breaker[[]repository.RowSet]
	logger  *slog.Logger
}

// NewExecutor creates a PostgreSQL-backed query executor. cb may be nil, in
// which case calls are never short-circuited.
func NewExecutor(db database.DBTX, cb *breaker.Breaker[[]repository.RowSet], logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		db:      db,
		queries: defaultQueries(),
		cb:      cb,
		logger:  logger,
	}
}

// Execute runs the named query and returns one row-set per statement.
func (e *Executor) Execute(ctx context.Context, queryID string, params map[string]any) ([]repository.RowSet, error) {
	stmts, ok := e.queries[queryID]
	if !ok {
		return nil, apperrors.DataStore(queryID, fmt.Errorf("unknown query %q", queryID), false)
	}

	args := pgx.NamedArgs(params)
	run := func() ([]repository.RowSet, error) {
		return e.run(ctx, queryID, stmts, args)
	}

	start := time.Now()
	var (
		sets []repository.RowSet
		err  error
	)
	if e.cb != nil {
		sets, err = e.cb.Execute(run)
	} else {
		sets, err = run()
	}
	elapsed := time.Since(start)

	if err != nil {
		open := breaker.IsOpen(err)
		outcome := "error"
		if open {
			outcome = "rejected"
		}
		database.ObserveNamedQuery(queryID, outcome, elapsed)
		e.logger.ErrorContext(ctx, "named query failed",
			slog.String("query", queryID),
			slog.String("outcome", outcome),
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.DataStore(queryID, err, open)
	}

	database.ObserveNamedQuery(queryID, "ok", elapsed)
	e.logger.DebugContext(ctx, "named query executed",
		slog.String("query", queryID),
		slog.Int("row_sets", len(sets)),
		slog.Duration("duration", elapsed),
	)
	return sets, nil
}

func (e *Executor) run(ctx context.Context, queryID string, stmts []statement, args pgx.NamedArgs) ([]repository.RowSet, error) {
	if len(stmts) == 1 {
		set, err := collect(ctx, e.db, queryID, stmts[0], args)
		if err != nil {
			return nil, err
		}
		return []repository.RowSet{set}, nil
	}

	tx, err := e.db.BeginTx(ctx, readSnapshot)
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}

	sets := make([]repository.RowSet, 0, len(stmts))
	for _, stmt := range stmts {
		set, err := collect(ctx, tx, queryID, stmt, args)
		if err != nil {
			_ = tx.Rollback(ctx)
			return nil, err
		}
		sets = append(sets, set)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}
	return sets, nil
}

func collect(ctx context.Context, q querier, queryID string, stmt statement, args pgx.NamedArgs) (set repository.RowSet, err error) {
	ctx, end := database.TraceQuery(ctx, queryID, stmt.sql, attribute.String("db.row_set", stmt.name))
	defer func() { end(err) }()

	rows, err := q.Query(ctx, stmt.sql, args)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", queryID, stmt.name, err)
	}
	set, err = pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", queryID, stmt.name, err)
	}
	if set == nil {
		set = repository.RowSet{}
	}
	return set, nil
}
