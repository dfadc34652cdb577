package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/quillio/quill-engine/pkg/logging"
	"github.com/quillio/quill-engine/pkg/sqlguard"
)

// ResultSet is the outcome of running an accepted query.
type ResultSet struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
}

// QueryRunner abstracts the database for the executor, so tests can run
// without Postgres.
type QueryRunner interface {
	RunQuery(ctx context.Context, sql string) (columns []string, rows [][]any, err error)
}

// Executor runs validated queries with a row cap. Aggregate queries are
// exempt from the cap: they return few rows by construction, and capping
// their inputs would silently change the numbers.
type Executor interface {
	Execute(ctx context.Context, verdict *sqlguard.Verdict) (*ResultSet, error)
}

type executor struct {
	runner QueryRunner
	rowCap int
	logger *zap.Logger
}

func NewExecutor(runner QueryRunner, rowCap int, logger *zap.Logger) Executor {
	if rowCap <= 0 {
		rowCap = 100
	}
	return &executor{
		runner: runner,
		rowCap: rowCap,
		logger: logger.Named("executor"),
	}
}

var _ Executor = (*executor)(nil)

func (e *executor) Execute(ctx context.Context, verdict *sqlguard.Verdict) (*ResultSet, error) {
	sql := verdict.SQL
	capped := !sqlguard.IsAggregate(verdict.Stmt)

	// A statement that already limits itself within the cap is trusted
	// as-is; the model expressing the bound is not a truncation.
	if capped && verdict.Stmt.Limit != nil && *verdict.Stmt.Limit <= e.rowCap {
		capped = false
	}

	queryToRun := sql
	if capped {
		// One extra row distinguishes "exactly rowCap rows" from "more
		// rows were cut off".
		queryToRun = fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d", sql, e.rowCap+1)
	}

	columns, rows, err := e.runner.RunQuery(ctx, queryToRun)
	if err != nil {
		e.logger.Error("query execution failed",
			zap.String("query", logging.SanitizeQuery(sql)),
			zap.Error(err))
		return nil, fmt.Errorf("execute query: %w", err)
	}

	truncated := false
	if capped && len(rows) > e.rowCap {
		rows = rows[:e.rowCap]
		truncated = true
	}

	e.logger.Debug("query executed",
		zap.Int("rows", len(rows)),
		zap.Bool("truncated", truncated))

	return &ResultSet{
		Columns:   columns,
		Rows:      rows,
		Truncated: truncated,
	}, nil
}

// PgxRunner runs queries on a pgx pool.
type PgxRunner struct {
	pool *pgxpool.Pool
}

func NewPgxRunner(pool *pgxpool.Pool) *PgxRunner {
	return &PgxRunner{pool: pool}
}

func (r *PgxRunner) RunQuery(ctx context.Context, sql string) ([]string, [][]any, error) {
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = string(fd.Name)
	}

	var resultRows [][]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read row values: %w", err)
		}
		resultRows = append(resultRows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return columns, resultRows, nil
}

var _ QueryRunner = (*PgxRunner)(nil)
