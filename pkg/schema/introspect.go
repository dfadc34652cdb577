package schema

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Introspector reads table structure from a live database.
type Introspector interface {
	// Columns returns the columns of one table in ordinal order. An empty
	// result means the table does not exist.
	Columns(ctx context.Context, table string) ([]Column, error)
	// ForeignKeys returns the foreign keys of every listed table, keyed by
	// source table name.
	ForeignKeys(ctx context.Context, tables []string) (map[string][]ForeignKey, error)
}

// PostgresIntrospector discovers schema through information_schema, the same
// catalog views psql's \d uses.
type PostgresIntrospector struct {
	pool *pgxpool.Pool
}

func NewPostgresIntrospector(pool *pgxpool.Pool) *PostgresIntrospector {
	return &PostgresIntrospector{pool: pool}
}

func (p *PostgresIntrospector) Columns(ctx context.Context, table string) ([]Column, error) {
	const query = `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES' AS is_nullable,
			COALESCE(pk.is_pk, false) AS is_primary_key
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT a.attname AS column_name, true AS is_pk
			FROM pg_index ix
			JOIN pg_class t ON t.oid = ix.indrelid
			JOIN pg_namespace n ON n.oid = t.relnamespace
			JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
			WHERE ix.indisprimary = true
			  AND n.nspname = 'public'
			  AND t.relname = $1
		) pk ON c.column_name = pk.column_name
		WHERE c.table_schema = 'public' AND c.table_name = $1
		ORDER BY c.ordinal_position
	`

	rows, err := p.pool.Query(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("query columns for %s: %w", table, err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.DataType, &c.IsNullable, &c.IsPrimary); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	return columns, nil
}

func (p *PostgresIntrospector) ForeignKeys(ctx context.Context, tables []string) (map[string][]ForeignKey, error) {
	const query = `
		SELECT
			kcu.table_name AS source_table,
			kcu.column_name AS source_column,
			ccu.table_name AS target_table,
			ccu.column_name AS target_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name
			AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = 'public'
		  AND kcu.table_name = ANY($1)
	`

	rows, err := p.pool.Query(ctx, query, tables)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	byTable := make(map[string][]ForeignKey)
	for rows.Next() {
		var source string
		var fk ForeignKey
		if err := rows.Scan(&source, &fk.Column, &fk.TargetTable, &fk.TargetColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		byTable[source] = append(byTable[source], fk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys: %w", err)
	}

	return byTable, nil
}

var _ Introspector = (*PostgresIntrospector)(nil)
