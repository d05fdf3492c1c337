package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/insanalamin/mechaway/internal/core"
	"github.com/insanalamin/mechaway/internal/pin"
	"github.com/insanalamin/mechaway/internal/workflow"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dynTableSchema = "mway_dynamic_tables"

// pgPool returns the cached pgxpool.Pool for connString, opening one on
// first use. Pools are keyed by connection string so distinct PGQuery
// secrets never share a pool.
func (d *Dispatcher) pgPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	d.pgMu.Lock()
	defer d.pgMu.Unlock()

	if pool, ok := d.pgPools[connString]; ok {
		return pool, nil
	}
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, core.StorageError("failed to open postgres pool", err)
	}
	d.pgPools[connString] = pool
	return pool, nil
}

type secretResolverAdapter struct {
	tenants TenantPools
}

func (a secretResolverAdapter) GetSecret(ctx context.Context, slug, key string) (string, bool, error) {
	return a.tenants.GetSecret(ctx, slug, key)
}

func (d *Dispatcher) executePGQuery(ctx context.Context, node workflow.Node, ec workflow.ExecutionContext) (workflow.ExecutionResult, error) {
	if len(node.Secrets) == 0 {
		return workflow.ExecutionResult{}, core.MissingSecret(
			"PGQuery node " + node.ID + " requires at least one secret for its database connection")
	}
	secrets, err := pin.EvaluateSecrets(ctx, secretResolverAdapter{d.tenants}, ec.ProjectSlug, node.Secrets)
	if err != nil {
		return workflow.ExecutionResult{}, err
	}
	connString := secrets[0]

	query, _ := node.Params["query"].(string)
	if query == "" {
		return workflow.ExecutionResult{}, core.BadNode("PGQuery node " + node.ID + " missing 'query' parameter")
	}

	var bindParams []any
	if len(node.Inputs) > 0 {
		values, err := pin.Evaluate(node.Inputs, ec)
		if err != nil {
			return workflow.ExecutionResult{}, err
		}
		bindParams = values
	}

	pool, err := d.pgPool(ctx, connString)
	if err != nil {
		return workflow.ExecutionResult{}, err
	}

	rows, err := pool.Query(ctx, query, bindParams...)
	if err != nil {
		return workflow.ExecutionResult{}, core.StorageError("PGQuery node "+node.ID+" failed", err)
	}
	defer rows.Close()

	records, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return workflow.ExecutionResult{}, core.StorageError("PGQuery node "+node.ID+" failed to read rows", err)
	}

	results := make([]any, 0, len(records))
	for _, rec := range records {
		results = append(results, rec)
	}

	var response any
	if len(results) == 1 {
		response = results[0]
	} else {
		response = map[string]any{
			"results": results,
			"count":   len(results),
		}
	}

	return workflow.ExecutionResult{
		Data:     []any{response},
		Metadata: ec.Metadata,
		Continue: true,
	}, nil
}

func (d *Dispatcher) executePGDynTableWriter(ctx context.Context, node workflow.Node, ec workflow.ExecutionContext) (workflow.ExecutionResult, error) {
	if len(node.Secrets) == 0 {
		return workflow.ExecutionResult{}, core.MissingSecret(
			"PGDynTableWriter node " + node.ID + " requires at least one secret for its database connection")
	}
	secrets, err := pin.EvaluateSecrets(ctx, secretResolverAdapter{d.tenants}, ec.ProjectSlug, node.Secrets)
	if err != nil {
		return workflow.ExecutionResult{}, err
	}
	connString := secrets[0]

	table, _ := node.Params["table"].(string)
	if !isValidIdentifier(table) {
		return workflow.ExecutionResult{}, core.BadNode("PGDynTableWriter node " + node.ID + " missing or invalid 'table' parameter")
	}
	columns := stringColumns(node.Params["columns"])
	if len(columns) == 0 {
		return workflow.ExecutionResult{}, core.BadNode("PGDynTableWriter node " + node.ID + " requires at least one column")
	}
	for _, col := range columns {
		if !isValidIdentifier(col) {
			return workflow.ExecutionResult{}, core.BadNode("PGDynTableWriter node " + node.ID + " has an invalid column name: " + col)
		}
	}

	if len(node.Inputs) != len(columns) {
		return workflow.ExecutionResult{}, core.BadNode(
			fmt.Sprintf("PGDynTableWriter node %s requires one input pin per column (%d pins, %d columns)",
				node.ID, len(node.Inputs), len(columns)))
	}
	values, err := pin.Evaluate(node.Inputs, ec)
	if err != nil {
		return workflow.ExecutionResult{}, err
	}

	pool, err := d.pgPool(ctx, connString)
	if err != nil {
		return workflow.ExecutionResult{}, err
	}

	qualified := dynTableSchema + "." + table
	if err := ensurePGSchemaAndTable(ctx, pool, table, columns); err != nil {
		return workflow.ExecutionResult{}, err
	}

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		qualified, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	tag, err := pool.Exec(ctx, insertSQL, values...)
	if err != nil {
		return workflow.ExecutionResult{}, core.StorageError("PGDynTableWriter node "+node.ID+" insert failed", err)
	}

	response := map[string]any{
		"operation":     "pgdyn_table_write",
		"schema":        dynTableSchema,
		"table":         table,
		"columns":       columns,
		"rows_affected": tag.RowsAffected(),
	}

	return workflow.ExecutionResult{
		Data:     []any{response},
		Metadata: ec.Metadata,
		Continue: true,
	}, nil
}

func ensurePGSchemaAndTable(ctx context.Context, pool *pgxpool.Pool, table string, columns []string) error {
	if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+dynTableSchema); err != nil {
		return core.StorageError("failed to create schema "+dynTableSchema, err)
	}
	defs := make([]string, 0, len(columns))
	for _, col := range columns {
		defs = append(defs, col+" TEXT")
	}
	stmt := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s.%s (id BIGSERIAL PRIMARY KEY, %s)",
		dynTableSchema, table, strings.Join(defs, ", "),
	)
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return core.StorageError("failed to create table "+table, err)
	}
	return nil
}
