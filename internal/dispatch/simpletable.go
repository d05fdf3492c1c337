package dispatch

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/insanalamin/mechaway/internal/core"
	"github.com/insanalamin/mechaway/internal/pin"
	"github.com/insanalamin/mechaway/internal/workflow"
)

func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_') {
			return false
		}
	}
	return true
}

// isSafeWhereClause allows alphanumerics plus a small set of
// comparison/boolean/identifier punctuation in a user-supplied WHERE
// fragment. Anything else is dropped silently rather than rejected, so a
// workflow with a bad filter still runs.
func isSafeWhereClause(s string) bool {
	for _, r := range s {
		alnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !alnum && !strings.ContainsRune(" ><=!()._", r) {
			return false
		}
	}
	return true
}

func stringColumns(raw any) []string {
	arr, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func ensureTableExists(ctx context.Context, db *sql.DB, table string, columns []string) error {
	if !isValidIdentifier(table) {
		return core.ValidationError("invalid table name: " + table)
	}
	defs := make([]string, 0, len(columns))
	for _, col := range columns {
		if !isValidIdentifier(col) {
			return core.ValidationError("invalid column name: " + col)
		}
		defs = append(defs, col+" TEXT")
	}
	stmt := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY AUTOINCREMENT, %s)",
		table, strings.Join(defs, ", "),
	)
	_, err := db.ExecContext(ctx, stmt)
	if err != nil {
		return core.StorageError("failed to create table "+table, err)
	}
	return nil
}

func bindValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string, bool, float64:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

func (d *Dispatcher) executeSimpleTableWriter(ctx context.Context, node workflow.Node, ec workflow.ExecutionContext) (workflow.ExecutionResult, error) {
	table, _ := node.Params["table"].(string)
	if table == "" {
		return workflow.ExecutionResult{}, core.BadNode("SimpleTableWriter node " + node.ID + " missing 'table' parameter")
	}
	columns := stringColumns(node.Params["columns"])
	if len(columns) == 0 {
		return workflow.ExecutionResult{}, core.BadNode("SimpleTableWriter node " + node.ID + " 'columns' cannot be empty")
	}

	db, err := d.tenants.SimpletablePool(ctx, ec.ProjectSlug)
	if err != nil {
		return workflow.ExecutionResult{}, err
	}
	if err := ensureTableExists(ctx, db, table, columns); err != nil {
		return workflow.ExecutionResult{}, err
	}

	var values []any
	if len(node.Inputs) > 0 {
		if len(node.Inputs) != len(columns) {
			return workflow.ExecutionResult{}, core.ValidationError(
				fmt.Sprintf("SimpleTableWriter node %s: input pins (%d) must match columns (%d)",
					node.ID, len(node.Inputs), len(columns)))
		}
		values, err = pin.Evaluate(node.Inputs, ec)
		if err != nil {
			return workflow.ExecutionResult{}, err
		}
	} else {
		first, _ := firstItem(ec.Data).(map[string]any)
		values = make([]any, len(columns))
		for i, col := range columns {
			if first != nil {
				values[i] = first[col]
			}
		}
	}

	placeholders := make([]string, len(columns))
	bound := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		bound[i] = bindValue(v)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	result, err := db.ExecContext(ctx, query, bound...)
	if err != nil {
		return workflow.ExecutionResult{}, core.StorageError("insert into "+table+" failed", err)
	}
	insertedID, _ := result.LastInsertId()
	rowsAffected, _ := result.RowsAffected()

	response := map[string]any{
		"inserted_data": map[string]any{
			"table":   table,
			"columns": columns,
			"values":  values,
		},
		"_inserted_id":   insertedID,
		"_rows_affected": rowsAffected,
		"_success":       true,
	}

	return workflow.ExecutionResult{
		Data:     []any{response},
		Metadata: ec.Metadata,
		Continue: true,
	}, nil
}

func (d *Dispatcher) executeSimpleTableReader(ctx context.Context, node workflow.Node, ec workflow.ExecutionContext) (workflow.ExecutionResult, error) {
	table, _ := node.Params["table"].(string)
	if !isValidIdentifier(table) {
		return workflow.ExecutionResult{}, core.BadNode("invalid or missing table name for node " + node.ID)
	}

	query := "SELECT * FROM " + table
	if where, ok := node.Params["where"].(string); ok && where != "" {
		if isSafeWhereClause(where) {
			query += " WHERE " + where
		} else {
			d.log.Warn("dropping unsafe WHERE clause", "node_id", node.ID, "table", table)
		}
	}
	query += " ORDER BY id DESC"

	limit := 100
	if l, ok := node.Params["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	db, err := d.tenants.SimpletablePool(ctx, ec.ProjectSlug)
	if err != nil {
		return workflow.ExecutionResult{}, err
	}

	results, err := queryRowsAsMaps(ctx, db, query)
	if err != nil {
		return workflow.ExecutionResult{}, core.StorageError("query against "+table+" failed", err)
	}

	response := map[string]any{
		"results": results,
		"count":   len(results),
		"table":   table,
	}
	return workflow.ExecutionResult{
		Data:     []any{response},
		Metadata: ec.Metadata,
		Continue: true,
	}, nil
}

func (d *Dispatcher) executeSimpleTableQuery(ctx context.Context, node workflow.Node, ec workflow.ExecutionContext) (workflow.ExecutionResult, error) {
	rawQuery, _ := node.Params["query"].(string)
	if rawQuery == "" {
		return workflow.ExecutionResult{}, core.BadNode("SimpleTableQuery node " + node.ID + " missing 'query' parameter")
	}
	table, _ := node.Params["table"].(string)
	if table == "" {
		table = "unknown_table"
	}

	var bindValues []any
	if len(node.Inputs) > 0 {
		values, err := pin.Evaluate(node.Inputs, ec)
		if err != nil {
			return workflow.ExecutionResult{}, err
		}
		for _, v := range values {
			bindValues = append(bindValues, bindValue(v))
		}
	}

	db, err := d.tenants.SimpletablePool(ctx, ec.ProjectSlug)
	if err != nil {
		return workflow.ExecutionResult{}, err
	}

	results, err := queryRowsAsMaps(ctx, db, rawQuery, bindValues...)
	if err != nil {
		return workflow.ExecutionResult{}, core.StorageError("query against "+table+" failed", err)
	}

	var response any
	if len(results) == 1 {
		response = results[0]
	} else {
		response = map[string]any{
			"results": results,
			"count":   len(results),
			"table":   table,
		}
	}

	return workflow.ExecutionResult{
		Data:     []any{response},
		Metadata: ec.Metadata,
		Continue: true,
	}, nil
}

func firstItem(data []any) any {
	if len(data) == 0 {
		return nil
	}
	return data[0]
}

// queryRowsAsMaps runs query and decodes every row into a column-name-keyed
// map, coercing SQLite's dynamically-typed TEXT storage back to numbers and
// booleans where possible.
func queryRowsAsMaps(ctx context.Context, db *sql.DB, query string, args ...any) ([]map[string]any, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]any
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		record := make(map[string]any, len(cols))
		for i, col := range cols {
			record[col] = coerceSQLiteValue(raw[i])
		}
		results = append(results, record)
	}
	return results, rows.Err()
}

func coerceSQLiteValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case int64:
		return val
	case float64:
		return val
	case []byte:
		return string(val)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}
