package executor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const (
	// KindStore — тип узла работы с реляционным хранилищем.
	KindStore = "store"

	// storeScheme — единственная поддерживаемая схема подключения.
	storeScheme = "sqlite://"
)

// Ключи конфигурации store узла.
const (
	storeConfigConnection = "connection"
	storeConfigOp         = "op"
	storeConfigSQL        = "sql"
	storeConfigParams     = "params"
)

// Операции store узла.
const (
	storeOpQuery = "query"
	storeOpExec  = "exec"
)

// StoreExecutor — узел запросов к встраиваемой SQLite базе.
//
// Принимается только схема sqlite://; любая другая схема подключения —
// ошибка конфигурации с указанием поля connection.
//
// Конфигурация:
//
//	{
//	    "connection": "sqlite:///data/app.db",
//	    "op": "query",
//	    "sql": "SELECT id, name FROM users WHERE age > ?",
//	    "params": [18]
//	}
//
// Output query: {"rows": [{...}], "count": N}
// Output exec:  {"rows_affected": N}
type StoreExecutor struct{}

// NewStoreExecutor создаёт StoreExecutor.
func NewStoreExecutor() *StoreExecutor {
	return &StoreExecutor{}
}

// Kind возвращает тип узла.
func (e *StoreExecutor) Kind() string { return KindStore }

// Category возвращает категорию брокера.
func (e *StoreExecutor) Category() string { return CategoryStore }

// Execute выполняет SQL запрос.
func (e *StoreExecutor) Execute(ctx context.Context, req *Request) (*Response, error) {
	connection := GetConfigString(req.Config, storeConfigConnection)
	if connection == "" {
		return nil, fmt.Errorf("%w: %s: connection is required", ErrInvalidConfig, KindStore)
	}
	if !strings.HasPrefix(connection, storeScheme) {
		return nil, fmt.Errorf("%w: %s: connection: only %s scheme is supported",
			ErrInvalidConfig, KindStore, storeScheme)
	}

	query := GetConfigString(req.Config, storeConfigSQL)
	if query == "" {
		return nil, fmt.Errorf("%w: %s: sql is required", ErrInvalidConfig, KindStore)
	}

	op := GetConfigString(req.Config, storeConfigOp)
	if op == "" {
		op = storeOpQuery
	}
	params := GetConfigSlice(req.Config, storeConfigParams)

	dsn := strings.TrimPrefix(connection, storeScheme)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: open database: %v", ErrExecutionFailed, KindStore, err)
	}
	defer db.Close()

	switch op {
	case storeOpQuery:
		return e.runQuery(ctx, db, query, params)
	case storeOpExec:
		return e.runExec(ctx, db, query, params)
	default:
		return nil, fmt.Errorf("%w: %s: unknown op %q", ErrInvalidConfig, KindStore, op)
	}
}

// runQuery выполняет SELECT и собирает строки в список объектов.
func (e *StoreExecutor) runQuery(ctx context.Context, db *sql.DB, query string, params []any) (*Response, error) {
	rows, err := db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: query: %v", ErrExecutionFailed, KindStore, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: columns: %v", ErrExecutionFailed, KindStore, err)
	}

	result := make([]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("%w: %s: scan: %v", ErrExecutionFailed, KindStore, err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: rows: %v", ErrExecutionFailed, KindStore, err)
	}

	return NewResponse(map[string]any{
		"rows":  result,
		"count": len(result),
	}), nil
}

// runExec выполняет модифицирующий запрос.
func (e *StoreExecutor) runExec(ctx context.Context, db *sql.DB, query string, params []any) (*Response, error) {
	res, err := db.ExecContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: exec: %v", ErrExecutionFailed, KindStore, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		affected = 0
	}
	return NewResponse(map[string]any{
		"rows_affected": affected,
	}), nil
}
