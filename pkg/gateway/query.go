package gateway

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/datamorph/datamorph/pkg/config"
)

// Query runs validation SQL against the warehouse.
type Query interface {
	Execute(ctx context.Context, sqlText string) ([]map[string]interface{}, error)
}

// QueryClient executes SQL over a dedicated warehouse connection. Syntax and
// connectivity errors are reported alike as QueryError.
type QueryClient struct {
	db *sql.DB
}

func NewQueryClient(cfg *config.WarehouseConfig) (*QueryClient, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse connection: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return &QueryClient{db: db}, nil
}

func (c *QueryClient) Execute(ctx context.Context, sqlText string) ([]map[string]interface{}, error) {
	rows, err := c.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &QueryError{Err: err}
	}

	var results []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, &QueryError{Err: err}
		}

		row := make(map[string]interface{}, len(columns))
		for i, column := range columns {
			value := values[i]
			if b, ok := value.([]byte); ok {
				value = string(b)
			}
			row[column] = value
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, &QueryError{Err: err}
	}

	return results, nil
}

func (c *QueryClient) Close() error {
	return c.db.Close()
}
