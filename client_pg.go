package execsql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresClient calls the procedure over a direct PostgreSQL connection.
type PostgresClient struct {
	connConfig *pgx.ConnConfig
	query      string
}

// NewPostgresClient parses the connection string without connecting. The
// configured key replaces any password embedded in the URL.
func NewPostgresClient(cfg Config) (*PostgresClient, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cc, err := pgx.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid connection string: %v", ErrConfig, err)
	}
	cc.Password = cfg.Key
	return &PostgresClient{
		connConfig: cc,
		query:      procedureQuery(cfg.Procedure, cfg.Param),
	}, nil
}

// procedureQuery builds the call. Both identifiers have passed Config.Validate.
func procedureQuery(procedure, param string) string {
	return fmt.Sprintf("SELECT %s(%s => $1)::text", procedure, param)
}

// ExecSQL opens one connection, calls the procedure with sql as its only
// argument and closes the connection again.
func (c *PostgresClient) ExecSQL(ctx context.Context, sql string) (Result, error) {
	conn, err := pgx.ConnectConfig(ctx, c.connConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = conn.Close(context.Background()) }()

	var out *string
	if err := conn.QueryRow(ctx, c.query, sql).Scan(&out); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, &RemoteError{
				Code:    pgErr.Code,
				Message: pgErr.Message,
				Details: pgErr.Detail,
				Hint:    pgErr.Hint,
			}
		}
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return textResult(out)
}

// textResult passes JSON text through and quotes anything else.
func textResult(out *string) (Result, error) {
	if out == nil || *out == "" {
		return nullResult, nil
	}
	if json.Valid([]byte(*out)) {
		return Result(*out), nil
	}
	quoted, err := json.Marshal(*out)
	if err != nil {
		return nil, err
	}
	return Result(quoted), nil
}
