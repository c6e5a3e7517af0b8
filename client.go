package execsql

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Result is the opaque payload returned by the remote procedure.
type Result = json.RawMessage

// Executor submits SQL text to the remote "execute SQL" procedure.
// Each call performs exactly one remote request and never retries.
type Executor interface {
	ExecSQL(ctx context.Context, sql string) (Result, error)
}

// NewExecutor creates an Executor for the configured backend. It performs no
// network activity; connections are made by ExecSQL.
func NewExecutor(cfg Config) (Executor, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch strings.ToLower(cfg.Backend) {
	case BackendREST:
		return NewRESTClient(cfg, nil)
	case BackendPostgres:
		return NewPostgresClient(cfg)
	default:
		return nil, fmt.Errorf("%w: backend '%s' not supported. Must be one of: %s or %s",
			ErrConfig, cfg.Backend, BackendREST, BackendPostgres)
	}
}

// nullResult is returned when the procedure produces no value.
var nullResult = Result("null")
