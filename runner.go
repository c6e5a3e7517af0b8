package execsql

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Runner executes a single migration file against an Executor.
//
// Run checks its preconditions in a fixed order: configuration first, then
// the file name, then the file's existence. The executor is called only
// after all three pass, exactly once.
type Runner struct {
	cfg    Config
	exec   Executor
	logger *slog.Logger
	out    io.Writer
}

// NewRunner creates a Runner. A nil logger discards diagnostics.
func NewRunner(cfg Config, exec Executor, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		cfg:    cfg.WithDefaults(),
		exec:   exec,
		logger: logger,
		out:    io.Discard,
	}
}

// SetOutput sets the writer that receives the human-readable progress lines,
// including the SQL text about to be executed.
func (r *Runner) SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	r.out = w
}

// Prepare validates the configuration and resolves name without executing it.
func (r *Runner) Prepare(name string) (Migration, error) {
	if err := r.cfg.Validate(); err != nil {
		return Migration{}, err
	}
	if err := validateName(name); err != nil {
		return Migration{}, err
	}
	return ResolveMigration(r.cfg.MigrationsDir, name)
}

// Run resolves, reads and submits the migration called name.
func (r *Runner) Run(ctx context.Context, name string) (Result, error) {
	m, err := r.Prepare(name)
	if err != nil {
		return nil, err
	}
	sql, err := m.SQL()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", m.Path, err)
	}

	fmt.Fprintf(r.out, "[%s] Executing migration %s (%d bytes, md5 %s)\n", time.Now().Format(time.Kitchen), m.Name, len(sql), m.Md5)
	fmt.Fprintln(r.out, "SQL to execute:")
	fmt.Fprintln(r.out, sql)

	r.logger.Info("executing migration",
		"file", m.Name,
		"path", m.Path,
		"bytes", len(sql),
		"md5", m.Md5,
		"backend", r.cfg.Backend,
		"procedure", r.cfg.Procedure,
	)

	start := time.Now()
	res, err := r.exec.ExecSQL(ctx, sql)
	if err != nil {
		r.logger.Error("migration failed", "file", m.Name, "error", err, "elapsed", time.Since(start))
		return nil, err
	}
	r.logger.Info("migration executed", "file", m.Name, "elapsed", time.Since(start))
	return res, nil
}
