// SPDX-License-Identifier: MIT

// Package execsql runs a single SQL migration file against a remote
// database by handing its text, unparsed, to an "execute SQL" procedure.
//
// There is no version table, no ordering and no rollback: the file named on
// the command line is read from the migrations directory and submitted
// once. Whatever transactional behaviour exists belongs to the procedure on
// the other side.
//
// # Remote procedure
//
// The procedure takes one text parameter and runs it. A typical definition
// on a Supabase/PostgREST project:
//
//	create or replace function exec_sql(sql text) returns void
//	language plpgsql security definer as $$
//	begin
//	  execute sql;
//	end;
//	$$;
//	revoke all on function exec_sql(text) from public, anon, authenticated;
//
// This is an operator tool. The SQL is not examined and must never come
// from untrusted input.
//
// # Backends
//
//   - rest (default): POST {url}/rest/v1/rpc/{procedure} with the access
//     key sent as both the apikey header and a bearer token. For a
//     schema-qualified procedure the schema goes in the Content-Profile
//     header.
//   - pg: a direct connection with pgx. The url is a connection string
//     and the key replaces its password.
//
// # Configuration
//
// Use Config to tweak behaviour:
//
//   - URL:           endpoint URL, or $SUPABASE_URL
//   - Key:           access key, or $SUPABASE_SERVICE_ROLE_KEY
//   - Backend:       "rest" or "pg"
//   - MigrationsDir: where file names are resolved (default "migrations")
//   - Procedure:     procedure name, optionally schema-qualified (default "exec_sql")
//   - Param:         parameter name (default "sql")
//
// LoadConfig reads the same fields from a JSON or YAML file.
//
// # Programmatic API
//
//	cfg := execsql.Config{MigrationsDir: "migrations"}
//	cfg.FromEnv(os.Getenv)
//	exec, _ := execsql.NewExecutor(cfg)
//	res, err := execsql.NewRunner(cfg, exec, nil).Run(ctx, "add_soft_delete_columns.sql")
//
// # Errors
//
// ErrConfig, ErrUsage and ErrNotFound are returned before any network
// activity. Failures reported by the backend are *RemoteError values and
// match ErrRemote. The CLI exits 1 on any of them.
//
// Generated documentation; update whenever public API or CLI flags change.
package execsql
