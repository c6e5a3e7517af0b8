// Package main implements execsql, which submits one SQL migration file to
// a remote "execute SQL" procedure.
// The endpoint URL and access key come from -url / $SUPABASE_URL and
// $SUPABASE_SERVICE_ROLE_KEY, or the "url" and "key" fields of a JSON or
// YAML config file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/bcomnes/execsql"
)

var versionString = execsql.Version

// usage prints the help text.
func usage() {
	header := `Usage:
  execsql [options] <migration-file-name>
  execsql [options] list
  execsql [options] new <description>

Submits <migration-file-name>, read from the migrations directory, as a
single string to the remote procedure and prints the result.

Commands:
  list                List the migration files with their MD5 checksums.
  new <description>   Create an empty migration file named after description.

Environment:
  SUPABASE_URL               Endpoint URL (rest) or connection string (pg).
  SUPABASE_SERVICE_ROLE_KEY  Access key.

Options:`
	fmt.Fprintln(os.Stderr, header)
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "", "Path to JSON or YAML configuration file (optional)")
	backend := flag.String("backend", "", "How to reach the procedure: \"rest\" or \"pg\" (default: \"rest\")")
	urlFlag := flag.String("url", "", "Endpoint URL. Overrides SUPABASE_URL and the config file.")
	migrationsDir := flag.String("migrations-dir", "", "Directory containing migration files (default: \"migrations\" next to the executable)")
	procedure := flag.String("procedure", "", "Remote procedure name (default: \"exec_sql\")")
	param := flag.String("param", "", "Name of the procedure's SQL parameter (default: \"sql\")")
	timeout := flag.Duration("timeout", 0, "Abort the remote call after this long (0 disables)")
	mode := flag.String("mode", "plain", "Naming mode for new migrations (\"plain\" or \"timestamp\")")
	newline := flag.String("newline", "", "Newline style for new migrations: LF, CR, or CRLF")
	noDotenv := flag.Bool("no-dotenv", false, "Do not load .env files")
	verbose := flag.Bool("verbose", false, "Log diagnostics to stderr")
	helpFlag := flag.Bool("help", false, "Show help message")
	versionFlag := flag.Bool("version", false, "Show version")

	flag.Usage = usage
	flag.Parse()

	// Safeguard: check for any flag-like arguments after positional arguments.
	for _, arg := range flag.Args() {
		if strings.HasPrefix(arg, "-") {
			fmt.Fprintln(os.Stderr, "Error: Flags must be specified before the file name. Please reorder your arguments.")
			usage()
			os.Exit(1)
		}
	}

	if *helpFlag {
		usage()
		os.Exit(0)
	}
	if *versionFlag {
		fmt.Println("execsql version:", versionString)
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if *verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	if !*noDotenv {
		loadDotenv(logger)
	}

	// ------------------------------------------------------------------
	// Configuration precedence:
	//   1. Flags supplied by the user
	//   2. Environment variables
	//   3. Values from the config file
	//   4. Built-in defaults
	// ------------------------------------------------------------------

	var cfg execsql.Config
	if *configPath != "" {
		if err := execsql.LoadConfig(*configPath, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config file: %v\n", err)
			os.Exit(1)
		}
	}
	fileURL, fileKey := cfg.URL, cfg.Key
	cfg.URL, cfg.Key = "", ""
	cfg.FromEnv(os.Getenv)
	cfg.URL = firstNonEmpty(*urlFlag, cfg.URL, fileURL)
	cfg.Key = firstNonEmpty(cfg.Key, fileKey)
	cfg.Backend = firstNonEmpty(*backend, cfg.Backend)
	cfg.Procedure = firstNonEmpty(*procedure, cfg.Procedure)
	cfg.Param = firstNonEmpty(*param, cfg.Param)
	cfg.MigrationsDir = firstNonEmpty(*migrationsDir, cfg.MigrationsDir, defaultMigrationsDir())
	cfg = cfg.WithDefaults()

	args := flag.Args()
	if len(args) > 0 {
		switch args[0] {
		case "list":
			os.Exit(listMigrations(cfg.MigrationsDir))
		case "new":
			if len(args) < 2 {
				fmt.Fprintln(os.Stderr, "Error: a description is required for the new command.")
				usage()
				os.Exit(1)
			}
			os.Exit(newMigration(cfg.MigrationsDir, strings.Join(args[1:], " "), *mode, *newline))
		}
	}

	// Credentials are checked before the argument and before any file access.
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Set %s and %s in the environment or a .env file.\n", execsql.EnvURL, execsql.EnvKey)
		os.Exit(1)
	}
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: no migration file name provided.")
		usage()
		os.Exit(1)
	}
	if len(args) > 1 {
		fmt.Fprintf(os.Stderr, "Error: expected exactly one migration file name, got %d arguments.\n", len(args))
		usage()
		os.Exit(1)
	}

	exec, err := execsql.NewExecutor(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	os.Exit(run(ctx, cfg, exec, logger, args[0]))
}

// run executes the migration and reports the outcome. It returns the exit code.
func run(ctx context.Context, cfg execsql.Config, exec execsql.Executor, logger *slog.Logger, name string) int {
	name = strings.TrimSpace(name)
	runner := execsql.NewRunner(cfg, exec, logger)
	runner.SetOutput(os.Stdout)

	res, err := runner.Run(ctx, name)
	if err != nil {
		switch {
		case errors.Is(err, execsql.ErrUsage):
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			usage()
		case errors.Is(err, execsql.ErrNotFound):
			fmt.Fprintf(os.Stderr, "Error: migration file not found: %s\n", filepath.Join(cfg.MigrationsDir, name))
		case errors.Is(err, execsql.ErrRemote):
			fmt.Fprintf(os.Stderr, "Migration error: %v\n", err)
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}

	fmt.Printf("[%s] Migration executed successfully.\n", time.Now().Format(time.Kitchen))
	fmt.Printf("Result: %s\n", res)
	return 0
}

func listMigrations(dir string) int {
	migs, err := execsql.ListMigrations(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading migrations: %v\n", err)
		return 1
	}
	fmt.Printf("Migrations in %s:\n", dir)
	if len(migs) == 0 {
		fmt.Println("  (none)")
	}
	for _, m := range migs {
		fmt.Printf("  %s  %s  %d bytes\n", m.Md5, m.Name, m.Size)
	}
	return 0
}

func newMigration(dir, description, mode, newline string) int {
	fmt.Printf("[%s] Creating new migration '%s' in %s mode...\n", time.Now().Format(time.Kitchen), description, mode)
	path, err := execsql.CreateMigration(dir, description, mode, newline)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating new migration: %v\n", err)
		return 1
	}
	fmt.Printf("[%s] Created %s\n", time.Now().Format(time.Kitchen), path)
	return 0
}

// defaultMigrationsDir returns the migrations directory next to the executable.
func defaultMigrationsDir() string {
	dir := executableDir()
	if dir == "" {
		return execsql.DefaultConfig.MigrationsDir
	}
	return filepath.Join(dir, "migrations")
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// loadDotenv loads .env from the working directory and from next to the
// executable. Variables already set in the environment are left alone.
func loadDotenv(logger *slog.Logger) {
	candidates := []string{".env"}
	if dir := executableDir(); dir != "" {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			logger.Warn("failed to load env file", "path", path, "error", err)
			continue
		}
		logger.Debug("loaded env file", "path", path)
	}
}

// firstNonEmpty returns the first non-empty string in the provided list.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
