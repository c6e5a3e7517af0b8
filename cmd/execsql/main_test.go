package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// -----------------------------------------------------------------------------
// Helper process setup
// -----------------------------------------------------------------------------

// TestMain triggers helper process mode when GO_HELPER_PROCESS is set.
func TestMain(m *testing.M) {
	if os.Getenv("GO_HELPER_PROCESS") == "1" {
		main()
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// runCLI runs the current test binary as a helper process running the CLI.
// The endpoint variables are cleared unless extraEnv sets them.
func runCLI(args []string, extraEnv ...string) (string, error) {
	cmd := exec.Command(os.Args[0], args...)
	cmd.Env = append(os.Environ(), "GO_HELPER_PROCESS=1", "SUPABASE_URL=", "SUPABASE_SERVICE_ROLE_KEY=")
	cmd.Env = append(cmd.Env, extraEnv...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// rpcServer is a stand-in for the remote procedure endpoint.
type rpcServer struct {
	*httptest.Server

	mu       sync.Mutex
	bodies   []string
	paths    []string
	keys     []string
	profiles []string
}

func newRPCServer(t *testing.T, status int, reply string) *rpcServer {
	t.Helper()
	s := &rpcServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.bodies = append(s.bodies, string(body))
		s.paths = append(s.paths, r.URL.Path)
		s.keys = append(s.keys, r.Header.Get("apikey"))
		s.profiles = append(s.profiles, r.Header.Get("Content-Profile"))
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, reply)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *rpcServer) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bodies)
}

func endpointEnv(url string) []string {
	return []string{"SUPABASE_URL=" + url, "SUPABASE_SERVICE_ROLE_KEY=test-key"}
}

// -----------------------------------------------------------------------------
// Baseline CLI behaviour
// -----------------------------------------------------------------------------

// TestCLIHelp checks that -help prints usage info.
func TestCLIHelp(t *testing.T) {
	out, _ := runCLI([]string{"-help"})
	if !strings.Contains(out, "Usage:") {
		t.Errorf("expected help usage info, got:\n%s", out)
	}
}

// TestCLIVersion checks that -version prints version string.
func TestCLIVersion(t *testing.T) {
	out, _ := runCLI([]string{"-version"})
	if !strings.Contains(out, "execsql version:") {
		t.Errorf("expected version info, got:\n%s", out)
	}
}

// TestCLIFlagsAfterName ensures flags after the file name are rejected.
func TestCLIFlagsAfterName(t *testing.T) {
	out, err := runCLI([]string{"add_soft_delete_columns.sql", "-verbose"})
	if err == nil {
		t.Fatalf("expected failure, got success:\n%s", out)
	}
	if !strings.Contains(out, "Flags must be specified before the file name") {
		t.Errorf("expected ordering error, got:\n%s", out)
	}
}

// -----------------------------------------------------------------------------
// Execution
// -----------------------------------------------------------------------------

// TestCLIMissingConfig checks that missing credentials fail before the
// file name is looked at and without any remote call.
func TestCLIMissingConfig(t *testing.T) {
	srv := newRPCServer(t, http.StatusOK, `null`)
	out, err := runCLI([]string{"-no-dotenv", "-migrations-dir", "testdata/migrations", "add_soft_delete_columns.sql"},
		"SUPABASE_URL="+srv.URL)
	if err == nil {
		t.Fatalf("expected failure, got success:\n%s", out)
	}
	if !strings.Contains(out, "missing SUPABASE_SERVICE_ROLE_KEY") {
		t.Errorf("expected missing key error, got:\n%s", out)
	}
	if strings.Contains(out, "Executing migration") {
		t.Errorf("no migration should be read, got:\n%s", out)
	}
	if srv.calls() != 0 {
		t.Errorf("expected no remote calls, got %d", srv.calls())
	}
}

// TestCLIMissingName checks the usage error for a missing argument.
func TestCLIMissingName(t *testing.T) {
	srv := newRPCServer(t, http.StatusOK, `null`)
	out, err := runCLI([]string{"-no-dotenv", "-migrations-dir", "testdata/migrations"}, endpointEnv(srv.URL)...)
	if err == nil {
		t.Fatalf("expected failure, got success:\n%s", out)
	}
	if !strings.Contains(out, "Error: no migration file name provided.") || !strings.Contains(out, "Usage:") {
		t.Errorf("expected usage error, got:\n%s", out)
	}
	if srv.calls() != 0 {
		t.Errorf("expected no remote calls, got %d", srv.calls())
	}
}

// TestCLIFileNotFound checks that a missing file is reported by path.
func TestCLIFileNotFound(t *testing.T) {
	srv := newRPCServer(t, http.StatusOK, `null`)
	out, err := runCLI([]string{"-no-dotenv", "-migrations-dir", "testdata/migrations", "nope.sql"}, endpointEnv(srv.URL)...)
	if err == nil {
		t.Fatalf("expected failure, got success:\n%s", out)
	}
	want := "Error: migration file not found: " + filepath.Join("testdata", "migrations", "nope.sql")
	if !strings.Contains(out, want) {
		t.Errorf("expected %q, got:\n%s", want, out)
	}
	if srv.calls() != 0 {
		t.Errorf("expected no remote calls, got %d", srv.calls())
	}
}

// TestCLIFileNotFoundTrimmed checks that the reported path is the one
// that was looked up.
func TestCLIFileNotFoundTrimmed(t *testing.T) {
	srv := newRPCServer(t, http.StatusOK, `null`)
	out, err := runCLI([]string{"-no-dotenv", "-migrations-dir", "testdata/migrations", "  nope.sql "}, endpointEnv(srv.URL)...)
	if err == nil {
		t.Fatalf("expected failure, got success:\n%s", out)
	}
	want := "Error: migration file not found: " + filepath.Join("testdata", "migrations", "nope.sql") + "\n"
	if !strings.Contains(out, want) {
		t.Errorf("expected %q, got:\n%s", want, out)
	}
	if srv.calls() != 0 {
		t.Errorf("expected no remote calls, got %d", srv.calls())
	}
}

// TestCLIExecute checks that the file goes to the procedure verbatim, once,
// and the result is printed.
func TestCLIExecute(t *testing.T) {
	srv := newRPCServer(t, http.StatusOK, `{"status":"ok"}`)
	out, err := runCLI([]string{"-no-dotenv", "-migrations-dir", "testdata/migrations", "add_soft_delete_columns.sql"}, endpointEnv(srv.URL)...)
	if err != nil {
		t.Fatalf("execsql failed: %v; output:\n%s", err, out)
	}
	for _, want := range []string{"Executing migration add_soft_delete_columns.sql", "SQL to execute:", "Migration executed successfully.", `Result: {"status":"ok"}`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got:\n%s", want, out)
		}
	}

	if srv.calls() != 1 {
		t.Fatalf("expected exactly one remote call, got %d", srv.calls())
	}
	if srv.paths[0] != "/rest/v1/rpc/exec_sql" {
		t.Errorf("unexpected path %q", srv.paths[0])
	}
	if srv.keys[0] != "test-key" {
		t.Errorf("unexpected apikey %q", srv.keys[0])
	}

	want, err := os.ReadFile(filepath.Join("testdata", "migrations", "add_soft_delete_columns.sql"))
	if err != nil {
		t.Fatal(err)
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(srv.bodies[0]), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["sql"] != string(want) {
		t.Errorf("submitted SQL differs from the file:\n%s", body["sql"])
	}
}

// TestCLIRemoteError checks that remote failures are reported and not retried.
func TestCLIRemoteError(t *testing.T) {
	srv := newRPCServer(t, http.StatusBadRequest, `{"code":"42P01","message":"relation \"projects\" does not exist"}`)
	out, err := runCLI([]string{"-no-dotenv", "-migrations-dir", "testdata/migrations", "add_soft_delete_columns.sql"}, endpointEnv(srv.URL)...)
	if err == nil {
		t.Fatalf("expected failure, got success:\n%s", out)
	}
	if !strings.Contains(out, "Migration error:") || !strings.Contains(out, `relation "projects" does not exist`) {
		t.Errorf("expected remote error, got:\n%s", out)
	}
	if srv.calls() != 1 {
		t.Errorf("expected exactly one remote call, got %d", srv.calls())
	}
}

// TestCLIConfigFile checks that a YAML config supplies the procedure and
// that -url wins over the environment.
func TestCLIConfigFile(t *testing.T) {
	srv := newRPCServer(t, http.StatusOK, `null`)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "execsql.yaml")
	cfg := "url: http://127.0.0.1:1\nkey: file-key\nprocedure: admin.run_sql\nparam: query\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := runCLI([]string{"-no-dotenv", "-config", cfgPath, "-url", srv.URL, "-migrations-dir", "testdata/migrations", "add_soft_delete_columns.sql"},
		"SUPABASE_URL=http://127.0.0.1:2")
	if err != nil {
		t.Fatalf("execsql failed: %v; output:\n%s", err, out)
	}
	if srv.calls() != 1 {
		t.Fatalf("expected one call, got %d", srv.calls())
	}
	if srv.paths[0] != "/rest/v1/rpc/run_sql" {
		t.Errorf("unexpected path %q", srv.paths[0])
	}
	if srv.profiles[0] != "admin" {
		t.Errorf("expected Content-Profile admin, got %q", srv.profiles[0])
	}
	if srv.keys[0] != "file-key" {
		t.Errorf("unexpected apikey %q", srv.keys[0])
	}
	if !strings.Contains(srv.bodies[0], `"query":`) {
		t.Errorf("expected query parameter, got %s", srv.bodies[0])
	}
}

// -----------------------------------------------------------------------------
// list / new
// -----------------------------------------------------------------------------

// TestCLIList checks that list works without credentials.
func TestCLIList(t *testing.T) {
	out, err := runCLI([]string{"-no-dotenv", "-migrations-dir", "testdata/migrations", "list"})
	if err != nil {
		t.Fatalf("list failed: %v; output:\n%s", err, out)
	}
	if !strings.Contains(out, "add_soft_delete_columns.sql") {
		t.Errorf("expected migration in listing, got:\n%s", out)
	}
}

// TestCLINew checks that new creates a file in the migrations directory.
func TestCLINew(t *testing.T) {
	dir := t.TempDir()
	out, err := runCLI([]string{"-no-dotenv", "-migrations-dir", dir, "new", "Add", "archived", "flag"})
	if err != nil {
		t.Fatalf("new failed: %v; output:\n%s", err, out)
	}
	if _, err := os.Stat(filepath.Join(dir, "add_archived_flag.sql")); err != nil {
		t.Errorf("expected migration file: %v\noutput:\n%s", err, out)
	}

	out, err = runCLI([]string{"-no-dotenv", "-migrations-dir", dir, "new", "Add", "archived", "flag"})
	if err == nil {
		t.Errorf("expected second new to refuse overwrite, got:\n%s", out)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "b", "c"); got != "b" {
		t.Errorf("got %q", got)
	}
	if got := firstNonEmpty("", ""); got != "" {
		t.Errorf("got %q", got)
	}
}
