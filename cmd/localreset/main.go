// Package main implements localreset, a terminal screen with a single
// control that deletes a local store after confirmation and reloads.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	tea "charm.land/bubbletea/v2"

	"github.com/bcomnes/execsql"
	"github.com/bcomnes/execsql/localstore"
	"github.com/bcomnes/execsql/reset"
	"github.com/bcomnes/execsql/tui"
)

func usage() {
	header := `Usage:
  localreset [options]

Opens a screen for the named local store with a "Reset Local Database"
control. With -yes the confirmation is accepted up front and a single reset
runs without the screen.

Options:`
	fmt.Fprintln(os.Stderr, header)
	flag.PrintDefaults()
}

func main() {
	dir := flag.String("dir", "", "Directory holding local stores (default: $EXECSQL_STORE_DIR or the XDG data dir)")
	store := flag.String("store", "app", "Name of the local store to reset")
	yes := flag.Bool("yes", false, "Accept the confirmation and reset without the interactive screen")
	verbose := flag.Bool("verbose", false, "Log diagnostics to stderr")
	helpFlag := flag.Bool("help", false, "Show help message")
	versionFlag := flag.Bool("version", false, "Show version")

	flag.Usage = usage
	flag.Parse()

	if *helpFlag {
		usage()
		os.Exit(0)
	}
	if *versionFlag {
		fmt.Println("localreset version:", execsql.Version)
		os.Exit(0)
	}
	if flag.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "Error: unexpected argument: %s\n", flag.Arg(0))
		usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if *verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	mgr := localstore.NewManager(*dir, logger)
	screen := tui.NewScreen(mgr, *store)

	if *yes {
		os.Exit(runOnce(ctx, mgr, screen, *store, logger))
	}

	control := reset.New(*store, mgr,
		reset.WithReloader(screen),
		reset.WithLogger(logger),
	)
	p := tea.NewProgram(tui.New(ctx, screen, control), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runOnce performs one confirmed reset with line output and returns the exit code.
func runOnce(ctx context.Context, mgr *localstore.Manager, screen *tui.Screen, store string, logger *slog.Logger) int {
	control := reset.New(store, mgr,
		reset.WithConfirmer(reset.ConfirmFunc(func(string) bool { return true })),
		reset.WithNotifier(reset.NotifyFunc(func(msg string) { fmt.Println(msg) })),
		reset.WithReloader(reset.ReloadFunc(func() {
			screen.Reload()
			st := screen.Stats()
			fmt.Printf("Reloaded %s (%s): exists=%t\n", st.Name, st.Path, st.Exists)
		})),
		reset.WithLogger(logger),
	)
	res := control.Trigger(ctx)
	if res.Outcome != reset.Succeeded {
		if res.Err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", res.Err)
		}
		return 1
	}
	return 0
}
