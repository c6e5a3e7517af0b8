// Package reset implements the control that discards a local store after
// the user confirms, and reloads the hosting screen when that succeeds.
package reset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/bcomnes/execsql/localstore"
)

// Labels shown on the control.
const (
	IdleLabel = "Reset Local Database"
	BusyLabel = "Resetting..."
)

// Messages reported through the Notifier.
const (
	ConfirmPrompt   = "Are you sure you want to reset the local database? All locally stored data will be deleted and the screen will reload."
	SuccessMessage  = "Local database deleted. Reloading..."
	FailureMessage  = "Failed to delete the local database."
	BlockedMessage  = "Database deletion blocked. Close other tabs or windows using this store and try again."
	ErrorMessageFmt = "Error resetting database: %s"
)

// Outcome is the result of one Trigger or Run.
type Outcome int

const (
	// Declined means the user answered no; nothing happened.
	Declined Outcome = iota
	// Succeeded means the store was deleted and a reload was issued.
	Succeeded
	// Failed means the store reported an error while deleting.
	Failed
	// Blocked means the store is still open elsewhere.
	Blocked
	// Errored means the deletion request could not be issued at all.
	Errored
	// Ignored means the control was busy and disabled.
	Ignored
)

func (o Outcome) String() string {
	switch o {
	case Declined:
		return "declined"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Blocked:
		return "blocked"
	case Errored:
		return "errored"
	case Ignored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Result describes what a Trigger or Run did.
type Result struct {
	Outcome Outcome
	// Message is what was shown to the user; empty for Declined and Ignored.
	Message string
	// Err is the deletion error for Failed, Blocked and Errored.
	Err error
}

// Deleter deletes a named store. *localstore.Manager satisfies it.
type Deleter interface {
	Delete(ctx context.Context, name string) error
}

// Confirmer asks the user a yes/no question and blocks until answered.
type Confirmer interface {
	Confirm(prompt string) bool
}

// Notifier shows a message to the user.
type Notifier interface {
	Notify(message string)
}

// Reloader reloads the hosting screen.
type Reloader interface {
	Reload()
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// NotifyFunc adapts a function to Notifier.
type NotifyFunc func(message string)

func (f NotifyFunc) Notify(message string) { f(message) }

// ReloadFunc adapts a function to Reloader.
type ReloadFunc func()

func (f ReloadFunc) Reload() { f() }

// Option configures a Control.
type Option func(*Control)

// WithConfirmer sets the confirmation prompt. Without one every Trigger is declined.
func WithConfirmer(c Confirmer) Option { return func(ctl *Control) { ctl.confirm = c } }

// WithNotifier sets where messages go.
func WithNotifier(n Notifier) Option { return func(ctl *Control) { ctl.notify = n } }

// WithReloader sets what happens after a successful deletion.
func WithReloader(r Reloader) Option { return func(ctl *Control) { ctl.reload = r } }

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option { return func(ctl *Control) { ctl.logger = l } }

// Control is the reset button. At most one deletion is in flight at a time;
// while it is, the control is busy and disabled.
type Control struct {
	store   string
	deleter Deleter
	confirm Confirmer
	notify  Notifier
	reload  Reloader
	logger  *slog.Logger

	mu   sync.Mutex
	busy bool
}

// New creates a Control that deletes store through d.
func New(store string, d Deleter, opts ...Option) *Control {
	c := &Control{
		store:   store,
		deleter: d,
		confirm: ConfirmFunc(func(string) bool { return false }),
		notify:  NotifyFunc(func(string) {}),
		reload:  ReloadFunc(func() {}),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the name of the store this control deletes.
func (c *Control) Store() string { return c.store }

// Busy reports whether a deletion is in flight.
func (c *Control) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Disabled reports whether the control ignores activation. It is tied to Busy.
func (c *Control) Disabled() bool { return c.Busy() }

// Label returns the text the control shows in its current state.
func (c *Control) Label() string {
	if c.Busy() {
		return BusyLabel
	}
	return IdleLabel
}

// Trigger asks for confirmation and, if given, runs the deletion. Declining
// issues no request and changes nothing.
func (c *Control) Trigger(ctx context.Context) Result {
	if c.Disabled() {
		return Result{Outcome: Ignored}
	}
	if !c.confirm.Confirm(ConfirmPrompt) {
		c.logger.Debug("reset declined", "store", c.store)
		return Result{Outcome: Declined}
	}
	return c.Run(ctx)
}

// Run deletes the store without asking. It is for callers that collected
// the confirmation themselves.
func (c *Control) Run(ctx context.Context) Result {
	if !c.Begin() {
		return Result{Outcome: Ignored}
	}
	return c.Complete(ctx)
}

// Begin marks the control busy. It returns false if it already was.
func (c *Control) Begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return false
	}
	c.busy = true
	return true
}

// Complete performs the deletion started by a successful Begin and reports
// exactly one outcome. Busy is cleared before Complete returns.
func (c *Control) Complete(ctx context.Context) Result {
	defer c.end()

	c.logger.Info("resetting local store", "store", c.store)
	err := c.deleter.Delete(ctx, c.store)
	res := classify(err)
	c.logger.Info("reset finished", "store", c.store, "outcome", res.Outcome.String(), "error", err)

	c.notify.Notify(res.Message)
	if res.Outcome == Succeeded {
		c.reload.Reload()
	}
	return res
}

func (c *Control) end() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

func classify(err error) Result {
	switch {
	case err == nil:
		return Result{Outcome: Succeeded, Message: SuccessMessage}
	case errors.Is(err, localstore.ErrBlocked):
		return Result{Outcome: Blocked, Message: BlockedMessage, Err: err}
	case errors.Is(err, localstore.ErrDeleteFailed):
		return Result{Outcome: Failed, Message: FailureMessage, Err: err}
	default:
		return Result{Outcome: Errored, Message: errorMessage(err), Err: err}
	}
}

func errorMessage(err error) string {
	return fmt.Sprintf(ErrorMessageFmt, err.Error())
}
