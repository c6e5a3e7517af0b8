package execsql

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfig is returned when the endpoint URL or access key is missing
	// or the configuration is otherwise unusable.
	ErrConfig = errors.New("configuration error")

	// ErrUsage is returned for a missing or malformed migration file name.
	ErrUsage = errors.New("usage error")

	// ErrNotFound is returned when the named migration file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrRemote matches every *RemoteError via errors.Is.
	ErrRemote = errors.New("remote execution error")
)

// RemoteError is a failure reported by the backend for the submitted SQL.
type RemoteError struct {
	// Status is the HTTP status for the rest backend; zero for pg.
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *RemoteError) Error() string {
	var b strings.Builder
	b.WriteString("remote execution failed")
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Details != "" {
		b.WriteString("; details: ")
		b.WriteString(e.Details)
	}
	if e.Hint != "" {
		b.WriteString("; hint: ")
		b.WriteString(e.Hint)
	}
	return b.String()
}

// Is reports whether target is ErrRemote.
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}
