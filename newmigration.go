package execsql

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const migrationTemplate = "-- %s\n-- Write your migration SQL here\n"

// CreateMigration scaffolds an empty migration file in dir and returns its path.
// description is snake_cased for the file name. mode "timestamp" prefixes the
// name with the current Unix time; any other mode leaves it bare. newline
// optionally converts the template to "LF", "CR" or "CRLF". An existing file
// is never overwritten.
func CreateMigration(dir, description, mode, newline string) (string, error) {
	name := snakeCase(description)
	if name == "" {
		return "", fmt.Errorf("%w: description %q has no usable characters", ErrUsage, description)
	}
	if strings.ToLower(mode) == "timestamp" {
		name = strconv.FormatInt(time.Now().Unix(), 10) + "_" + name
	}
	filename := name + ".sql"

	content := fmt.Sprintf(migrationTemplate, strings.TrimSpace(description))
	if newline != "" {
		var err error
		content, err = convertLineEnding(content, newline)
		if err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create migrations directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, filename)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("migration file %s already exists", path)
		}
		return "", fmt.Errorf("failed to create migration file %s: %w", path, err)
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to write migration file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

var nonAlnum = regexp.MustCompile("[^a-z0-9]+")

// snakeCase converts a string to snake_case.
func snakeCase(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonAlnum.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
