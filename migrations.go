package execsql

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Migration references a single SQL file inside the migrations directory.
type Migration struct {
	// Name is the file name as given on the command line.
	Name string

	// Path is the resolved location of the file.
	Path string

	// Md5 is the MD5 checksum of the file contents.
	Md5 string

	// Size is the file size in bytes.
	Size int64
}

// SQL reads the migration file's content. The text is returned unmodified.
func (m Migration) SQL() (string, error) {
	data, err := os.ReadFile(m.Path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// validateName rejects anything that is not a bare file name.
func validateName(name string) error {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return fmt.Errorf("%w: a migration file name is required", ErrUsage)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q is not a file name", ErrUsage, name)
	case strings.ContainsAny(name, `/\`) || filepath.Base(name) != name:
		return fmt.Errorf("%w: %q must be a file name inside the migrations directory, not a path", ErrUsage, name)
	}
	return nil
}

// ResolveMigration locates name inside dir. The file must exist and be a
// regular file; no network activity happens here.
func ResolveMigration(dir, name string) (Migration, error) {
	if err := validateName(name); err != nil {
		return Migration{}, err
	}
	name = strings.TrimSpace(name)
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Migration{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Migration{}, err
	}
	if info.IsDir() {
		return Migration{}, fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}
	sum, err := fileChecksum(path)
	if err != nil {
		return Migration{}, err
	}
	return Migration{
		Name: name,
		Path: path,
		Md5:  sum,
		Size: info.Size(),
	}, nil
}

// ListMigrations returns every *.sql file in dir sorted by name.
func ListMigrations(dir string) ([]Migration, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	var migrations []Migration
	for _, file := range files {
		m, err := ResolveMigration(dir, filepath.Base(file))
		if err != nil {
			// Directories named *.sql and names that cannot be passed back
			// as a migration name are skipped.
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUsage) {
				continue
			}
			return nil, err
		}
		migrations = append(migrations, m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Name < migrations[j].Name
	})
	return migrations, nil
}

// convertLineEnding converts all newline variations in content to the target style.
func convertLineEnding(content, lineEnding string) (string, error) {
	var target string
	switch lineEnding {
	case "LF":
		target = "\n"
	case "CR":
		target = "\r"
	case "CRLF":
		target = "\r\n"
	default:
		return "", fmt.Errorf("newline must be one of: LF, CR, CRLF")
	}
	re := regexp.MustCompile(`\r\n|\r|\n`)
	return re.ReplaceAllString(content, target), nil
}

func checksum(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}

// fileChecksum reads a file and returns its MD5 checksum.
func fileChecksum(filename string) (string, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return "", err
	}
	return checksum(data), nil
}
