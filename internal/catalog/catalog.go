package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultDir is the directory wg-quick reads configurations from.
const DefaultDir = "/etc/wireguard"

// DefaultPattern matches every configuration name.
const DefaultPattern = "^"

// confSuffix admits entries that are not regular files, e.g. a symlink named home.conf.conf.
const confSuffix = ".conf"

// ErrNoMatch is matched by errors.Is for every *NoMatchError.
var ErrNoMatch = errors.New("no matching configuration")

// NoMatchError reports that no configuration name satisfied a pattern.
type NoMatchError struct {
	Pattern string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no configurations matching pattern '%s'", e.Pattern)
}

func (e *NoMatchError) Is(target error) bool { return target == ErrNoMatch }

// Enumerate lists the configuration names found in dir.
// An entry is a candidate when it is a regular file or when its derived name ends
// in ".conf". Entries that cannot be inspected or whose name is not valid UTF-8 are
// logged and skipped. The order of the result is unspecified.
func Enumerate(dir string) ([]string, error) {
	f, err := os.Open(filepath.Clean(dir))
	if err != nil {
		return nil, fmt.Errorf("open config dir: %w", err)
	}
	defer func() { _ = f.Close() }()

	entries, err := f.Readdirnames(-1)
	if err != nil {
		return nil, fmt.Errorf("read config dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, ent := range entries {
		fi, err := os.Lstat(filepath.Join(dir, ent))
		if err != nil {
			slog.Warn("file type", "entry", ent, "error", err)
			continue
		}
		if !utf8.ValidString(ent) {
			slog.Warn("bad entry", "entry", fmt.Sprintf("%q", ent), "error", "name is not valid UTF-8")
			continue
		}
		name := Stem(ent)
		if fi.Mode().IsRegular() || strings.HasSuffix(name, confSuffix) {
			names = append(names, name)
		}
	}
	return names, nil
}

// Stem strips the final extension from a file base name.
// A leading dot does not start an extension, so ".hidden" stays ".hidden".
func Stem(base string) string {
	i := strings.LastIndexByte(base, '.')
	if i <= 0 {
		return base
	}
	return base[:i]
}

// Match keeps the names that pattern matches anywhere.
func Match(names []string, pattern *regexp.Regexp) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if pattern.MatchString(n) {
			out = append(out, n)
		}
	}
	return out
}

// Find enumerates dir and returns the names matched by pattern.
func Find(dir string, pattern *regexp.Regexp) ([]string, error) {
	names, err := Enumerate(dir)
	if err != nil {
		return nil, err
	}
	return Match(names, pattern), nil
}

// CompilePattern compiles a user supplied pattern; an empty pattern selects everything.
func CompilePattern(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		expr = DefaultPattern
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	return re, nil
}
