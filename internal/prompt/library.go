package prompt

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Frontmatter holds the YAML frontmatter parsed from an instruction .md file.
type Frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// ParseFrontmatter splits a Markdown string into its YAML frontmatter and body.
// Frontmatter must be delimited by "---" on lines by themselves.
// Returns the parsed frontmatter, the trimmed body, and any error.
func ParseFrontmatter(content string) (*Frontmatter, string, error) {
	const delimiter = "---"

	// Must start with ---
	if !strings.HasPrefix(strings.TrimSpace(content), delimiter) {
		return nil, "", fmt.Errorf("no frontmatter found: content must start with ---")
	}

	trimmed := strings.TrimSpace(content)
	rest := trimmed[len(delimiter):]

	// Find the closing ---
	closingIdx := strings.Index(rest, "\n"+delimiter)
	if closingIdx == -1 {
		return nil, "", fmt.Errorf("no closing --- delimiter found")
	}

	yamlContent := rest[:closingIdx]
	body := strings.TrimSpace(rest[closingIdx+len("\n"+delimiter):])

	var fm Frontmatter
	if err := yaml.Unmarshal([]byte(yamlContent), &fm); err != nil {
		return nil, "", fmt.Errorf("invalid YAML frontmatter: %w", err)
	}

	if fm.Name == "" {
		return nil, "", fmt.Errorf("frontmatter missing required field: name")
	}

	return &fm, body, nil
}

// Option is a functional option for configuring Library.
type Option func(*Library)

// WithDir sets the override directory. Empty means compiled-in defaults only.
func WithDir(dir string) Option {
	return func(l *Library) {
		l.dir = dir
	}
}

// WithLogger sets a structured logger. If lg is nil it is ignored.
func WithLogger(lg *slog.Logger) Option {
	return func(l *Library) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// Library resolves named instruction blocks. Defaults are compiled in; a
// configured directory may override any block via .md files with YAML
// frontmatter. Lookup is safe for concurrent use with Reload.
type Library struct {
	dir    string
	logger *slog.Logger

	mu        sync.RWMutex
	overrides map[string]string // block name → body
}

// NewLibrary returns a Library serving compiled-in defaults, optionally
// overridden from a directory after Reload.
func NewLibrary(opts ...Option) *Library {
	l := &Library{overrides: make(map[string]string)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// log returns the library's logger, falling back to the default slog logger.
func (l *Library) log() *slog.Logger {
	if l.logger != nil {
		return l.logger
	}
	return slog.Default()
}

// Lookup returns the instruction text for the named block: the directory
// override when present, else the compiled-in default, else "".
func (l *Library) Lookup(name string) string {
	l.mu.RLock()
	body, ok := l.overrides[name]
	l.mu.RUnlock()
	if ok {
		return body
	}
	return defaults[name]
}

// Reload rescans the override directory and replaces the override set. Any
// file error leaves the previous set untouched. A missing directory clears
// the overrides (defaults only); no directory configured is a no-op.
func (l *Library) Reload() error {
	if l.dir == "" {
		return nil
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			l.mu.Lock()
			l.overrides = make(map[string]string)
			l.mu.Unlock()
			return nil
		}
		return fmt.Errorf("prompt: reading override directory %q: %w", l.dir, err)
	}

	overrides := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".md" {
			continue
		}
		path := filepath.Join(l.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("prompt: reading %q: %w", entry.Name(), err)
		}
		fm, body, err := ParseFrontmatter(string(data))
		if err != nil {
			return fmt.Errorf("prompt: parsing %q: %w", entry.Name(), err)
		}
		overrides[fm.Name] = body
	}

	l.mu.Lock()
	l.overrides = overrides
	l.mu.Unlock()

	l.log().Debug("prompt overrides loaded", "dir", l.dir, "count", len(overrides))
	return nil
}
