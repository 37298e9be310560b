package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"parley/internal/domain"
)

// Lister is the slice of the remote client the catalog needs.
type Lister interface {
	ListTools(ctx context.Context) ([]domain.ToolDefinition, error)
}

// Catalog caches the remote tool list. The orchestrator refreshes it once
// per turn; the executor reads schemas from the same snapshot, so prompt
// documentation and validation agree for the duration of a turn.
type Catalog struct {
	lister Lister

	mu   sync.RWMutex
	defs []domain.ToolDefinition
}

// NewCatalog creates a catalog backed by the given lister.
// Panics if lister is nil.
func NewCatalog(lister Lister) *Catalog {
	if lister == nil {
		panic("catalog: lister must not be nil")
	}
	return &Catalog{lister: lister}
}

// Refresh fetches the current tool list, replaces the cached definitions,
// and returns them. On failure the previous cache is kept.
func (c *Catalog) Refresh(ctx context.Context) ([]domain.ToolDefinition, error) {
	defs, err := c.lister.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog refresh: %w", err)
	}
	c.mu.Lock()
	c.defs = defs
	c.mu.Unlock()
	return defs, nil
}

// Definitions returns the cached tool list from the last successful Refresh.
func (c *Catalog) Definitions() []domain.ToolDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.ToolDefinition, len(c.defs))
	copy(out, c.defs)
	return out
}

// SchemaFor returns the cached input schema for the named tool.
func (c *Catalog) SchemaFor(name string) (json.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, d := range c.defs {
		if d.Name == name {
			return d.InputSchema, len(d.InputSchema) > 0
		}
	}
	return nil, false
}

// RenderText formats tool definitions for prompt embedding: one block per
// tool with its description and, when present, its input schema.
func RenderText(defs []domain.ToolDefinition) string {
	if len(defs) == 0 {
		return "(no tools available)"
	}
	var b strings.Builder
	for _, d := range defs {
		b.WriteString("- ")
		b.WriteString(d.Name)
		if d.Description != "" {
			b.WriteString(": ")
			b.WriteString(d.Description)
		}
		b.WriteString("\n")
		if len(d.InputSchema) > 0 {
			b.WriteString("  input schema: ")
			b.Write(compactJSON(d.InputSchema))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func compactJSON(raw json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
