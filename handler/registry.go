package handler

import (
	"sync"

	"github.com/localrivet/currentdt/options"
	"github.com/localrivet/currentdt/protocol"
	"github.com/localrivet/currentdt/util/schema"
)

// DateTimeToolName is the name of the datetime tool.
const DateTimeToolName = "get_current_datetime"

// DateTimeTool returns the datetime tool definition. The input schema is
// generated from options.Options.
func DateTimeTool() protocol.Tool {
	readOnly := true
	return protocol.Tool{
		Name: DateTimeToolName,
		Description: "Get the current date and time with optional formatting and provider selection. " +
			"Essential for creating timestamped files, logs, database migrations, and any time-sensitive " +
			"development tasks. Supports ISO format (default) and custom formats using tokens like " +
			"YYYY, MM, DD, HH, mm, ss, SSS.",
		InputSchema: schema.FromStruct(options.Options{}),
		Annotations: &protocol.ToolAnnotations{
			Title:        "Current date and time",
			ReadOnlyHint: &readOnly,
		},
	}
}

// ToolRegistry holds tool definitions in registration order.
type ToolRegistry struct {
	mu    sync.RWMutex
	names []string
	tools map[string]protocol.Tool
}

// NewToolRegistry returns an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]protocol.Tool)}
}

// Register adds or replaces tool.
func (r *ToolRegistry) Register(tool protocol.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name]; !exists {
		r.names = append(r.names, tool.Name)
	}
	r.tools[tool.Name] = tool
}

// Get returns the tool registered under name.
func (r *ToolRegistry) Get(name string) (protocol.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// All returns every tool in registration order.
func (r *ToolRegistry) All() []protocol.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.Tool, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.tools[name])
	}
	return out
}

// Has reports whether name is registered.
func (r *ToolRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Clear removes every tool.
func (r *ToolRegistry) Clear() {
	r.mu.Lock()
	r.names = nil
	r.tools = make(map[string]protocol.Tool)
	r.mu.Unlock()
}
