// Package currentdt is an MCP server exposing one tool,
// get_current_datetime, which returns the current date and time from a
// selectable time source in a requested format.
//
// # Organization
//
//   - github.com/localrivet/currentdt/format: format specs and rendering
//   - github.com/localrivet/currentdt/options: tool argument sanitizing and validation
//   - github.com/localrivet/currentdt/provider: time sources and selection
//   - github.com/localrivet/currentdt/service: the request pipeline
//   - github.com/localrivet/currentdt/handler: tool registry and error translation
//   - github.com/localrivet/currentdt/server: JSON-RPC method routing
//   - github.com/localrivet/currentdt/transport: stdio, WebSocket and HTTP transports
//   - github.com/localrivet/currentdt/config: configuration files and runtime updates
//
// The server binary lives in cmd/currentdt-mcp.
package currentdt

// Name is the server name reported in 'initialize'.
const Name = "@strix-ai/currentdt-mcp"

// Version is the server version.
const Version = "1.0.0"

// Instructions is returned to clients in 'initialize'.
const Instructions = "Call get_current_datetime to read the current date and time. " +
	"Pass format (iso, filename, logdate, simple, or a template of YYYY, MM, DD, HH, mm, ss, SSS tokens) " +
	"and provider (local or remote) to override the defaults."
