package protocol

const (
	// CurrentProtocolVersion defines the MCP version this server prefers.
	CurrentProtocolVersion = "2025-03-26"
	OldProtocolVersion     = "2024-11-05"

	// Initialization
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"

	// Tools
	MethodListTools = "tools/list"
	MethodCallTool  = "tools/call"

	// Prompts
	MethodListPrompts = "prompts/list"
	MethodGetPrompt   = "prompts/get"

	// Logging
	MethodLoggingSetLevel = "logging/setLevel"

	// Ping
	MethodPing = "ping"

	// Cancellation (notification)
	MethodCancelled = "notifications/cancelled"
)
