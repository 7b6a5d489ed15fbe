package constants

const (
	// Well-known MCP methods the gateway issues on its own behalf.
	MethodToolsList = "tools/list"

	// SSE event names on the session stream.
	SSEEventEndpoint = "endpoint"
	SSEEventMessage  = "message"
	SSEEventClose    = "close"

	// Path the endpoint event advertises for posting session messages.
	SSEMessagesPath = "/sse/messages"
)
