package constants

const (
	ContentTypeJSON   = "application/json"
	ContentTypeText   = "text/plain"
	ContentTypeSSE    = "text/event-stream"
	ContentTypeHeader = "Content-Type"
)

const (
	HeaderXRequestID  = "X-Request-ID"
	HeaderXClientName = "X-Client-Name"
	HeaderXMCPServer  = "X-MCP-Server"
	HeaderXSessionID  = "X-Session-Id"
	HeaderAccept      = "Accept"
)
