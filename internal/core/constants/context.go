package constants

const (
	ContextRequestIdKey = "request_id" // generated per request, echoed in X-Request-ID
)
