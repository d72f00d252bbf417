package middleware

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

const (
	// --- Logger Keys ---
	RequestFileLoggerKey ContextKey = "requestFileLogger"
	RequestIDHeader                 = "X-Request-ID"

	// --- JWT Middleware Keys ---
	AuthorizationHeader            = "Authorization"
	BearerPrefix                   = "Bearer "
	ClientIDKey         ContextKey = "clientID" // Authenticated client id, set by Protected

	// --- Request ID Key ---
	RequestIDKey ContextKey = "requestID"
)
