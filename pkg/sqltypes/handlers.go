package sqltypes

import "sync"

// Context identifies where a value is headed, so handlers and error messages
// can name the target.
type Context struct {
	Engine     string
	Table      string
	Column     string
	NativeType string // engine-native type name, keys the handler registry
}

// Handler is a caller-registered override for one engine-native type name.
// RequiresCasting lets a handler decline values it wants the built-in rules
// to process.
type Handler interface {
	Cast(value any, ctx Context) (any, error)
	RequiresCasting(value any) bool
}

// HandlerRegistry maps engine-native type names to custom handlers.
// Safe for concurrent use.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewHandlerRegistry returns an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]Handler)}
}

// Register installs a handler for an engine-native type name, replacing any
// previous handler for that name.
func (r *HandlerRegistry) Register(nativeType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[nativeType] = h
}

// Lookup returns the handler for a native type name, or nil.
func (r *HandlerRegistry) Lookup(nativeType string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[nativeType]
}
