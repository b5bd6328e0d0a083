package dispatch

import (
	"context"
	"fmt"
	"sync"

	"modpipe/payload"
	"modpipe/status"
	"modpipe/stream"
)

// HandlerFunc handles the calls registered under one function name. It has
// the same contract as Service.Call minus the name.
type HandlerFunc func(ctx context.Context, args *payload.Payload) (*stream.Receiver, error)

// Mux routes calls to handlers by function name. The zero value is not
// usable; create one with NewMux.
//
// Handle calls normally all happen during module setup, but registration is
// locked so a module may also register lazily from handlers.
type Mux struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewMux() *Mux {
	return &Mux{handlers: make(map[string]HandlerFunc)}
}

// Handle registers fn under the given function name. It panics on an empty
// name, a nil handler, or a duplicate registration, mirroring
// http.ServeMux: these are programming errors worth failing loudly at
// startup.
func (m *Mux) Handle(name string, fn HandlerFunc) {
	if name == "" {
		panic("dispatch: Handle called with empty function name")
	}
	if fn == nil {
		panic("dispatch: Handle called with nil handler")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.handlers[name]; dup {
		panic(fmt.Sprintf("dispatch: duplicate handler for %q", name))
	}
	m.handlers[name] = fn
}

// Call implements Service. Unknown functions are rejected with a NotFound
// status.
func (m *Mux) Call(ctx context.Context, function string, args *payload.Payload) (*stream.Receiver, error) {
	m.mu.RLock()
	fn, ok := m.handlers[function]
	m.mu.RUnlock()
	if !ok {
		return nil, status.Newf(status.NotFound, "function %q not found", function)
	}
	return fn(ctx, args)
}
