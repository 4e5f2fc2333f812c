package provider

import (
	"sync"

	"pasarela/internal/domain/charge"

	"github.com/rs/zerolog/log"
)

// Registry maps payment methods to their processor clients.
type Registry struct {
	mu      sync.RWMutex
	clients map[charge.Method]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[charge.Method]Client)}
}

// Register adds a client for a method.
func (r *Registry) Register(method charge.Method, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[method] = client
	log.Info().
		Str("method", string(method)).
		Str("name", client.Name()).
		Msg("registered payment provider")
}

// Client returns the client for a method.
func (r *Registry) Client(method charge.Method) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[method]
	if !ok {
		return nil, &Error{
			Class:   ClassRejected,
			Code:    "provider_not_registered",
			Message: "no provider registered for method " + string(method),
		}
	}
	return c, nil
}

// Methods returns the registered methods.
func (r *Registry) Methods() []charge.Method {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []charge.Method
	for m := range r.clients {
		out = append(out, m)
	}
	return out
}
