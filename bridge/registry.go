package bridge

import (
	"encoding/json"
	"slices"
	"sync"
)

// Handler is the type-erased dispatch function stored per topic. It receives
// the raw data member and is responsible for decoding it.
type Handler func(data json.RawMessage)

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds handler to topic, replacing any previous handler.
func (r *Registry) Register(topic string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[topic] = handler
}

func (r *Registry) Lookup(topic string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[topic]
	return h, ok
}

func (r *Registry) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics := make([]string, 0, len(r.handlers))
	for topic := range r.handlers {
		topics = append(topics, topic)
	}
	slices.Sort(topics)
	return topics
}
