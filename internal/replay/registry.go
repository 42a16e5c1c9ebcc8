package replay

import (
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/warden/internal/core/events"
)

// Decoder turns the data node of a script step into a host event.
type Decoder func(node *yaml.Node) (events.Event, error)

// Registry maps event kinds to decoders.
type Registry struct {
	mu       sync.RWMutex
	decoders map[events.Kind]Decoder
}

func NewRegistry() *Registry {
	return &Registry{decoders: make(map[events.Kind]Decoder)}
}

func (r *Registry) Register(kind events.Kind, dec Decoder) {
	r.mu.Lock()
	r.decoders[kind] = dec
	r.mu.Unlock()
}

// Register makes events of type T decodable straight from their YAML form.
func Register[T events.Event](r *Registry) {
	r.Register(events.KindOf[T](), func(node *yaml.Node) (events.Event, error) {
		var ev T
		if node.Kind != 0 {
			if err := node.Decode(&ev); err != nil {
				return nil, err
			}
		}
		return ev, nil
	})
}

func (r *Registry) Decode(kind events.Kind, node *yaml.Node) (events.Event, error) {
	r.mu.RLock()
	dec := r.decoders[kind]
	r.mu.RUnlock()
	if dec == nil {
		return nil, fmt.Errorf("unknown event kind: %s", kind)
	}
	return dec(node)
}

func (r *Registry) Kinds() []events.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]events.Kind, 0, len(r.decoders))
	for k := range r.decoders {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
