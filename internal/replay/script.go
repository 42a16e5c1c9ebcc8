// Package replay feeds a recorded or hand-written event script through a detection manager on a
// manual clock, so heuristics can be exercised deterministically outside a live server.
package replay

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Script is the YAML document a replay runs.
//
//	world: overworld
//	players:
//	  - name: steve
//	steps:
//	  - at: 50ms
//	    player: steve
//	    event: player.move
//	    data: {from: [0, 64, 0], to: [0, 64.6, 0]}
//	  - at: 1s
//	    tick: true
//	  - at: 2s
//	    despawn: steve
type Script struct {
	World   string   `yaml:"world"`
	Players []Player `yaml:"players"`
	Steps   []Step   `yaml:"steps"`
}

type Player struct {
	Name   string    `yaml:"name"`
	ID     uuid.UUID `yaml:"id"`
	CanFly bool      `yaml:"can_fly"`
}

// Step is exactly one of an event, a tick or a despawn, happening at engine time At.
type Step struct {
	At      time.Duration `yaml:"at"`
	Player  string        `yaml:"player"`
	Event   string        `yaml:"event"`
	Data    yaml.Node     `yaml:"data"`
	Tick    bool          `yaml:"tick"`
	Despawn string        `yaml:"despawn"`
}

// Load decodes and validates a script.
func Load(r io.Reader) (*Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Script) Validate() error {
	var errs []error
	names := make(map[string]struct{}, len(s.Players))
	for i, p := range s.Players {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("players[%d]: missing name", i))
			continue
		}
		if _, dup := names[p.Name]; dup {
			errs = append(errs, fmt.Errorf("players[%d]: duplicate name %q", i, p.Name))
		}
		names[p.Name] = struct{}{}
	}

	for i, st := range s.Steps {
		kinds := 0
		if st.Event != "" {
			kinds++
			if _, ok := names[st.Player]; !ok {
				errs = append(errs, fmt.Errorf("steps[%d]: unknown player %q", i, st.Player))
			}
		}
		if st.Tick {
			kinds++
		}
		if st.Despawn != "" {
			kinds++
			if _, ok := names[st.Despawn]; !ok {
				errs = append(errs, fmt.Errorf("steps[%d]: unknown player %q", i, st.Despawn))
			}
		}
		if kinds != 1 {
			errs = append(errs, fmt.Errorf("steps[%d]: need exactly one of event, tick or despawn", i))
		}
		if st.At < 0 {
			errs = append(errs, fmt.Errorf("steps[%d]: negative time %s", i, st.At))
		}
	}
	return errors.Join(errs...)
}
