// Package game is a minimal host model: players living in a world and the raw events the host
// adapter reports for them.
package game

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/warden/internal/core/events"
)

const (
	KindMove   events.Kind = "player.move"
	KindAttack events.Kind = "player.attack"
)

type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Len() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// UnmarshalYAML accepts the [x, y, z] form.
func (v *Vec3) UnmarshalYAML(node *yaml.Node) error {
	var xyz []float64
	if err := node.Decode(&xyz); err != nil {
		return err
	}
	if len(xyz) != 3 {
		return fmt.Errorf("line %d: vector needs 3 components, got %d", node.Line, len(xyz))
	}
	v.X, v.Y, v.Z = xyz[0], xyz[1], xyz[2]
	return nil
}

// Player is the live entity stored in the world.
type Player struct {
	ID       uuid.UUID
	Name     string
	CanFly   bool
	Position Vec3
}

// Move is reported once per client position packet.
type Move struct {
	From     Vec3 `yaml:"from"`
	To       Vec3 `yaml:"to"`
	OnGround bool `yaml:"on_ground"`
}

func (Move) Kind() events.Kind { return KindMove }

// Rise is the vertical distance covered by the move.
func (m Move) Rise() float64 { return m.To.Y - m.From.Y }

// Attack is reported when a player hits another entity.
type Attack struct {
	Target uuid.UUID `yaml:"target"`
	Reach  float64   `yaml:"reach"`
}

func (Attack) Kind() events.Kind { return KindAttack }
