// Package ecs provides ECS adapters for loam.
package ecs

import (
	"github.com/phanxgames/loam"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

// BakeEventType is the Donburi event type for loam entity bake events.
// Subscribe to this in your ECS systems to know when an entity has been
// permanently composited into the background cache and can drop its
// per-frame render components.
var BakeEventType = events.NewEventType[loam.BakeEvent]()

type donburiSink struct {
	world donburi.World
}

// NewDonburiSink creates a BakeSink backed by a Donburi world.
// Bake events are published to BakeEventType and can be consumed with
// events.Subscribe and ProcessEvents.
func NewDonburiSink(world donburi.World) loam.BakeSink {
	return &donburiSink{world: world}
}

func (s *donburiSink) EmitBake(event loam.BakeEvent) {
	BakeEventType.Publish(s.world, event)
}
