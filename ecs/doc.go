// Package ecs provides ECS adapters for loam's entity bake notifications.
//
// The primary adapter is [NewDonburiSink], which bridges loam bake events
// (emitted when an entity is first composited permanently into the background
// cache) into a [Donburi] world as typed events. Subscribe to [BakeEventType]
// in your ECS systems to receive them.
//
// Usage:
//
//	sink := ecs.NewDonburiSink(world)
//	layer.SetBakeSink(sink)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
