// Package cmap provides a concurrent-safe sharded map.
//
// The tunnel agent uses it as the in-flight request registry: many
// correlation ids are registered and removed concurrently by the
// transport's receive path and by forwarder completions. Sharding with
// a per-shard RWMutex keeps contention low without the allocation
// overhead of sync.Map.
//
// All operations are safe for concurrent use. Pop removes and returns
// a value atomically, which callers use to guarantee a key is claimed
// by exactly one goroutine.
package cmap
