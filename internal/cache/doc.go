// Package cache stores built hierarchies keyed by a digest of the raw
// screenshot bytes.
//
// Entries expire DefaultTTL (12h) after creation. Expiry is lazy: Get treats
// an expired entry as a miss, and a miss is never an error. Callers always
// fall back to detecting and building again.
//
// # Backends
//
//   - Memory: process-local map, bounded by MaxEntries, optional sweeper
//   - Redis: shared store using native key TTL, JSON encoded
//   - Tiered: Memory in front of Redis
//
// Concurrent Put calls for the same hash race; the last write wins.
package cache
