// Package store holds the server's in-memory scoring state: a thread-safe
// result store with TTL eviction plus the companion watchlist.
package store
