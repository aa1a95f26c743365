// Package ws implements the WebSocket hub that pushes the live top-N feed
// to connected dashboard clients on a fixed interval.
package ws
