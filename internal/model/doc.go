// Package model defines the shared value types of the radar pipeline:
// candidates under evaluation, per-signal subscores, the score breakdown,
// and the registry existence classification. These are the canonical
// in-memory representations shared by the CLI and the server, separate
// from any wire or file format.
package model
