// Package sources normalizes registry "recently published" streams into
// candidates: the npm replication changes feed and the PyPI RSS feeds, each
// resolved through the registry's metadata API. An offline JSONL seed loader
// covers air-gapped runs.
package sources
