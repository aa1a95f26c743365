// Package ship forwards locally scored candidates to a central radar-server
// over its HTTP ingest endpoint. Delivery is buffered and lossy under
// pressure: the newest batch always wins, and failed sends retry with
// truncated exponential backoff.
package ship
