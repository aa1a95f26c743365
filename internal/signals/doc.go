// Package signals implements the local (pure) signal calculators.
//
// Every calculator has the shape (Candidate, Policy, now) -> Signal: no
// I/O, no shared state, no hidden clock. Each subscore lies in [0,1] and
// absent candidate fields are treated as unknown, never as risky or safe.
// Scoring the same candidate with the same policy and the same now is
// byte-identical across runs.
//
// The enrichment-backed signals (content risk, provenance, repository
// asymmetry, download anomaly, version flip, readme plagiarism) live behind
// the clients in internal/enrich; this package covers the six signals
// computable from the candidate snapshot alone.
package signals
