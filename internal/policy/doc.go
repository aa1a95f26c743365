// Package policy loads the scoring policy from a YAML file.
//
// A Policy is loaded once per run and treated as read-only for the lifetime
// of a scoring run; nothing mutates it, so no locks are needed. Missing
// optional fields are filled with documented defaults at load time — an
// incomplete policy file never prevents startup. Weights are the exception:
// when a weights block is present, signals it omits contribute 0 to the
// total (the literal-sum contract), and no renormalization is applied.
//
// watch.go provides fsnotify-based hot reload used by radar-server.
package policy
