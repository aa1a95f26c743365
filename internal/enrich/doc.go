// Package enrich provides the enrichment clients: independent, time-bounded
// wrappers around external services that each fill exactly one signal slot.
//
// Every client implements the Client interface and is individually failable;
// a timeout or transport error degrades only that client's signal to its
// default (the absent value) and never aborts sibling clients. The factory
// New builds the set of clients enabled by policy toggles; authentication
// headers are injected by a shared RoundTripper so individual clients
// receive a pre-configured *http.Client.
//
// Implemented clients: repository facts (repofacts.go), readme plagiarism
// (plagiarism.go), download statistics (downloads.go), release history
// (versions.go), provenance (provenance.go), artifact content scan
// (content.go), dependents count (dependents.go), vulnerability lookup
// (osv.go). The last two are advisory: they carry reasons but no default
// weight.
package enrich
