// Package analysis holds the content-inspection primitives used by the
// enrichment clients: character n-gram Jaccard similarity for readme
// plagiarism detection, and artifact unpacking plus static pattern scanning
// for content risk. Unpacking enforces path-traversal protection and all
// temporary directories are scoped to a single scoring call.
package analysis
