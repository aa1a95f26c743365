// Package corpus loads the curated corpus of package names known to be
// hallucinated by generative assistants. The corpus is a YAML file with an
// "exact" list of names and a "patterns" list of regular expressions, both
// matched case-insensitively. The corpus is loaded once into the Policy at
// startup — there is no process-global cache.
package corpus
