// Package feed routes scored candidates into the primary feed or the
// watchlist and renders the top-N report in JSON and Markdown forms.
package feed
