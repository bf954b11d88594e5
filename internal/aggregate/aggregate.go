// Package aggregate holds the contracts used to combine GetFeature responses.
package aggregate

// PageMerger concatenates the pages of one paged WFS query into a single
// FeatureCollection, preserving page order. Implementations may drop
// features repeated across page boundaries.
type PageMerger interface {
	Merge(pages [][]byte) ([]byte, error)
}
