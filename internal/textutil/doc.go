// Package textutil provides text normalization helpers shared across the
// pipeline, most importantly the story-title slug used to key artifact
// directories on disk.
package textutil
