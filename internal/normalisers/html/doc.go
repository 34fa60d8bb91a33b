// Package html provides a Normaliser implementation for HTML sources.
// It extracts readable text from fetched pages, stripping tags, scripts,
// navigation and styles, and decoding entities.
package html
