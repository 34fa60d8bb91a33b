// Package normalisers provides implementations of the Normaliser interface
// for the text formats handed over by extraction. Each normaliser knows how
// to turn one family of format tags into plain text.
//
// Registry dispatches on a source's format tag; Defaults wires the
// built-in normalisers.
package normalisers
