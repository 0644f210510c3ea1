// Package diag defines compile-time diagnostics shared by the lexer, the
// compiler and the image loader.
//
// Producers emit through a Reporter; BagReporter collects into a Bag that
// keeps at most a fixed number of them. Rendering lives in diagfmt.
//
// Runtime errors are not diagnostics. They belong to the VM.
package diag
