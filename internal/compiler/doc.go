// Package compiler is a single-pass Pratt compiler from Lox source to
// bytecode. It allocates functions, strings and constants directly on a
// vm.Heap and keeps every in-progress function reachable by registering
// itself as a root source for the duration of Compile.
//
// Errors are reported through a diag.Reporter in panic mode: after the first
// error in a statement further errors are suppressed until the parser
// resynchronizes at a statement boundary.
package compiler
