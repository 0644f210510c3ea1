// Package token defines the lexical vocabulary of Lox scripts.
package token
