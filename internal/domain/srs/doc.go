// Package srs implements the SuperMemo-2 derived scheduling rule. Given an
// item's current review state and a rating it produces the next state. The
// package is pure: no I/O, no clock reads, no shared state.
package srs
