// Package domain contains the core entities of the scheduling engine: the
// per-item review state, the closed set of review ratings, study domains
// with their identifier resolution rules, and the derived mastery figures.
// It has no knowledge of storage or transport.
package domain
