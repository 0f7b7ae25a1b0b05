// Package ciutil detects the execution environment and locates the live
// backing services that integration tests run against.
package ciutil
