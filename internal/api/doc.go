// Package api exposes review, due, flag and mastery operations over HTTP.
// Handlers only translate between HTTP and the services: they parse path
// parameters, decode and validate bodies, and map service errors to status
// codes without leaking internal details. There is no authentication; the
// learner is named in the path.
package api
