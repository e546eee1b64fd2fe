// Package httputil provides shared HTTP response helpers for API handlers.
//
// Handlers use these instead of writing raw http.ResponseWriter calls so the
// console API keeps one JSON envelope, one error shape, and one place where
// encode failures get logged.
package httputil
