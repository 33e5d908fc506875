// Package httputil provides shared HTTP response/request utilities for handlers.
//
// Every handler file should use these helpers instead of writing raw
// http.ResponseWriter calls. All responses share one envelope shape
// ({status, message, data|errors}) so clients can parse errors uniformly.
package httputil
