// Package parser optionally rewrites input lines into JSON objects before they
// are broadcast, so that the dashboard can render plain-text log formats.
//
// Supported formats:
//   - none   — lines are passed through untouched (default)
//   - logfmt — key=value pairs; values coerced to bool, int or float when possible
//   - nginx  — nginx-ingress extended format, falling back to the combined format
//
// A line that does not match the selected format is passed through as is.
package parser
