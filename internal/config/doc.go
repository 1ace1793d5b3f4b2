// Package config loads the leno configuration.
//
// Sources, later ones winning:
//  1. built-in defaults (port 3000, info/text logging, no line format)
//  2. an optional YAML file (--config)
//  3. a .env file in the working directory, if present
//  4. environment variables:
//     - LENO_PORT: HTTP listen port
//     - LENO_LOG_LEVEL: debug | info | warn | error
//     - LENO_LOG_FORMAT: text | json
//     - LENO_LINE_FORMAT: none | logfmt | nginx
//     - LENO_MAX_CONNECTIONS: concurrent WebSocket cap (0 = unlimited)
//
// Load(path) applies defaults, the file, then the environment, and validates
// the result.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly loaded Config. Only the log level and line format
// are applied at runtime; other fields need a restart.
package config
