// Package logging builds slog loggers with the repository's console and JSON
// handlers and standard attribute helpers.
//
// Console output renders a compact human format (timestamp, level, component
// prefix, key=value attrs); JSON output is one object per line for log
// shipping. When the format is "auto" the handler is chosen by whether stderr
// is a terminal.
package logging
