// Package logging configures the process-wide slog logger for fusionsearch.
//
// Logs are JSON lines. They go to stderr by default and, when a file path is
// configured, to a size-rotated file as well. The stdio MCP transport owns
// stdout and stderr, so serve mode logs to the file only.
package logging
