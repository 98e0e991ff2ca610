// Package logging defines the minimal Logger interface used across
// AgentGraph plus slog-backed and no-op implementations.
package logging
