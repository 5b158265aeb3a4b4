// Package logging wires slog handlers for courseforge components.
//
// It builds console or JSON loggers from configuration, exposes shared
// attribute helpers and standardized field keys (run_id, stage, provider),
// and derives structured fields from request contexts so every pipeline log
// line carries its run identity without per-call plumbing.
package logging
