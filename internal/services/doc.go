// Package services defines the error taxonomy and context annotations shared
// by provider clients and the pipeline.
//
// Provider failures are wrapped with sentinel markers (validation, timeout,
// external tool, transient) so the chain engine and run coordinator can
// classify outcomes with errors.Is instead of string matching.
package services
