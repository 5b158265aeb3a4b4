package runlog

import (
	"log/slog"
	"time"

	"courseforge/internal/logging"
)

// Recorder binds a run id to the bus and mirrors every event into the daemon
// logger, so progress shows up in both the run stream and the process log.
type Recorder struct {
	bus    *Bus
	runID  string
	logger *slog.Logger
}

// NewRecorder builds a recorder for one run. A nil logger is replaced with a
// no-op logger so provider code never has to nil-check.
func NewRecorder(bus *Bus, runID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Recorder{bus: bus, runID: runID, logger: logger}
}

// RunID returns the run this recorder publishes for.
func (r *Recorder) RunID() string {
	if r == nil {
		return ""
	}
	return r.runID
}

// Event publishes a typed event with optional key/value fields.
func (r *Recorder) Event(evtType, stage, provider, message string, fields map[string]string) {
	if r == nil {
		return
	}
	r.bus.Append(r.runID, Event{
		Type:     evtType,
		Stage:    stage,
		Provider: provider,
		Message:  message,
		Fields:   fields,
	})
	attrs := []logging.Attr{
		logging.String(logging.FieldRunID, r.runID),
		logging.String(logging.FieldEventType, evtType),
	}
	if stage != "" {
		attrs = append(attrs, logging.String(logging.FieldStage, stage))
	}
	if provider != "" {
		attrs = append(attrs, logging.String(logging.FieldProvider, provider))
	}
	for k, v := range fields {
		attrs = append(attrs, logging.String(k, v))
	}
	r.logger.Info(message, logging.Args(attrs...)...)
}

// Warn publishes a message-level event at WARN severity.
func (r *Recorder) Warn(stage, provider, message string) {
	if r == nil {
		return
	}
	r.bus.Append(r.runID, Event{
		Type:     TypeMessage,
		Level:    "WARN",
		Stage:    stage,
		Provider: provider,
		Message:  message,
	})
	r.logger.Warn(message,
		logging.String(logging.FieldRunID, r.runID),
		logging.String(logging.FieldStage, stage),
		logging.String(logging.FieldProvider, provider))
}

// AttemptStarted records the start of a provider attempt.
func (r *Recorder) AttemptStarted(stage, provider string) {
	r.Event(TypeAttemptStarted, stage, provider, "attempting provider "+provider, nil)
}

// AttemptFinished records the outcome of a provider attempt.
func (r *Recorder) AttemptFinished(stage, provider, outcome string, elapsed time.Duration, errMsg string) {
	fields := map[string]string{
		"outcome": outcome,
		"elapsed": elapsed.Round(time.Millisecond).String(),
	}
	if errMsg != "" {
		fields["error"] = errMsg
	}
	msg := "provider " + provider + " " + outcome
	if outcome == "SUCCESS" {
		r.Event(TypeAttemptFinished, stage, provider, msg, fields)
		return
	}
	if r == nil {
		return
	}
	r.bus.Append(r.runID, Event{
		Type:     TypeAttemptFinished,
		Level:    "WARN",
		Stage:    stage,
		Provider: provider,
		Message:  msg,
		Fields:   fields,
	})
	r.logger.Warn(msg,
		logging.String(logging.FieldRunID, r.runID),
		logging.String(logging.FieldStage, stage),
		logging.String(logging.FieldProvider, provider),
		logging.String("outcome", outcome),
		logging.String("error", errMsg))
}
