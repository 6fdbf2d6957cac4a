package fixture

import (
	"log/slog"
	"time"
)

// Outcome summarizes how a step or phase went
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Step is the result of one network call made by Setup or Teardown
type Step struct {
	Name     string
	Outcome  Outcome
	Reason   string
	Err      error
	Duration time.Duration
}

// Report records what a suite-level phase did. Phases never fail the run;
// the report is how degraded states become visible.
type Report struct {
	Phase    string
	Steps    []Step
	Started  time.Time
	Duration time.Duration
	Outcome  Outcome
}

func newReport(phase string, now time.Time) *Report {
	return &Report{Phase: phase, Started: now}
}

// Step returns the named step result, if recorded
func (r *Report) Step(name string) (Step, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return Step{}, false
}

func (r *Report) add(s Step) {
	r.Steps = append(r.Steps, s)
}

// finish computes the overall outcome: success when every step succeeded,
// skipped when nothing ran, failed when nothing succeeded, partial otherwise
func (r *Report) finish(now time.Time) {
	r.Duration = now.Sub(r.Started)

	var succeeded, failed, skipped int
	for _, s := range r.Steps {
		switch s.Outcome {
		case OutcomeSuccess:
			succeeded++
		case OutcomeFailed:
			failed++
		default:
			skipped++
		}
	}

	switch {
	case len(r.Steps) == skipped:
		r.Outcome = OutcomeSkipped
	case failed == 0 && skipped == 0:
		r.Outcome = OutcomeSuccess
	case succeeded == 0:
		r.Outcome = OutcomeFailed
	default:
		r.Outcome = OutcomePartial
	}
}

// LogValue implements slog.LogValuer
func (r *Report) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("phase", r.Phase),
		slog.String("outcome", string(r.Outcome)),
		slog.Duration("duration", r.Duration),
	}
	for _, s := range r.Steps {
		stepAttrs := []any{slog.String("outcome", string(s.Outcome))}
		if s.Reason != "" {
			stepAttrs = append(stepAttrs, slog.String("reason", s.Reason))
		}
		if s.Err != nil {
			stepAttrs = append(stepAttrs, slog.String("error", s.Err.Error()))
		}
		attrs = append(attrs, slog.Group(s.Name, stepAttrs...))
	}
	return slog.GroupValue(attrs...)
}

// level is the log level a report is written at
func (r *Report) level() slog.Level {
	switch r.Outcome {
	case OutcomeFailed, OutcomePartial:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
