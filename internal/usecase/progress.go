package usecase

import (
	"context"
	"fmt"
	"log/slog"
)

// Phase names the stage of an operation a progress event belongs to.
type Phase string

const (
	PhaseValidate Phase = "validate"
	PhaseMeasure  Phase = "measure"
	PhaseCleanup  Phase = "cleanup"
	PhaseArchive  Phase = "archive"
	PhaseRestore  Phase = "restore"
	PhaseExtract  Phase = "extract"
	PhaseDone     Phase = "done"
)

// ProgressEvent is one line of the progress stream. Current and Total are
// set for counting events (files archived, files restored) and zero otherwise.
type ProgressEvent struct {
	Phase   Phase
	Level   slog.Level
	Message string
	Current int64
	Total   int64
}

// ProgressFunc receives progress events synchronously on the calling goroutine.
type ProgressFunc func(ProgressEvent)

// progressEvery is how many files pass between two counting events.
const progressEvery = 1000

// skipSampleLimit bounds how many per-file failure reasons are reported.
const skipSampleLimit = 10

type reporter struct {
	sink   ProgressFunc
	logger *slog.Logger
}

// newReporter falls back to logging through logger when sink is nil.
func newReporter(sink ProgressFunc, logger *slog.Logger) *reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &reporter{sink: sink, logger: logger}
}

func (r *reporter) emit(ev ProgressEvent) {
	if r.sink != nil {
		r.sink(ev)
		return
	}
	attrs := []any{"phase", string(ev.Phase)}
	if ev.Total > 0 || ev.Current > 0 {
		attrs = append(attrs, "current", ev.Current, "total", ev.Total)
	}
	r.logger.Log(context.Background(), ev.Level, ev.Message, attrs...)
}

func (r *reporter) logf(phase Phase, format string, a ...any) {
	r.emit(ProgressEvent{Phase: phase, Level: slog.LevelInfo, Message: fmt.Sprintf(format, a...)})
}

func (r *reporter) warnf(phase Phase, format string, a ...any) {
	r.emit(ProgressEvent{Phase: phase, Level: slog.LevelWarn, Message: fmt.Sprintf(format, a...)})
}

func (r *reporter) errorf(phase Phase, format string, a ...any) {
	r.emit(ProgressEvent{Phase: phase, Level: slog.LevelError, Message: fmt.Sprintf(format, a...)})
}

func (r *reporter) count(phase Phase, current, total int64, format string, a ...any) {
	r.emit(ProgressEvent{
		Phase:   phase,
		Level:   slog.LevelInfo,
		Message: fmt.Sprintf(format, a...),
		Current: current,
		Total:   total,
	})
}

func (r *reporter) banner(phase Phase, title string) {
	r.logf(phase, "==================== %s ====================", title)
}
