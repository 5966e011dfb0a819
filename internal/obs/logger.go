// Package obs provides the runtime's structured logging sink, built on
// logiface fronting stumpy, mirroring the factory pattern in
// logiface-stumpy's own examples. It is intentionally thin: the runtime
// threads a *Logger explicitly through constructors rather than reaching
// for a package-level global, so tests can construct independent runtimes
// without cross-talk.
package obs

import (
	"io"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger wraps the logiface/stumpy logger with the handful of fields the
// runtime actually emits: lifecycle transitions, safety violations, task
// faults and resource leaks. Decoder and engine hot paths never log.
type Logger struct {
	l *logiface.Logger[*stumpy.Event]
}

// New constructs a Logger writing newline-delimited JSON to w. A nil w
// defaults to stumpy's own default (os.Stderr).
func New(w io.Writer) *Logger {
	opts := []stumpy.Option{stumpy.WithTimeField(`ts`)}
	if w != nil {
		opts = append(opts, stumpy.WithWriter(w))
	}
	return &Logger{l: stumpy.L.New(stumpy.L.WithStumpy(opts...))}
}

// Discard returns a Logger that drops every event, used by tests and by
// RuntimeConfig when logging is not configured.
func Discard() *Logger { return New(io.Discard) }

func (lg *Logger) RuntimeInit(heapBytes int, asil string) {
	lg.l.Info().Int(`heap_bytes`, heapBytes).Str(`asil`, asil).Log(`runtime initialized`)
}

func (lg *Logger) AsilTransition(old, new string) {
	lg.l.Notice().Str(`from`, old).Str(`to`, new).Log(`asil level changed`)
}

func (lg *Logger) SafetyViolation(category string, total uint64) {
	lg.l.Warning().Str(`category`, category).Uint64(`total`, total).Log(`safety violation recorded`)
}

func (lg *Logger) TaskFaulted(taskID uint64, reason string) {
	lg.l.Err().Uint64(`task_id`, taskID).Str(`reason`, reason).Log(`task faulted`)
}

func (lg *Logger) ResourceLeak(instanceID uint64, live int) {
	lg.l.Err().Uint64(`instance_id`, instanceID).Int(`live_count`, live).Log(`instance dropped with leaked resources`)
}

func (lg *Logger) GlobalFuelExhausted(paused int) {
	lg.l.Warning().Int(`paused_tasks`, paused).Log(`global fuel ceiling reached, pausing tasks`)
}

func (lg *Logger) ScopeBudgetExceeded(crateID int, budget int) {
	lg.l.Debug().Int(`crate_id`, crateID).Int(`budget`, budget).Log(`scope budget exceeded`)
}
