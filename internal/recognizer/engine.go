package recognizer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"
)

// ErrClosed is returned by Engine methods after Close.
var ErrClosed = errors.New("recognition engine closed")

// Error reports a backend failure during configure or recognize.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("recognizer %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Engine owns a Backend and serializes every configure/recognize call on it.
// A language switch is performed lazily by the call that needs it, while the
// engine is held, so it can never interleave with an in-flight recognition.
//
// Cancellation is observed before acquiring the engine and while waiting for
// the backend. A backend call that is already running cannot be interrupted;
// the engine stays held until it returns and its result is discarded.
type Engine struct {
	backend Backend
	mode    string

	// sem has capacity one. Holding the token means owning backend and key.
	sem    chan struct{}
	key    string
	closed bool
}

// NewEngine wraps backend. mode is folded into the configuration key so that
// backends with several operating modes reconfigure when it changes.
func NewEngine(backend Backend, mode string) *Engine {
	return &Engine{
		backend: backend,
		mode:    mode,
		sem:     make(chan struct{}, 1),
	}
}

type outcome struct {
	rec Recognition
	err error
}

// Recognize runs img through the backend configured for langs.
// On cancellation it returns ctx.Err() unwrapped.
func (e *Engine) Recognize(ctx context.Context, langs []string, img image.Image) (Recognition, error) {
	if err := ctx.Err(); err != nil {
		return Recognition{}, err
	}
	if len(langs) == 0 {
		langs = DefaultLanguages
	}

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return Recognition{}, ctx.Err()
	}
	if e.closed {
		<-e.sem
		return Recognition{}, ErrClosed
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() { <-e.sem }()
		done <- e.run(langs, img)
	}()

	select {
	case out := <-done:
		return out.rec, out.err
	case <-ctx.Done():
		return Recognition{}, ctx.Err()
	}
}

// run must be called while holding sem.
func (e *Engine) run(langs []string, img image.Image) outcome {
	key := LanguageKey(langs, e.mode)
	if key != e.key {
		start := time.Now()
		if err := e.backend.Configure(langs); err != nil {
			// Leave key unset so the next call retries the switch.
			e.key = ""
			return outcome{err: &Error{Op: "configure", Err: err}}
		}
		engineReconfigurations.Inc()
		slog.Debug("Recognition engine reconfigured", "from", e.key, "to", key,
			"duration_ms", time.Since(start).Milliseconds())
		e.key = key
	}

	start := time.Now()
	rec, err := e.backend.Recognize(img)
	engineRecognizeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return outcome{err: &Error{Op: "recognize", Err: err}}
	}
	return outcome{rec: rec}
}

// Key reports the current configuration key, or "" if none has been applied.
func (e *Engine) Key() string {
	e.sem <- struct{}{}
	defer func() { <-e.sem }()
	return e.key
}

// Close waits for any in-flight call and releases the backend.
func (e *Engine) Close() error {
	e.sem <- struct{}{}
	defer func() { <-e.sem }()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.backend.Close()
}
