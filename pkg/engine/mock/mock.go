// Package mock provides a test double for the engine.Transcriber interface.
//
// Use Engine to feed controlled transcript text without a live model and to
// inspect which files and language hints the caller submitted.
//
// Example:
//
//	eng := &mock.Engine{Text: "hello world"}
//	text, err := eng.Transcribe(ctx, "/tmp/chunk.wav", "en")
package mock

import (
	"context"
	"sync"

	"github.com/scribed-io/scribed/pkg/engine"
)

// Compile-time assertion that Engine satisfies engine.Transcriber.
var _ engine.Transcriber = (*Engine)(nil)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// AudioPath is the file path passed to Transcribe.
	AudioPath string
	// Language is the language hint passed to Transcribe.
	Language string
}

// Engine is a mock implementation of engine.Transcriber.
// Zero values cause Transcribe to return "" and a nil error.
type Engine struct {
	mu sync.Mutex

	// Text is returned by Transcribe when TranscribeFn is nil.
	Text string

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// TranscribeFn, if non-nil, replaces the default behaviour entirely.
	TranscribeFn func(ctx context.Context, audioPath, language string) (string, error)

	// Calls records every invocation of Transcribe.
	Calls []TranscribeCall

	// inFlight and MaxInFlight track concurrent Transcribe calls, letting
	// pool tests assert the concurrency bound.
	inFlight    int
	MaxInFlight int

	// Closed reports whether Close was called.
	Closed bool
}

// Transcribe records the call and returns Text, Err (or delegates to
// TranscribeFn when set).
func (e *Engine) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	e.mu.Lock()
	e.Calls = append(e.Calls, TranscribeCall{AudioPath: audioPath, Language: language})
	e.inFlight++
	if e.inFlight > e.MaxInFlight {
		e.MaxInFlight = e.inFlight
	}
	fn := e.TranscribeFn
	text, err := e.Text, e.Err
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.inFlight--
		e.mu.Unlock()
	}()

	if fn != nil {
		return fn(ctx, audioPath, language)
	}
	return text, err
}

// Close marks the engine closed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Closed = true
	return nil
}

// CallCount returns the number of recorded Transcribe invocations.
func (e *Engine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Calls)
}
