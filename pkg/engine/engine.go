// Package engine defines the speech-to-text boundary consumed by the
// transcription orchestrator: an audio file goes in, plain text comes out.
//
// Word-level timing is deliberately not part of the contract; callers that
// need alignment data should grow a richer interface rather than overload
// this one.
package engine

import "context"

// Transcriber converts a staged audio file into plain text. Calls may block
// for the full length of model inference; callers are expected to bound
// concurrency themselves and to cancel via ctx.
//
// Implementations must be safe for concurrent use.
type Transcriber interface {
	// Transcribe runs speech-to-text over the audio file at audioPath.
	// language is a BCP-47 hint ("en", "de", …); empty means auto-detect or
	// the implementation's default.
	Transcribe(ctx context.Context, audioPath, language string) (string, error)

	// Close releases any model resources. The Transcriber must not be used
	// afterwards.
	Close() error
}
