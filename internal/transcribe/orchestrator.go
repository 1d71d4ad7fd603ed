// Package transcribe bounds concurrent access to the transcription engine.
//
// whisper-style engines are CPU and memory heavy, so the orchestrator admits
// at most a configured number of transcriptions at a time. Callers beyond the
// limit block until a slot frees or their context is cancelled; ordering within
// a session is preserved because the gateway handles each connection's
// messages sequentially.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/scribed-io/scribed/internal/observe"
	"github.com/scribed-io/scribed/pkg/engine"
)

// Stages recorded on the transcription duration metric.
const (
	StageChunk = "chunk"
	StageFull  = "full"
)

// Orchestrator serialises engine access behind a weighted semaphore.
// Safe for concurrent use.
type Orchestrator struct {
	eng     engine.Transcriber
	slots   *semaphore.Weighted
	metrics *observe.Metrics
}

// New creates an Orchestrator allowing at most workers concurrent
// transcriptions. workers must be at least 1. metrics may be nil, in which
// case [observe.DefaultMetrics] is used.
func New(eng engine.Transcriber, workers int, metrics *observe.Metrics) (*Orchestrator, error) {
	if eng == nil {
		return nil, errors.New("transcribe: nil engine")
	}
	if workers < 1 {
		return nil, fmt.Errorf("transcribe: workers must be >= 1, got %d", workers)
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Orchestrator{
		eng:     eng,
		slots:   semaphore.NewWeighted(int64(workers)),
		metrics: metrics,
	}, nil
}

// TranscribeChunk transcribes a single chunk file. Blocks while all worker
// slots are busy; returns the context's error if ctx is cancelled first.
func (o *Orchestrator) TranscribeChunk(ctx context.Context, audioPath, language string) (string, error) {
	return o.run(ctx, StageChunk, audioPath, language)
}

// TranscribeFull transcribes the assembled session audio.
func (o *Orchestrator) TranscribeFull(ctx context.Context, audioPath, language string) (string, error) {
	return o.run(ctx, StageFull, audioPath, language)
}

func (o *Orchestrator) run(ctx context.Context, stage, audioPath, language string) (string, error) {
	if err := o.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("transcribe: acquire worker: %w", err)
	}
	defer o.slots.Release(1)

	ctx, span := observe.StartSpan(ctx, "transcribe."+stage)
	defer span.End()

	start := time.Now()
	text, err := o.eng.Transcribe(ctx, audioPath, language)
	o.metrics.RecordTranscription(ctx, stage, time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("transcribe: %s: %w", stage, err)
	}
	return text, nil
}
