// Package whispercpp implements engine.Transcriber on top of the whisper.cpp
// CGO bindings. The whisper.cpp static library (libwhisper.a) and headers
// must be available at link time via LIBRARY_PATH and C_INCLUDE_PATH.
//
// The model is loaded once at construction and shared by all calls; a model
// that fails to load is a fatal startup condition, never a per-request error.
package whispercpp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/scribed-io/scribed/pkg/audio"
	"github.com/scribed-io/scribed/pkg/engine"
)

// Compile-time assertion that Engine satisfies engine.Transcriber.
var _ engine.Transcriber = (*Engine)(nil)

// defaultLanguage is used when neither the call nor the engine configures one.
const defaultLanguage = "en"

// Engine is a whisper.cpp-backed transcriber. Each Transcribe call creates a
// fresh whisper context from the shared model. Contexts are not thread-safe,
// but the model is, so concurrent calls do not interfere.
type Engine struct {
	model    whisperlib.Model
	language string
}

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithLanguage sets the default BCP-47 language code used when a call does
// not supply its own hint.
func WithLanguage(lang string) Option {
	return func(e *Engine) { e.language = lang }
}

// New loads the whisper.cpp model from modelPath. Loading happens eagerly so
// a missing or corrupt model fails the process at startup rather than on the
// first request.
func New(modelPath string, opts ...Option) (*Engine, error) {
	if modelPath == "" {
		return nil, errors.New("whispercpp: model path must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whispercpp: load model %q: %w", modelPath, err)
	}

	e := &Engine{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Close releases the whisper model.
func (e *Engine) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}

// Transcribe reads the WAV file at audioPath, runs whisper.cpp inference,
// and returns the joined segment text.
func (e *Engine) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("whispercpp: context already cancelled: %w", err)
	}

	data, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("whispercpp: read audio %q: %w", audioPath, err)
	}
	samples, _, channels, err := audio.DecodeWAV(data)
	if err != nil {
		return "", fmt.Errorf("whispercpp: decode audio %q: %w", audioPath, err)
	}
	samples = audio.Downmix(samples, channels)

	floats := make([]float32, len(samples))
	for i, s := range samples {
		floats[i] = float32(s) / 32768.0
	}

	lang := language
	if lang == "" {
		lang = e.language
	}

	wctx, err := e.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whispercpp: create context: %w", err)
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return "", fmt.Errorf("whispercpp: set language %q: %w", lang, err)
	}

	if err := wctx.Process(floats, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whispercpp: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whispercpp: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}
