package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coder/websocket"

	"github.com/scribed-io/scribed/internal/auth"
	"github.com/scribed-io/scribed/internal/chunkstore"
	"github.com/scribed-io/scribed/internal/observe"
	"github.com/scribed-io/scribed/internal/registry"
	"github.com/scribed-io/scribed/internal/transcribe"
	"github.com/scribed-io/scribed/pkg/metastore"
)

// defaultListLimit caps list_sessions responses when the client omits limit.
const defaultListLimit = 20

// handler serves one authenticated connection. Messages are handled strictly
// in receipt order: the read loop does not pull frame N+1 until frame N's
// handling, including its transcription call and store writes, completes.
// Cross-connection parallelism comes from each connection having its own
// handler goroutine.
type handler struct {
	conn     *websocket.Conn
	identity auth.Identity

	sessions *registry.Registry
	chunks   *chunkstore.Store
	orch     *transcribe.Orchestrator
	store    metastore.Store
	metrics  *observe.Metrics
	log      *slog.Logger
}

// serve runs the read loop until the client disconnects or a send fails.
// Transport errors are terminal and never produce an error frame; all other
// failures are reported as error frames on the open connection.
func (h *handler) serve(ctx context.Context) {
	for {
		typ, data, err := h.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				h.log.Debug("connection closed by client")
			} else {
				h.log.Debug("connection read failed", "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			if err := h.sendError(ctx, badRequest("binary frames are not supported")); err != nil {
				return
			}
			continue
		}

		if err := h.handleMessage(ctx, data); err != nil {
			// Only send failures propagate here. The connection is unusable,
			// so no further frames are attempted.
			h.log.Debug("connection write failed", "error", err)
			return
		}
	}
}

// handleMessage dispatches one frame. The returned error is non-nil only for
// transport (send) failures.
func (h *handler) handleMessage(ctx context.Context, data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.metrics.RecordMessage(ctx, "invalid", codeBadRequest)
		return h.sendError(ctx, badRequest("frame is not a JSON object"))
	}

	var err error
	switch env.Type {
	case "init_session":
		err = h.handleInitSession(ctx, data)
	case "audio_chunk":
		err = h.handleAudioChunk(ctx, data)
	case "stop":
		err = h.handleStop(ctx, data)
	case "list_sessions":
		err = h.handleListSessions(ctx, data)
	case "get_transcript":
		err = h.handleGetTranscript(ctx, data)
	default:
		h.metrics.RecordMessage(ctx, "unknown", codeBadRequest)
		return h.sendError(ctx, badRequest(fmt.Sprintf("unknown message type: %q", env.Type)))
	}

	if err != nil {
		if sendErr, ok := err.(*sendFailure); ok {
			return sendErr.err
		}
		perr := classify(err)
		h.metrics.RecordMessage(ctx, env.Type, perr.code)
		if perr.code == codeInternal {
			h.log.Error("message handling failed", "type", env.Type, "error", err)
		} else {
			h.log.Debug("message rejected", "type", env.Type, "code", perr.code, "error", err)
		}
		return h.sendError(ctx, perr)
	}

	h.metrics.RecordMessage(ctx, env.Type, "ok")
	return nil
}

// sendFailure marks an error as a transport-level send failure so that
// handleMessage can tell it apart from domain errors.
type sendFailure struct {
	err error
}

func (s *sendFailure) Error() string { return s.err.Error() }

// ── Message handlers ─────────────────────────────────────────────────────────

func (h *handler) handleInitSession(ctx context.Context, data []byte) error {
	var msg initSessionMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return badRequest("malformed init_session")
	}
	if msg.SampleRate <= 0 {
		return badRequest("sampleRate must be positive")
	}

	sess, err := h.sessions.Create(h.identity.OwnerID, registry.Attrs{
		Title:      msg.Title,
		SampleRate: msg.SampleRate,
		Language:   msg.Language,
		Source:     msg.Source,
	})
	if err != nil {
		return err
	}

	if err := h.store.CreateRecord(ctx, metastore.Record{
		ID:         sess.ID,
		OwnerID:    sess.Owner,
		Title:      sess.Title,
		SampleRate: sess.SampleRate,
		Language:   sess.Language,
		Source:     sess.Source,
		Status:     string(registry.StatusRecording),
		CreatedAt:  sess.CreatedAt,
		UpdatedAt:  sess.CreatedAt,
	}); err != nil {
		h.metrics.RecordStoreError(ctx, "create_record")
		return err
	}

	h.metrics.ActiveSessions.Add(ctx, 1)
	h.log.Info("session started", "session_id", sess.ID, "sample_rate", sess.SampleRate, "language", sess.Language)

	return h.send(ctx, sessionStartedMsg{
		Type:      "session_started",
		SessionID: sess.ID,
		Status:    string(registry.StatusRecording),
		CreatedAt: sess.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
}

func (h *handler) handleAudioChunk(ctx context.Context, data []byte) error {
	var msg audioChunkMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return badRequest("malformed audio_chunk")
	}
	if msg.SessionID == "" {
		return badRequest("sessionId is required")
	}
	if msg.Seq == nil || *msg.Seq < 0 {
		return badRequest("seq must be a non-negative integer")
	}
	if msg.AudioB64 == "" {
		return badRequest("audioB64 is required")
	}

	sess, err := h.sessions.GetOwned(msg.SessionID, h.identity.OwnerID)
	if err != nil {
		return err
	}

	audio, err := base64.StdEncoding.DecodeString(msg.AudioB64)
	if err != nil {
		return badRequest("audioB64 is not valid base64")
	}

	path, err := h.chunks.Put(sess.ID, *msg.Seq, msg.MIME, audio)
	if err != nil {
		return err
	}
	h.metrics.RecordChunk(ctx, len(audio))

	text, err := h.orch.TranscribeChunk(ctx, path, sess.Language)
	if err != nil {
		return err
	}

	if err := h.sessions.UpsertChunk(sess.ID, registry.ChunkMeta{
		Seq:         *msg.Seq,
		OffsetMs:    msg.OffsetMs,
		DurationSec: msg.DurationSec,
		Path:        path,
	}); err != nil {
		return err
	}

	if err := h.store.AppendSegment(ctx, sess.ID, metastore.Segment{
		Seq:         *msg.Seq,
		OffsetMs:    msg.OffsetMs,
		DurationSec: msg.DurationSec,
		Text:        text,
	}); err != nil {
		h.metrics.RecordStoreError(ctx, "append_segment")
		return err
	}
	// Stats are derived from the chunk collection, never counted separately,
	// so a re-sent seq overwrites instead of double-counting.
	if err := h.store.UpdateStats(ctx, sess.ID, metastore.Stats{
		ChunksCount:      sess.ChunksCount(),
		TotalDurationSec: sess.TotalDurationSec(),
	}); err != nil {
		h.metrics.RecordStoreError(ctx, "update_stats")
		return err
	}

	return h.send(ctx, chunkTranscribedMsg{
		Type:        "chunk_transcribed",
		SessionID:   sess.ID,
		Seq:         *msg.Seq,
		OffsetMs:    msg.OffsetMs,
		DurationSec: msg.DurationSec,
		Transcript:  newTranscriptPayload(text),
	})
}

func (h *handler) handleStop(ctx context.Context, data []byte) error {
	var msg stopMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return badRequest("malformed stop")
	}
	if msg.SessionID == "" {
		return badRequest("sessionId is required")
	}

	sess, err := h.sessions.GetOwned(msg.SessionID, h.identity.OwnerID)
	if err != nil {
		return err
	}

	// Check before any status transition: a session with nothing to
	// transcribe stays in recording so the client can keep sending chunks.
	if sess.ChunksCount() == 0 {
		return fmt.Errorf("stop %q: %w", sess.ID, chunkstore.ErrNoChunks)
	}

	if err := h.sessions.SetStatus(sess.ID, registry.StatusProcessing); err != nil {
		return err
	}
	if err := h.store.SetStatus(ctx, sess.ID, string(registry.StatusProcessing)); err != nil {
		h.metrics.RecordStoreError(ctx, "set_status")
		return err
	}
	if err := h.send(ctx, processingStartedMsg{
		Type:      "processing_started",
		SessionID: sess.ID,
		Status:    string(registry.StatusProcessing),
	}); err != nil {
		return err
	}

	concatStart := time.Now()
	fullPath, err := h.chunks.Concat(sess.ID, sess.SampleRate)
	if err != nil {
		return err
	}
	h.metrics.ConcatDuration.Record(ctx, time.Since(concatStart).Seconds())

	text, err := h.orch.TranscribeFull(ctx, fullPath, sess.Language)
	if err != nil {
		return err
	}

	if err := h.store.SetFullTranscript(ctx, sess.ID, text); err != nil {
		h.metrics.RecordStoreError(ctx, "set_full_transcript")
		return err
	}
	if err := h.sessions.SetStatus(sess.ID, registry.StatusDone); err != nil {
		return err
	}
	if err := h.store.SetStatus(ctx, sess.ID, string(registry.StatusDone)); err != nil {
		h.metrics.RecordStoreError(ctx, "set_status")
		return err
	}

	h.metrics.ActiveSessions.Add(ctx, -1)
	h.log.Info("session finalised", "session_id", sess.ID, "chunks", sess.ChunksCount())

	return h.send(ctx, transcriptReadyMsg{
		Type:      "transcript_ready",
		SessionID: sess.ID,
		Status:    string(registry.StatusDone),
		Text:      text,
	})
}

func (h *handler) handleListSessions(ctx context.Context, data []byte) error {
	var msg listSessionsMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return badRequest("malformed list_sessions")
	}
	if msg.Limit <= 0 {
		msg.Limit = defaultListLimit
	}

	recs, next, err := h.store.ListRecords(ctx, h.identity.OwnerID, msg.Cursor, msg.Limit)
	if err != nil {
		h.metrics.RecordStoreError(ctx, "list_records")
		return err
	}

	items := make([]sessionItem, 0, len(recs))
	for _, rec := range recs {
		items = append(items, sessionItem{
			SessionID:        rec.ID,
			Title:            rec.Title,
			Status:           rec.Status,
			CreatedAt:        rec.CreatedAt.UTC().Format(time.RFC3339Nano),
			TotalDurationSec: rec.Stats.TotalDurationSec,
		})
	}

	return h.send(ctx, sessionsListMsg{
		Type:       "sessions_list",
		Items:      items,
		NextCursor: next,
	})
}

func (h *handler) handleGetTranscript(ctx context.Context, data []byte) error {
	var msg getTranscriptMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return badRequest("malformed get_transcript")
	}
	if msg.SessionID == "" {
		return badRequest("sessionId is required")
	}

	rec, err := h.store.GetRecord(ctx, msg.SessionID)
	if errors.Is(err, metastore.ErrNotFound) {
		// An unknown session is not an error frame here: the reply mirrors
		// the done case with status not_found so clients poll one shape.
		return h.send(ctx, transcriptReadyMsg{
			Type:      "transcript_ready",
			SessionID: msg.SessionID,
			Status:    "not_found",
			Text:      "",
		})
	}
	if err != nil {
		h.metrics.RecordStoreError(ctx, "get_record")
		return err
	}
	if rec.OwnerID != h.identity.OwnerID {
		return fmt.Errorf("get_transcript %q: %w", msg.SessionID, registry.ErrForbidden)
	}

	text, found, err := h.store.GetFullTranscript(ctx, msg.SessionID)
	if err != nil {
		h.metrics.RecordStoreError(ctx, "get_full_transcript")
		return err
	}
	status := "not_found"
	if found {
		status = string(registry.StatusDone)
	}
	return h.send(ctx, transcriptReadyMsg{
		Type:      "transcript_ready",
		SessionID: msg.SessionID,
		Status:    status,
		Text:      text,
	})
}

// ── Frame encoding ───────────────────────────────────────────────────────────

// send marshals v and writes it as one text frame. A non-nil return is always
// a *sendFailure; the connection must not be used afterwards.
func (h *handler) send(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &sendFailure{err: fmt.Errorf("gateway: marshal frame: %w", err)}
	}
	if err := h.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return &sendFailure{err: fmt.Errorf("gateway: write frame: %w", err)}
	}
	return nil
}

// sendError reports a recoverable failure as an error frame. The returned
// error is non-nil only when the write itself failed.
func (h *handler) sendError(ctx context.Context, perr *protocolError) error {
	if err := h.send(ctx, errorMsg{Type: "error", Code: perr.code, Message: perr.message}); err != nil {
		return err.(*sendFailure).err
	}
	return nil
}
