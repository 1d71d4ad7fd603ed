// Package gateway implements the WebSocket session protocol: one JSON object
// per text frame, messages on a connection handled strictly in receipt order.
//
// Clients authenticate once at connection establishment via a bearer token
// query parameter. After that, five message types drive a session through its
// lifecycle: init_session, audio_chunk, stop, list_sessions, get_transcript.
package gateway

import "encoding/json"

// envelope is the first-pass decode target used to dispatch on message type
// before the full per-type structure is parsed.
type envelope struct {
	Type string `json:"type"`
}

// ── Client → server messages ─────────────────────────────────────────────────

type initSessionMsg struct {
	Title      string `json:"title"`
	SampleRate int    `json:"sampleRate"`
	Language   string `json:"language"`
	Source     string `json:"source"`
}

type audioChunkMsg struct {
	SessionID string `json:"sessionId"`

	// Seq is a pointer so that an absent field is distinguishable from an
	// explicit seq 0.
	Seq *int `json:"seq"`

	OffsetMs    int     `json:"offsetMs"`
	DurationSec float64 `json:"durationSec"`
	MIME        string  `json:"mime"`
	AudioB64    string  `json:"audioB64"`
}

type stopMsg struct {
	SessionID string `json:"sessionId"`
}

type listSessionsMsg struct {
	Cursor string `json:"cursor"`
	Limit  int    `json:"limit"`
}

type getTranscriptMsg struct {
	SessionID string `json:"sessionId"`
}

// ── Server → client messages ─────────────────────────────────────────────────

type sessionStartedMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

// transcriptPayload is the per-chunk transcript object. Words is always empty:
// word-level timing is not produced, the field exists for client compatibility.
type transcriptPayload struct {
	Text  string            `json:"text"`
	Words []json.RawMessage `json:"words"`
}

func newTranscriptPayload(text string) transcriptPayload {
	return transcriptPayload{Text: text, Words: []json.RawMessage{}}
}

type chunkTranscribedMsg struct {
	Type        string            `json:"type"`
	SessionID   string            `json:"sessionId"`
	Seq         int               `json:"seq"`
	OffsetMs    int               `json:"offsetMs"`
	DurationSec float64           `json:"durationSec"`
	Transcript  transcriptPayload `json:"transcript"`
}

type processingStartedMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
}

type transcriptReadyMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
	Text      string `json:"text"`
}

type sessionItem struct {
	SessionID        string  `json:"sessionId"`
	Title            string  `json:"title"`
	Status           string  `json:"status"`
	CreatedAt        string  `json:"createdAt"`
	TotalDurationSec float64 `json:"totalDurationSec"`
}

type sessionsListMsg struct {
	Type       string        `json:"type"`
	Items      []sessionItem `json:"items"`
	NextCursor string        `json:"nextCursor"`
}

type errorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
