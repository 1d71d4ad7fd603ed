package gateway

import (
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/scribed-io/scribed/internal/auth"
	"github.com/scribed-io/scribed/internal/chunkstore"
	"github.com/scribed-io/scribed/internal/observe"
	"github.com/scribed-io/scribed/internal/registry"
	"github.com/scribed-io/scribed/internal/transcribe"
	"github.com/scribed-io/scribed/pkg/metastore"
)

// maxFrameBytes bounds a single incoming frame. Base64-encoded audio chunks
// are the largest frames; 32 MiB leaves generous headroom over the chunk
// sizes recording clients produce.
const maxFrameBytes = 32 << 20

// Config carries the collaborators a [Server] hands to every connection.
// All fields except Metrics and Logger are required.
type Config struct {
	Verifier     auth.Verifier
	Sessions     *registry.Registry
	Chunks       *chunkstore.Store
	Orchestrator *transcribe.Orchestrator
	Store        metastore.Store

	// Metrics defaults to [observe.DefaultMetrics] when nil.
	Metrics *observe.Metrics

	// Logger defaults to [slog.Default] when nil.
	Logger *slog.Logger
}

// Server upgrades HTTP requests on the transcription endpoint to WebSocket
// connections and runs one [handler] per connection.
type Server struct {
	cfg Config
}

// NewServer validates cfg and returns a Server.
func NewServer(cfg Config) (*Server, error) {
	switch {
	case cfg.Verifier == nil:
		return nil, errMissing("Verifier")
	case cfg.Sessions == nil:
		return nil, errMissing("Sessions")
	case cfg.Chunks == nil:
		return nil, errMissing("Chunks")
	case cfg.Orchestrator == nil:
		return nil, errMissing("Orchestrator")
	case cfg.Store == nil:
		return nil, errMissing("Store")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{cfg: cfg}, nil
}

// Register adds the WebSocket endpoint to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/transcribe", s.HandleWS)
}

// HandleWS accepts the WebSocket upgrade, verifies the bearer token passed as
// the "token" query parameter, and serves the session protocol. Verification
// failure closes the connection with [StatusAuthFailed] before any protocol
// message is read; the connection never reaches the active state.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := observe.Logger(ctx).With("remote", r.RemoteAddr)

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Debug("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	identity, err := s.cfg.Verifier.Verify(ctx, r.URL.Query().Get("token"))
	if err != nil {
		log.Warn("authentication failed", "error", err)
		_ = conn.Close(StatusAuthFailed, "authentication failed")
		return
	}
	log = log.With("owner_id", identity.OwnerID)

	s.cfg.Metrics.ActiveConnections.Add(ctx, 1)
	defer s.cfg.Metrics.ActiveConnections.Add(ctx, -1)

	log.Info("connection established")
	h := &handler{
		conn:     conn,
		identity: identity,
		sessions: s.cfg.Sessions,
		chunks:   s.cfg.Chunks,
		orch:     s.cfg.Orchestrator,
		store:    s.cfg.Store,
		metrics:  s.cfg.Metrics,
		log:      log,
	}
	h.serve(ctx)

	_ = conn.Close(websocket.StatusNormalClosure, "")
	log.Info("connection closed")
}

// errMissing reports an unset required Config field.
func errMissing(field string) error {
	return &configError{field: field}
}

type configError struct {
	field string
}

func (e *configError) Error() string {
	return "gateway: missing required config field " + e.field
}
