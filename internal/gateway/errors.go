package gateway

import (
	"errors"

	"github.com/coder/websocket"

	"github.com/scribed-io/scribed/internal/chunkstore"
	"github.com/scribed-io/scribed/internal/registry"
	"github.com/scribed-io/scribed/pkg/metastore"
)

// StatusAuthFailed is the close code sent when credential verification fails
// at connection establishment. 4000-4999 is the range reserved for
// application-defined close codes.
const StatusAuthFailed = websocket.StatusCode(4401)

// Protocol error codes carried in error frames. Only authentication failure
// and transport errors ever close the connection; every code below is
// reported on the open connection and the session continues.
const (
	codeBadRequest = "bad_request"
	codeNotFound   = "not_found"
	codeForbidden  = "forbidden"
	codeNoChunks   = "no_chunks"
	codeInternal   = "internal_error"
)

// protocolError pairs a wire-level error code with a client-safe message.
// The underlying cause stays server-side in logs.
type protocolError struct {
	code    string
	message string
}

func (e *protocolError) Error() string { return e.code + ": " + e.message }

func badRequest(message string) *protocolError {
	return &protocolError{code: codeBadRequest, message: message}
}

// classify maps a component error onto its protocol error code. Anything not
// recognised is an internal error; the raw message is not leaked to clients.
func classify(err error) *protocolError {
	var perr *protocolError
	switch {
	case errors.As(err, &perr):
		return perr
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, metastore.ErrNotFound):
		return &protocolError{code: codeNotFound, message: "unknown session"}
	case errors.Is(err, registry.ErrForbidden):
		return &protocolError{code: codeForbidden, message: "session belongs to another owner"}
	case errors.Is(err, chunkstore.ErrNoChunks):
		return &protocolError{code: codeNoChunks, message: "no chunks to concatenate"}
	default:
		return &protocolError{code: codeInternal, message: "internal error"}
	}
}
