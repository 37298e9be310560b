package tools

import "fmt"

// The executor reports failures as one of four distinguishable kinds so the
// self-correction loop and the orchestrator boundary can choose behaviour
// per kind instead of pattern-matching on message text.

// ProtocolError means the remote endpoint answered, but with a protocol-level
// error object, or the tool itself reported failure (isError result). The
// message carries the remote explanation verbatim; correction prompts feed it
// back to the model.
type ProtocolError struct {
	Tool    string
	Code    int
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("tool %q: remote error %d: %s", e.Tool, e.Code, e.Message)
	}
	return fmt.Sprintf("tool %q failed: %s", e.Tool, e.Message)
}

// MalformedError means the call succeeded at the protocol level but the
// result is missing its content payload.
type MalformedError struct {
	Tool string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("tool %q: response missing text content", e.Tool)
}

// TransportError means the HTTP exchange itself failed: non-2xx status,
// timeout, or connection error.
type TransportError struct {
	Tool string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("tool %q: transport: %v", e.Tool, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ValidationError means the invocation's arguments were rejected by the
// tool's advertised input schema before any network call was made. Treated
// as an execution failure so self-correction can fix the arguments.
type ValidationError struct {
	Tool string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tool %q: invalid arguments: %v", e.Tool, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
