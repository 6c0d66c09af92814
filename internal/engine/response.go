package engine

import "github.com/kayis-rahman/synapse/internal/synerr"

// ErrorResponse is the structured failure shape every tool-surface
// operation returns on error: JSON-serializable, no stack
// traces, always carrying a trace_id for log correlation.
type ErrorResponse struct {
	Status    string       `json:"status"`
	Kind      synerr.Kind  `json:"kind"`
	Message   string       `json:"message"`
	Retryable bool         `json:"retryable"`
	TraceID   string       `json:"trace_id"`
}

// ToErrorResponse converts any error returned by a Handle method into the
// wire-level envelope. A nil err has no meaningful response; callers
// should check err != nil first.
func ToErrorResponse(err error) ErrorResponse {
	se, ok := err.(*synerr.Error)
	if !ok {
		return ErrorResponse{Status: "error", Kind: synerr.ExternalFailure, Message: err.Error()}
	}
	return ErrorResponse{
		Status:    "error",
		Kind:      se.Kind,
		Message:   se.Message,
		Retryable: se.Retryable,
		TraceID:   se.TraceID,
	}
}
