package ingest

import "github.com/google/uuid"

// Generator produces the per-request identifiers sent downstream.
// Injected so tests can pin fixed values.
type Generator interface {
	RequestID() string
	SessionID() string
}

// UUIDGenerator issues random UUIDv4 identifiers.
type UUIDGenerator struct{}

func (UUIDGenerator) RequestID() string {
	return "req_" + uuid.NewString()
}

func (UUIDGenerator) SessionID() string {
	return "sess_" + uuid.NewString()
}
