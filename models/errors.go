package models

import "errors"

// Error taxonomy shared by every pipeline stage. Stages wrap one of these
// sentinels so callers can classify failures with errors.Is.
var (
	// ErrConnectivity means the result store is unreachable. Fatal.
	ErrConnectivity = errors.New("store unreachable")
	// ErrMissingInput means an expected tool document does not exist.
	ErrMissingInput = errors.New("input document missing")
	// ErrParse means a document exists but could not be decoded.
	ErrParse = errors.New("malformed document")
	// ErrPersistence means an insert or query was rejected by the store.
	ErrPersistence = errors.New("persistence failure")
	// ErrToolInvocation means an external tool could not be run to completion.
	ErrToolInvocation = errors.New("tool invocation failed")
)
