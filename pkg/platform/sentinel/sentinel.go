package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and outbound clients return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: wallet, credential record, or key does not exist in store
// - ErrConflict: unique constraint hit (duplicate wallet or credential)
// - ErrAlreadyUsed: token identifier already consumed by a prior presentation
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: outbound collaborator (resolver, revocation) unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
