// Package audit captures structured audit events for credential and token
// operations. Events are transport-agnostic so sinks (in-process store,
// Kafka) can fan out.
package audit

import "time"

// Action names the audited operation.
type Action string

const (
	ActionWalletCreated       Action = "wallet.created"
	ActionCredentialIssued    Action = "credential.issued"
	ActionCredentialStored    Action = "credential.stored"
	ActionCredentialDeleted   Action = "credential.deleted"
	ActionSummaryRebuilt      Action = "summary.rebuilt"
	ActionPresentationCreated Action = "presentation.created"
	ActionTokenIssued         Action = "sts.token_issued"
	ActionTokenReplayBlocked  Action = "sts.replay_blocked"
)

// Event is emitted from domain logic to capture key actions.
type Event struct {
	Timestamp    time.Time `json:"timestamp"`
	Action       Action    `json:"action"`
	CallerBPN    string    `json:"caller_bpn,omitempty"`
	HolderDID    string    `json:"holder_did,omitempty"`
	IssuerDID    string    `json:"issuer_did,omitempty"`
	CredentialID string    `json:"credential_id,omitempty"`
	Type         string    `json:"type,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
}
