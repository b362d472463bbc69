// Package models holds the wire-level verifiable credential and presentation
// shapes shared by the issuance, verification, and presentation features.
package models

import (
	"encoding/json"
	"time"

	dErrors "miw/pkg/domain-errors"
)

// Base credential type and the credential families this service issues.
const (
	TypeVerifiableCredential = "VerifiableCredential"

	TypeBPN        = "BpnCredential"
	TypeMembership = "MembershipCredential"
	TypeDismantler = "DismantlerCredential"
	TypeFramework  = "UseCaseFrameworkCondition"
	TypeSummary    = "SummaryCredential"
)

// ContextCredentialsV1 is the base W3C credentials context; every credential
// this service produces leads with it.
const ContextCredentialsV1 = "https://www.w3.org/2018/credentials/v1"

// DefaultContext is applied to issued credentials unless the request supplies
// its own context list.
var DefaultContext = []string{
	ContextCredentialsV1,
	"https://w3id.org/security/suites/jws-2020/v1",
}

// UniquePerHolder lists the credential types that may be issued at most once
// to a given holder.
var UniquePerHolder = map[string]bool{
	TypeMembership: true,
	TypeDismantler: true,
	TypeBPN:        true,
}

// Subject is one credentialSubject entry.
type Subject map[string]any

// SubjectList marshals per the W3C convention: a single subject serializes as
// a bare object, multiple subjects as an array. Both forms unmarshal.
type SubjectList []Subject

func (s SubjectList) MarshalJSON() ([]byte, error) {
	if len(s) == 1 {
		return json.Marshal(s[0])
	}
	return json.Marshal([]Subject(s))
}

func (s *SubjectList) UnmarshalJSON(data []byte) error {
	var many []Subject
	if err := json.Unmarshal(data, &many); err == nil {
		*s = many
		return nil
	}
	var one Subject
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*s = SubjectList{one}
	return nil
}

// Proof is an embedded JWS proof bound to a verification method.
type Proof struct {
	Type               string    `json:"type"`
	Created            time.Time `json:"created"`
	ProofPurpose       string    `json:"proofPurpose"`
	VerificationMethod string    `json:"verificationMethod"`
	JWS                string    `json:"jws"`
}

// ProofTypeJWS2020 is the proof type attached to embedded-proof artifacts.
const ProofTypeJWS2020 = "JsonWebSignature2020"

// ProofPurposeAssertion is the proofPurpose used for issued credentials and
// presentations.
const ProofPurposeAssertion = "assertionMethod"

// Status points at an external revocation list entry.
type Status struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	StatusPurpose        string `json:"statusPurpose,omitempty"`
	StatusListIndex      string `json:"statusListIndex,omitempty"`
	StatusListCredential string `json:"statusListCredential,omitempty"`
}

// Credential is the canonical verifiable credential payload.
type Credential struct {
	Context           []string    `json:"@context"`
	ID                string      `json:"id"`
	Type              []string    `json:"type"`
	Issuer            string      `json:"issuer"`
	IssuanceDate      time.Time   `json:"issuanceDate"`
	ExpirationDate    *time.Time  `json:"expirationDate,omitempty"`
	CredentialSubject SubjectList `json:"credentialSubject"`
	CredentialStatus  *Status     `json:"credentialStatus,omitempty"`
	Proof             *Proof      `json:"proof,omitempty"`
}

// SpecificTypes returns the credential's type list minus the base type.
func (c *Credential) SpecificTypes() []string {
	out := make([]string, 0, len(c.Type))
	for _, t := range c.Type {
		if t != TypeVerifiableCredential {
			out = append(out, t)
		}
	}
	return out
}

// HasType reports whether the credential carries the given specific type.
func (c *Credential) HasType(t string) bool {
	for _, ct := range c.Type {
		if ct == t {
			return true
		}
	}
	return false
}

// IsExpiredAt reports whether the credential's expirationDate has passed.
// Credentials without an expirationDate never expire.
func (c *Credential) IsExpiredAt(now time.Time) bool {
	return c.ExpirationDate != nil && now.After(*c.ExpirationDate)
}

// SigningInput returns the byte sequence signed by an embedded proof: the
// credential's JSON serialization with the proof detached. Signer and
// verifier both derive the input through this method, so the serialization
// itself is the canonical form.
func (c *Credential) SigningInput() ([]byte, error) {
	clone := *c
	clone.Proof = nil
	return json.Marshal(&clone)
}

// SummaryItems extracts the items list from a summary credential, enforcing
// the single-subject invariant.
func (c *Credential) SummaryItems() ([]string, error) {
	if len(c.CredentialSubject) != 1 {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"summary credential %s has %d subjects, want exactly 1", c.ID, len(c.CredentialSubject))
	}
	raw, ok := c.CredentialSubject[0]["items"]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "summary credential %s has no items", c.ID)
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "summary credential %s has a non-string item", c.ID)
			}
			items = append(items, s)
		}
		return items, nil
	default:
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "summary credential %s items has unexpected shape", c.ID)
	}
}
