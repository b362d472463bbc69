package models

import "encoding/json"

// TypeVerifiablePresentation is the fixed type of every presentation.
const TypeVerifiablePresentation = "VerifiablePresentation"

// Presentation is a verifiable presentation in its embedded-JSON form. The
// compact-token form wraps this object under a "vp" claim.
type Presentation struct {
	Context              []string     `json:"@context"`
	ID                   string       `json:"id"`
	Type                 []string     `json:"type"`
	Holder               string       `json:"holder,omitempty"`
	VerifiableCredential []Credential `json:"verifiableCredential"`
	Proof                *Proof       `json:"proof,omitempty"`
}

// SigningInput returns the byte sequence signed by an embedded proof, with
// the proof detached. Mirrors Credential.SigningInput.
func (p *Presentation) SigningInput() ([]byte, error) {
	clone := *p
	clone.Proof = nil
	return json.Marshal(&clone)
}
