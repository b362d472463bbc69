package did

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"

	"github.com/btcsuite/btcd/btcec/v2"

	dErrors "miw/pkg/domain-errors"
)

// Document is a minimal DID document: enough to publish and look up
// verification keys. Service endpoints and controller delegation are not
// modeled because nothing in this service consumes them.
type Document struct {
	Context            []string             `json:"@context"`
	ID                 string               `json:"id"`
	VerificationMethod []VerificationMethod `json:"verificationMethod"`
	AssertionMethod    []string             `json:"assertionMethod,omitempty"`
	Authentication     []string             `json:"authentication,omitempty"`
}

// VerificationMethod binds a public key to a DID fragment.
type VerificationMethod struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Controller   string `json:"controller"`
	PublicKeyJWK *JWK   `json:"publicKeyJwk,omitempty"`
}

// JWK carries the public key material for a verification method. Only the
// key types this service signs with are supported: OKP/Ed25519 and
// EC/secp256k1.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y,omitempty"`
}

const (
	vmTypeJSONWebKey2020 = "JsonWebKey2020"

	crvEd25519   = "Ed25519"
	crvSecp256k1 = "secp256k1"
)

// documentContext is the fixed @context for documents this service publishes.
var documentContext = []string{
	"https://www.w3.org/ns/did/v1",
	"https://w3id.org/security/suites/jws-2020/v1",
}

// NewDocument builds a DID document with a single verification method keyed
// under the "#key-1" fragment, usable for both assertion and authentication.
func NewDocument(id string, key *JWK) *Document {
	vmID := id + "#key-1"
	return &Document{
		Context: documentContext,
		ID:      id,
		VerificationMethod: []VerificationMethod{{
			ID:           vmID,
			Type:         vmTypeJSONWebKey2020,
			Controller:   id,
			PublicKeyJWK: key,
		}},
		AssertionMethod: []string{vmID},
		Authentication:  []string{vmID},
	}
}

// JWKFromEd25519 encodes an Ed25519 public key as a JWK.
func JWKFromEd25519(pub ed25519.PublicKey) *JWK {
	return &JWK{
		Kty: "OKP",
		Crv: crvEd25519,
		X:   base64.RawURLEncoding.EncodeToString(pub),
	}
}

// JWKFromSecp256k1 encodes a secp256k1 public key as a JWK.
func JWKFromSecp256k1(pub *btcec.PublicKey) *JWK {
	x := pub.X().Bytes()
	y := pub.Y().Bytes()
	return &JWK{
		Kty: "EC",
		Crv: crvSecp256k1,
		X:   base64.RawURLEncoding.EncodeToString(padTo32(x)),
		Y:   base64.RawURLEncoding.EncodeToString(padTo32(y)),
	}
}

// Ed25519Key decodes the JWK back to an Ed25519 public key.
func (k *JWK) Ed25519Key() (ed25519.PublicKey, error) {
	if k.Kty != "OKP" || k.Crv != crvEd25519 {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "key is %s/%s, not OKP/Ed25519", k.Kty, k.Crv)
	}
	raw, err := base64.RawURLEncoding.DecodeString(k.X)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed x coordinate")
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "ed25519 key has %d bytes", len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// Secp256k1Key decodes the JWK back to a secp256k1 public key.
func (k *JWK) Secp256k1Key() (*btcec.PublicKey, error) {
	if k.Kty != "EC" || k.Crv != crvSecp256k1 {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "key is %s/%s, not EC/secp256k1", k.Kty, k.Crv)
	}
	x, err := base64.RawURLEncoding.DecodeString(k.X)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed x coordinate")
	}
	y, err := base64.RawURLEncoding.DecodeString(k.Y)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed y coordinate")
	}
	// Uncompressed SEC encoding: 0x04 || X || Y.
	raw := make([]byte, 0, 65)
	raw = append(raw, 0x04)
	raw = append(raw, padTo32(x)...)
	raw = append(raw, padTo32(y)...)
	pub, err := btcec.ParsePubKey(raw)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid secp256k1 point")
	}
	return pub, nil
}

// FindVerificationMethod returns the verification method with the given id,
// or the document's first method when id is empty.
func (d *Document) FindVerificationMethod(id string) (*VerificationMethod, error) {
	if len(d.VerificationMethod) == 0 {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "DID document %s has no verification methods", d.ID)
	}
	if id == "" {
		return &d.VerificationMethod[0], nil
	}
	for i := range d.VerificationMethod {
		if d.VerificationMethod[i].ID == id {
			return &d.VerificationMethod[i], nil
		}
	}
	return nil, dErrors.Newf(dErrors.CodeBadRequest, "verification method %s not found on %s", id, d.ID)
}

// Clone deep-copies the document via JSON so callers can mutate safely.
func (d *Document) Clone() *Document {
	raw, _ := json.Marshal(d)
	var out Document
	_ = json.Unmarshal(raw, &out)
	return &out
}

func padTo32(b []byte) []byte {
	if len(b) >= 32 {
		return b
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}
