package signing

import (
	"github.com/golang-jwt/jwt/v5"

	"miw/internal/did"
	"miw/internal/vc/models"
	dErrors "miw/pkg/domain-errors"
)

// Verification is algorithm-agnostic: the key is chosen by the artifact's own
// alg header, looked up on the resolved DID document. These helpers are pure
// crypto checks; resolution and policy live in the verification pipeline.

// VerifyCredentialProof checks a credential's embedded proof against a
// verification method on doc.
func VerifyCredentialProof(cred *models.Credential, doc *did.Document) error {
	if cred.Proof == nil {
		return dErrors.New(dErrors.CodeBadRequest, "credential has no proof")
	}
	payload, err := cred.SigningInput()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "serialize credential")
	}
	return verifyDetached(cred.Proof.JWS, payload, keyForAlg(doc, cred.Proof.VerificationMethod))
}

// VerifyPresentationProof checks a presentation's embedded proof against a
// verification method on doc.
func VerifyPresentationProof(vp *models.Presentation, doc *did.Document) error {
	if vp.Proof == nil {
		return dErrors.New(dErrors.CodeBadRequest, "presentation has no proof")
	}
	payload, err := vp.SigningInput()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "serialize presentation")
	}
	return verifyDetached(vp.Proof.JWS, payload, keyForAlg(doc, vp.Proof.VerificationMethod))
}

// Keyfunc returns a jwt.Keyfunc that resolves the verification key from doc,
// honoring the token's kid header when present.
func Keyfunc(doc *did.Document) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		vmID, _ := token.Header["kid"].(string)
		key, _, err := keyForAlg(doc, vmID)(token.Method.Alg())
		return key, err
	}
}

// keyForAlg maps a JOSE alg name onto the matching public key from the
// document's verification method.
func keyForAlg(doc *did.Document, vmID string) func(alg string) (any, jwt.SigningMethod, error) {
	return func(alg string) (any, jwt.SigningMethod, error) {
		vm, err := doc.FindVerificationMethod(vmID)
		if err != nil {
			// The referenced method may live on a newer document revision;
			// fall back to the document's primary method.
			vm, err = doc.FindVerificationMethod("")
			if err != nil {
				return nil, nil, err
			}
		}
		if vm.PublicKeyJWK == nil {
			return nil, nil, dErrors.Newf(dErrors.CodeBadRequest, "verification method %s has no public key", vm.ID)
		}
		switch alg {
		case jwt.SigningMethodEdDSA.Alg():
			key, err := vm.PublicKeyJWK.Ed25519Key()
			return key, jwt.SigningMethodEdDSA, err
		case SigningMethodES256K.Alg():
			key, err := vm.PublicKeyJWK.Secp256k1Key()
			return key, SigningMethodES256K, err
		default:
			return nil, nil, dErrors.Newf(dErrors.CodeBadRequest, "unsupported JOSE algorithm %q", alg)
		}
	}
}
