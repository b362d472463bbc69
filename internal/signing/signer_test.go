package signing

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"miw/internal/did"
	"miw/internal/vc/models"
	dErrors "miw/pkg/domain-errors"
)

type SignerSuite struct {
	suite.Suite
	registry *Registry
	ctx      context.Context
}

func (s *SignerSuite) SetupTest() {
	s.registry = NewRegistry(NewInMemoryKeyStore())
	s.ctx = context.Background()
}

func TestSignerSuite(t *testing.T) {
	suite.Run(t, new(SignerSuite))
}

// newIdentity provisions a key pair and a DID document for a fresh wallet.
func (s *SignerSuite) newIdentity(alg Algorithm, didStr string) (uuid.UUID, *did.Document) {
	walletID := uuid.New()
	jwk, err := s.registry.GenerateKeyPair(s.ctx, walletID, alg)
	s.Require().NoError(err)
	return walletID, did.NewDocument(didStr, jwk)
}

func (s *SignerSuite) credentialConfig(walletID uuid.UUID, doc *did.Document, enc Encoding) CredentialConfig {
	exp := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	return CredentialConfig{
		Types:          []string{models.TypeMembership},
		IssuerDoc:      doc,
		IssuerWalletID: walletID,
		HolderDID:      "did:web:holder.example.com",
		Subjects: models.SubjectList{{
			"id":        "did:web:holder.example.com",
			"memberOf":  "Network Operator",
			"holderBpn": "BPNL000000000001",
			"startTime": time.Now().UTC().Format(time.RFC3339),
		}},
		ExpirationDate: &exp,
		Encoding:       enc,
	}
}

func (s *SignerSuite) TestCredentialRoundTrip() {
	for _, alg := range []Algorithm{AlgorithmED25519, AlgorithmSecp256k1} {
		s.Run(string(alg)+" embedded proof verifies", func() {
			walletID, doc := s.newIdentity(alg, "did:web:issuer.example.com")
			signer, err := s.registry.For(alg)
			s.Require().NoError(err)

			signed, err := signer.CreateCredential(s.ctx, s.credentialConfig(walletID, doc, EncodingEmbedded))
			s.Require().NoError(err)
			s.Require().NotNil(signed.Credential.Proof)
			s.Empty(signed.Token)
			s.Equal(models.TypeVerifiableCredential, signed.Credential.Type[0])

			s.NoError(VerifyCredentialProof(signed.Credential, doc))
		})

		s.Run(string(alg)+" token verifies with document keyfunc", func() {
			walletID, doc := s.newIdentity(alg, "did:web:issuer.example.com")
			signer, err := s.registry.For(alg)
			s.Require().NoError(err)

			signed, err := signer.CreateCredential(s.ctx, s.credentialConfig(walletID, doc, EncodingJWT))
			s.Require().NoError(err)
			s.Require().NotEmpty(signed.Token)

			var claims models.CredentialClaims
			parsed, err := jwt.ParseWithClaims(signed.Token, &claims, Keyfunc(doc))
			s.Require().NoError(err)
			s.True(parsed.Valid)
			s.Equal(doc.ID, claims.Issuer)
			// exp is derived from the credential's own expirationDate.
			s.Require().NotNil(claims.ExpiresAt)
			s.Equal(signed.Credential.ExpirationDate.Unix(), claims.ExpiresAt.Unix())
		})
	}
}

func (s *SignerSuite) TestTamperedCredentialFailsVerification() {
	walletID, doc := s.newIdentity(AlgorithmED25519, "did:web:issuer.example.com")
	signer, err := s.registry.For(AlgorithmED25519)
	s.Require().NoError(err)

	signed, err := signer.CreateCredential(s.ctx, s.credentialConfig(walletID, doc, EncodingEmbedded))
	s.Require().NoError(err)

	signed.Credential.CredentialSubject[0]["memberOf"] = "Somebody Else"
	s.Error(VerifyCredentialProof(signed.Credential, doc))
}

func (s *SignerSuite) TestWrongKeyFailsVerification() {
	walletID, doc := s.newIdentity(AlgorithmSecp256k1, "did:web:issuer.example.com")
	_, otherDoc := s.newIdentity(AlgorithmSecp256k1, "did:web:issuer.example.com")
	signer, err := s.registry.For(AlgorithmSecp256k1)
	s.Require().NoError(err)

	signed, err := signer.CreateCredential(s.ctx, s.credentialConfig(walletID, doc, EncodingEmbedded))
	s.Require().NoError(err)

	s.Error(VerifyCredentialProof(signed.Credential, otherDoc))
}

func (s *SignerSuite) TestPresentationAudienceRequiredForToken() {
	walletID, doc := s.newIdentity(AlgorithmED25519, "did:web:holder.example.com")
	signer, err := s.registry.For(AlgorithmED25519)
	s.Require().NoError(err)

	signedCred, err := signer.CreateCredential(s.ctx, s.credentialConfig(walletID, doc, EncodingEmbedded))
	s.Require().NoError(err)

	_, err = signer.CreatePresentation(s.ctx, PresentationConfig{
		HolderDoc:      doc,
		HolderWalletID: walletID,
		Credentials:    []models.Credential{*signedCred.Credential},
		Encoding:       EncodingJWT,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *SignerSuite) TestPresentationTokenExpiryTracksEarliestCredential() {
	walletID, doc := s.newIdentity(AlgorithmED25519, "did:web:holder.example.com")
	signer, err := s.registry.For(AlgorithmED25519)
	s.Require().NoError(err)

	near := time.Now().Add(1 * time.Hour).UTC().Truncate(time.Second)
	far := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)

	cfgNear := s.credentialConfig(walletID, doc, EncodingEmbedded)
	cfgNear.ExpirationDate = &near
	credNear, err := signer.CreateCredential(s.ctx, cfgNear)
	s.Require().NoError(err)

	cfgFar := s.credentialConfig(walletID, doc, EncodingEmbedded)
	cfgFar.ExpirationDate = &far
	credFar, err := signer.CreateCredential(s.ctx, cfgFar)
	s.Require().NoError(err)

	signed, err := signer.CreatePresentation(s.ctx, PresentationConfig{
		HolderDoc:      doc,
		HolderWalletID: walletID,
		Audience:       "did:web:verifier.example.com",
		Credentials:    []models.Credential{*credNear.Credential, *credFar.Credential},
		Encoding:       EncodingJWT,
	})
	s.Require().NoError(err)

	var claims models.PresentationClaims
	_, err = jwt.ParseWithClaims(signed.Token, &claims, Keyfunc(doc))
	s.Require().NoError(err)
	s.Equal(near.Unix(), claims.ExpiresAt.Unix())
}

func (s *SignerSuite) TestUnsupportedAlgorithmIsConfigurationError() {
	_, err := s.registry.For(Algorithm("RSA"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnsupportedAlgorithm))
}
