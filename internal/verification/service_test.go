package verification

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"miw/internal/did"
	"miw/internal/signing"
	vc "miw/internal/vc/models"
	"miw/internal/verification/mocks"
	dErrors "miw/pkg/domain-errors"
	"miw/pkg/platform/sentinel"
)

const issuerDID = "did:web:issuer.example.com"

type VerificationSuite struct {
	suite.Suite
	ctx      context.Context
	registry *signing.Registry
	ctrl     *gomock.Controller
	resolver *mocks.MockResolver
	svc      *Service
}

func TestVerificationSuite(t *testing.T) {
	suite.Run(t, new(VerificationSuite))
}

func (s *VerificationSuite) SetupTest() {
	s.ctx = context.Background()
	s.registry = signing.NewRegistry(signing.NewInMemoryKeyStore())
	s.ctrl = gomock.NewController(s.T())
	s.resolver = mocks.NewMockResolver(s.ctrl)
	s.svc = New(s.resolver)
}

// signedCredential issues a credential with a fresh identity and returns it
// with the document its signature verifies against.
func (s *VerificationSuite) signedCredential(alg signing.Algorithm, enc signing.Encoding, expiry time.Time, status *vc.Status) (*signing.SignedCredential, *did.Document) {
	walletID := uuid.New()
	jwk, err := s.registry.GenerateKeyPair(s.ctx, walletID, alg)
	s.Require().NoError(err)
	doc := did.NewDocument(issuerDID, jwk)

	signer, err := s.registry.For(alg)
	s.Require().NoError(err)
	signed, err := signer.CreateCredential(s.ctx, signing.CredentialConfig{
		Types:          []string{vc.TypeMembership},
		IssuerDoc:      doc,
		IssuerWalletID: walletID,
		HolderDID:      "did:web:holder.example.com",
		Subjects:       vc.SubjectList{{"id": "did:web:holder.example.com"}},
		ExpirationDate: &expiry,
		Status:         status,
		Encoding:       enc,
	})
	s.Require().NoError(err)
	return signed, doc
}

func (s *VerificationSuite) TestSignatureRoundTrip() {
	future := time.Now().Add(24 * time.Hour)
	for _, alg := range []signing.Algorithm{signing.AlgorithmED25519, signing.AlgorithmSecp256k1} {
		for _, enc := range []signing.Encoding{signing.EncodingEmbedded, signing.EncodingJWT} {
			s.Run(string(alg)+"/"+string(enc), func() {
				signed, doc := s.signedCredential(alg, enc, future, nil)
				s.resolver.EXPECT().Resolve(gomock.Any(), issuerDID).Return(doc, nil)

				in := CredentialInput{Credential: signed.Credential}
				if enc == signing.EncodingJWT {
					in = CredentialInput{Token: signed.Token}
				}
				res, err := s.svc.VerifyCredential(s.ctx, in, Checks{Signature: true, Expiry: true})
				s.Require().NoError(err)
				s.True(res.Valid)
				s.Require().NotNil(res.ValidateExpiryDate)
				s.True(*res.ValidateExpiryDate)
			})
		}
	}
}

func (s *VerificationSuite) TestResolverOutageFailsCheckNotRequest() {
	signed, _ := s.signedCredential(signing.AlgorithmED25519, signing.EncodingEmbedded, time.Now().Add(time.Hour), nil)
	s.resolver.EXPECT().Resolve(gomock.Any(), issuerDID).
		Return(nil, sentinel.ErrUnavailable)

	res, err := s.svc.VerifyCredential(s.ctx, CredentialInput{Credential: signed.Credential}, Checks{Signature: true})
	s.Require().NoError(err)
	s.False(res.Valid)
}

func (s *VerificationSuite) TestExpiredCredential() {
	signed, _ := s.signedCredential(signing.AlgorithmED25519, signing.EncodingEmbedded, time.Now().Add(-time.Hour), nil)

	res, err := s.svc.VerifyCredential(s.ctx, CredentialInput{Credential: signed.Credential}, Checks{Expiry: true})
	s.Require().NoError(err)
	s.False(res.Valid)
	s.Require().NotNil(res.ValidateExpiryDate)
	s.False(*res.ValidateExpiryDate)
}

func (s *VerificationSuite) TestExpiryCheckSkippable() {
	signed, _ := s.signedCredential(signing.AlgorithmED25519, signing.EncodingEmbedded, time.Now().Add(-time.Hour), nil)

	res, err := s.svc.VerifyCredential(s.ctx, CredentialInput{Credential: signed.Credential}, Checks{})
	s.Require().NoError(err)
	s.True(res.Valid)
	s.Nil(res.ValidateExpiryDate)
}

func (s *VerificationSuite) TestRevocation() {
	status := &vc.Status{ID: "https://revocation.example.com/list#12", Type: "StatusList2021Entry"}
	future := time.Now().Add(time.Hour)

	s.Run("revoked credential is invalid", func() {
		signed, _ := s.signedCredential(signing.AlgorithmED25519, signing.EncodingEmbedded, future, status)
		revocation := mocks.NewMockRevocationClient(s.ctrl)
		revocation.EXPECT().StatusOf(gomock.Any(), status).Return("revoked", nil)
		svc := New(s.resolver, WithRevocationClient(revocation))

		res, err := svc.VerifyCredential(s.ctx, CredentialInput{Credential: signed.Credential}, Checks{Revocation: true})
		s.Require().NoError(err)
		s.False(res.Valid)
		s.Equal("revoked", res.CredentialStatus)
	})

	s.Run("active credential stays valid", func() {
		signed, _ := s.signedCredential(signing.AlgorithmED25519, signing.EncodingEmbedded, future, status)
		revocation := mocks.NewMockRevocationClient(s.ctrl)
		revocation.EXPECT().StatusOf(gomock.Any(), status).Return(StatusActive, nil)
		svc := New(s.resolver, WithRevocationClient(revocation))

		res, err := svc.VerifyCredential(s.ctx, CredentialInput{Credential: signed.Credential}, Checks{Revocation: true})
		s.Require().NoError(err)
		s.True(res.Valid)
	})

	s.Run("revocation outage fails closed", func() {
		signed, _ := s.signedCredential(signing.AlgorithmED25519, signing.EncodingEmbedded, future, status)
		revocation := mocks.NewMockRevocationClient(s.ctrl)
		revocation.EXPECT().StatusOf(gomock.Any(), status).Return("", errors.New("connection refused"))
		svc := New(s.resolver, WithRevocationClient(revocation))

		res, err := svc.VerifyCredential(s.ctx, CredentialInput{Credential: signed.Credential}, Checks{Revocation: true})
		s.Require().NoError(err)
		s.False(res.Valid)
		s.Equal(StatusUnknown, res.CredentialStatus)
	})

	s.Run("declared status is checked even when not requested", func() {
		signed, _ := s.signedCredential(signing.AlgorithmED25519, signing.EncodingEmbedded, future, status)
		revocation := mocks.NewMockRevocationClient(s.ctrl)
		revocation.EXPECT().StatusOf(gomock.Any(), status).Return("revoked", nil)
		svc := New(s.resolver, WithRevocationClient(revocation))

		res, err := svc.VerifyCredential(s.ctx, CredentialInput{Credential: signed.Credential}, Checks{})
		s.Require().NoError(err)
		s.False(res.Valid)
		s.Equal("revoked", res.CredentialStatus)
	})

	s.Run("no status means nothing to check", func() {
		signed, _ := s.signedCredential(signing.AlgorithmED25519, signing.EncodingEmbedded, future, nil)

		res, err := s.svc.VerifyCredential(s.ctx, CredentialInput{Credential: signed.Credential}, Checks{Revocation: true})
		s.Require().NoError(err)
		s.True(res.Valid)
		s.Empty(res.CredentialStatus)
	})
}

func (s *VerificationSuite) TestTamperedTokenSignatureFails() {
	signed, doc := s.signedCredential(signing.AlgorithmED25519, signing.EncodingJWT, time.Now().Add(time.Hour), nil)
	s.resolver.EXPECT().Resolve(gomock.Any(), issuerDID).Return(doc, nil)

	parts := strings.Split(signed.Token, ".")
	s.Require().Len(parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	s.Require().NoError(err)
	tampered := strings.Replace(string(payload), "did:web:holder", "did:web:mallet", 1)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(tampered))

	res, err := s.svc.VerifyCredential(s.ctx, CredentialInput{Token: strings.Join(parts, ".")}, Checks{Signature: true})
	s.Require().NoError(err)
	s.False(res.Valid)
}

func (s *VerificationSuite) TestMalformedInputIsAnError() {
	_, err := s.svc.VerifyCredential(s.ctx, CredentialInput{Token: "not-a-token"}, Checks{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	_, err = s.svc.VerifyCredential(s.ctx, CredentialInput{}, Checks{})
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}
