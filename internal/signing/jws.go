package signing

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	dErrors "miw/pkg/domain-errors"
)

// Embedded proofs carry a detached JWS (RFC 7797, b64=false): the payload is
// the raw signing input and is omitted from the serialized form, so the JWS
// reads header..signature.
type jwsHeader struct {
	Alg  string   `json:"alg"`
	B64  bool     `json:"b64"`
	Crit []string `json:"crit"`
}

func signDetached(method jwt.SigningMethod, key any, payload []byte) (string, error) {
	header, err := json.Marshal(jwsHeader{Alg: method.Alg(), B64: false, Crit: []string{"b64"}})
	if err != nil {
		return "", fmt.Errorf("marshal JWS header: %w", err)
	}
	encHeader := base64.RawURLEncoding.EncodeToString(header)
	signingInput := encHeader + "." + string(payload)
	sig, err := method.Sign(signingInput, key)
	if err != nil {
		return "", fmt.Errorf("sign detached JWS: %w", err)
	}
	return encHeader + ".." + base64.RawURLEncoding.EncodeToString(sig), nil
}

func verifyDetached(jws string, payload []byte, keyForAlg func(alg string) (any, jwt.SigningMethod, error)) error {
	parts := strings.Split(jws, ".")
	if len(parts) != 3 || parts[1] != "" {
		return dErrors.New(dErrors.CodeBadRequest, "malformed detached JWS")
	}
	rawHeader, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed JWS header")
	}
	var header jwsHeader
	if err := json.Unmarshal(rawHeader, &header); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed JWS header")
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed JWS signature")
	}
	key, method, err := keyForAlg(header.Alg)
	if err != nil {
		return err
	}
	signingInput := parts[0] + "." + string(payload)
	return method.Verify(signingInput, sig, key)
}
