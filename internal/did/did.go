// Package did models decentralized identifiers and their documents for the
// single supported method, did:web.
package did

import (
	"fmt"
	"net/url"
	"strings"

	dErrors "miw/pkg/domain-errors"
)

// MethodWeb is the only DID method this service resolves.
const MethodWeb = "web"

// DID is a parsed decentralized identifier.
type DID struct {
	Method           string
	MethodSpecificID string
}

// Parse validates the syntax of a DID string. It accepts any method so that
// externally presented identifiers can at least be syntax-checked; resolution
// is restricted separately.
func Parse(s string) (DID, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] != "did" || parts[1] == "" || parts[2] == "" {
		return DID{}, dErrors.Newf(dErrors.CodeInvalidInput, "malformed DID %q", s)
	}
	return DID{Method: parts[1], MethodSpecificID: parts[2]}, nil
}

// IsDID reports whether s is syntactically a DID.
func IsDID(s string) bool {
	_, err := Parse(s)
	return err == nil
}

func (d DID) String() string {
	return fmt.Sprintf("did:%s:%s", d.Method, d.MethodSpecificID)
}

// DocumentURL maps a did:web identifier to the HTTPS location of its DID
// document, per the did:web method specification.
func (d DID) DocumentURL() (string, error) {
	if d.Method != MethodWeb {
		return "", dErrors.Newf(dErrors.CodeBadRequest, "unsupported DID method %q", d.Method)
	}
	segments := strings.Split(d.MethodSpecificID, ":")
	host, err := url.PathUnescape(segments[0])
	if err != nil {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "malformed did:web host %q", segments[0])
	}
	if len(segments) == 1 {
		return fmt.Sprintf("https://%s/.well-known/did.json", host), nil
	}
	path := make([]string, 0, len(segments)-1)
	for _, seg := range segments[1:] {
		unescaped, err := url.PathUnescape(seg)
		if err != nil {
			return "", dErrors.Newf(dErrors.CodeInvalidInput, "malformed did:web path segment %q", seg)
		}
		path = append(path, unescaped)
	}
	return fmt.Sprintf("https://%s/%s/did.json", host, strings.Join(path, "/")), nil
}

// FromWebLocation builds the did:web identifier for a host and path, the
// inverse of DocumentURL. Used when minting wallet DIDs.
func FromWebLocation(host string, pathSegments ...string) DID {
	id := url.PathEscape(host)
	for _, seg := range pathSegments {
		id += ":" + url.PathEscape(seg)
	}
	return DID{Method: MethodWeb, MethodSpecificID: id}
}
