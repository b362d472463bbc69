package presentation

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"miw/internal/audit"
	"miw/internal/signing"
	vc "miw/internal/vc/models"
	dErrors "miw/pkg/domain-errors"
	"miw/pkg/platform/sentinel"
)

// accessTokenClaims is the slice of the STS access token this flow reads.
type accessTokenClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// scopeEntry is one parsed namespace:vcType:permission element.
type scopeEntry struct {
	namespace  string
	vcType     string
	permission string
}

// versionSuffix matches a trailing version marker on a scoped credential
// type, e.g. MembershipCredential_1.0.
var versionSuffix = regexp.MustCompile(`_v?\d+(\.\d+)*$`)

// CreateScoped builds a presentation from an STS access token: each scope
// entry names a credential type the caller wants presented. The call is
// all-or-nothing; a single type with no matching credential fails the whole
// request. On success the token's jti is consumed so the token cannot drive
// a second presentation.
func (s *Service) CreateScoped(ctx context.Context, req ScopedRequest) (*CreateResult, error) {
	ctx, span := s.tracer.Start(ctx, "presentation.CreateScoped")
	defer span.End()

	if s.ledger == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "token ledger is not configured")
	}

	claims := &accessTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(req.AccessToken, claims); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "parse access token")
	}
	holder, err := s.wallets.FindByIdentifier(ctx, claims.Issuer)
	if err != nil {
		return nil, err
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{"EdDSA", "ES256K"}))
	if _, err := parser.ParseWithClaims(req.AccessToken, &accessTokenClaims{}, signing.Keyfunc(holder.Document)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "access token rejected")
	}
	if claims.ID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "access token has no jti")
	}

	scopes, err := parseScopes(claims.Scope)
	if err != nil {
		return nil, err
	}

	var (
		missing     []string
		credentials []vc.Credential
		seen        = map[string]bool{}
	)
	for _, scope := range scopes {
		records, err := s.holders.FindByHolderAndTypes(ctx, holder.DID, []string{scope.vcType})
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			missing = append(missing, scope.vcType)
			continue
		}
		for _, r := range records {
			if seen[r.CredentialID] {
				continue
			}
			seen[r.CredentialID] = true
			credentials = append(credentials, *r.Credential)
		}
	}
	if len(missing) > 0 {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no credentials for scoped types: %s", strings.Join(missing, ", "))
	}

	expiresAt := time.Now().Add(time.Minute)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := s.ledger.Consume(ctx, claims.ID, expiresAt); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			s.emit(ctx, audit.Event{
				Action:    audit.ActionTokenReplayBlocked,
				HolderDID: holder.DID,
			})
			return nil, dErrors.Newf(dErrors.CodeConflict, "access token %s already used", claims.ID)
		}
		return nil, err
	}

	audience := ""
	if len(claims.Audience) > 0 {
		audience = claims.Audience[0]
	}
	return s.sign(ctx, holder, credentials, audience, req.AsJWT)
}

// parseScopes splits a space-separated scope claim into entries, rejecting
// anything but read access and stripping version suffixes from the type.
func parseScopes(scope string) ([]scopeEntry, error) {
	fields := strings.Fields(scope)
	if len(fields) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "access token has no scope")
	}
	entries := make([]scopeEntry, 0, len(fields))
	for _, field := range fields {
		parts := strings.Split(field, ":")
		if len(parts) != 3 {
			return nil, dErrors.Newf(dErrors.CodeBadRequest, "malformed scope %q", field)
		}
		entry := scopeEntry{
			namespace:  parts[0],
			vcType:     versionSuffix.ReplaceAllString(parts[1], ""),
			permission: parts[2],
		}
		if entry.permission != "read" {
			return nil, dErrors.Newf(dErrors.CodeForbidden, "scope %q requests %s access, only read is allowed", field, entry.permission)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
