// Package service implements credential issuance, storage, and the summary
// rewrite that follows every issuance.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"miw/internal/audit"
	"miw/internal/credential/metrics"
	"miw/internal/credential/models"
	"miw/internal/signing"
	vc "miw/internal/vc/models"
	walletmodels "miw/internal/wallet/models"
	dErrors "miw/pkg/domain-errors"
	"miw/pkg/platform/sentinel"
	"miw/pkg/requestcontext"
)

// WalletResolver is the slice of the wallet service this package needs.
type WalletResolver interface {
	FindByIdentifier(ctx context.Context, identifier string) (*walletmodels.Wallet, error)
	Authority(ctx context.Context) (*walletmodels.Wallet, error)
	AuthorityBPN() string
}

// HolderStore persists the holder-side view of credentials.
type HolderStore interface {
	Create(ctx context.Context, r *models.Record) error
	ListByHolder(ctx context.Context, holderDID string, filter models.Filter) ([]*models.Record, error)
	FindByHolderAndTypes(ctx context.Context, holderDID string, types []string) ([]*models.Record, error)
	FindByHolderAndCredentialID(ctx context.Context, holderDID, credentialID string) (*models.Record, error)
	Delete(ctx context.Context, holderDID, credentialID string) error
	DeleteSupersededSummaries(ctx context.Context, holderDID, issuerDID string) error
}

// IssuerStore persists the append-only issuer-side view of credentials.
type IssuerStore interface {
	Create(ctx context.Context, r *models.Record) error
	ListByIssuer(ctx context.Context, issuerDID string, filter models.Filter) ([]*models.Record, error)
	LatestSummary(ctx context.Context, issuerDID, holderDID string) (*models.Record, error)
	CountByHolderAndType(ctx context.Context, issuerDID, holderDID, credType string) (int, error)
}

// TxRunner wraps a function in a storage transaction. Issuance and the
// summary rewrite run inside one call so a failure between "delete old
// summary" and "insert new summary" rolls back as a unit.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// NoTx runs the function without transactional guarantees. Used with the
// in-memory stores.
func NoTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Config carries issuance policy.
type Config struct {
	// CredentialValidity is the lifetime applied to issued credentials when
	// the request does not carry an explicit expiration date.
	CredentialValidity time.Duration
}

func (c *Config) applyDefaults() {
	if c.CredentialValidity <= 0 {
		c.CredentialValidity = 365 * 24 * time.Hour
	}
}

// Service is the credential issuance engine.
type Service struct {
	wallets WalletResolver
	holders HolderStore
	issuers IssuerStore
	signers *signing.Registry
	cfg     Config

	runTx   TxRunner
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   *audit.Publisher
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithTxRunner(run TxRunner) Option {
	return func(s *Service) { s.runTx = run }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAudit(p *audit.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

func New(wallets WalletResolver, holders HolderStore, issuers IssuerStore, signers *signing.Registry, cfg Config, opts ...Option) *Service {
	cfg.applyDefaults()
	s := &Service{
		wallets: wallets,
		holders: holders,
		issuers: issuers,
		signers: signers,
		cfg:     cfg,
		runTx:   NoTx,
		logger:  slog.Default(),
		tracer:  otel.Tracer("credential"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue signs a caller-defined credential from the caller's own wallet.
func (s *Service) Issue(ctx context.Context, req models.IssueRequest) (*models.IssueResult, error) {
	ctx, span := s.tracer.Start(ctx, "credential.Issue")
	defer span.End()

	issuer, err := s.wallets.FindByIdentifier(ctx, req.IssuerIdentifier)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeCaller(ctx, issuer.BPN); err != nil {
		return nil, err
	}
	holder, err := s.wallets.FindByIdentifier(ctx, req.HolderIdentifier)
	if err != nil {
		return nil, err
	}

	return s.issue(ctx, issueParams{
		issuer:   issuer,
		holder:   holder,
		types:    specificTypes(req.Types),
		context:  req.Context,
		subjects: vc.SubjectList{req.Subject},
		expiry:   req.ExpirationDate,
		asJWT:    req.AsJWT,
	})
}

// IssueMembership issues the membership credential from the authority wallet.
func (s *Service) IssueMembership(ctx context.Context, req models.IssueMembershipRequest) (*models.IssueResult, error) {
	ctx, span := s.tracer.Start(ctx, "credential.IssueMembership")
	defer span.End()

	issuer, holder, err := s.resolvePrivileged(ctx, req.BPN)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, issueParams{
		issuer: issuer,
		holder: holder,
		types:  []string{vc.TypeMembership},
		subjects: vc.SubjectList{{
			"id":               holder.DID,
			"type":             vc.TypeMembership,
			"holderIdentifier": holder.BPN,
			"memberOf":         "Catena-X",
			"status":           "Active",
			"startTime":        requestcontext.Now(ctx).UTC().Format(time.RFC3339),
		}},
		asJWT: req.AsJWT,
	})
}

// IssueDismantler issues the dismantler credential from the authority wallet.
func (s *Service) IssueDismantler(ctx context.Context, req models.IssueDismantlerRequest) (*models.IssueResult, error) {
	ctx, span := s.tracer.Start(ctx, "credential.IssueDismantler")
	defer span.End()

	issuer, holder, err := s.resolvePrivileged(ctx, req.BPN)
	if err != nil {
		return nil, err
	}
	subject := vc.Subject{
		"id":               holder.DID,
		"type":             vc.TypeDismantler,
		"holderIdentifier": holder.BPN,
		"activityType":     req.ActivityType,
	}
	if len(req.AllowedVehicleBrands) > 0 {
		subject["allowedVehicleBrands"] = req.AllowedVehicleBrands
	}
	return s.issue(ctx, issueParams{
		issuer:   issuer,
		holder:   holder,
		types:    []string{vc.TypeDismantler},
		subjects: vc.SubjectList{subject},
		asJWT:    req.AsJWT,
	})
}

// IssueFramework issues a use-case framework credential from the authority
// wallet. The credential's specific type is the use-case type itself.
func (s *Service) IssueFramework(ctx context.Context, req models.IssueFrameworkRequest) (*models.IssueResult, error) {
	ctx, span := s.tracer.Start(ctx, "credential.IssueFramework")
	defer span.End()

	issuer, holder, err := s.resolvePrivileged(ctx, req.HolderIdentifier)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, issueParams{
		issuer: issuer,
		holder: holder,
		types:  []string{vc.TypeFramework, req.UseCaseType},
		subjects: vc.SubjectList{{
			"id":               holder.DID,
			"type":             req.UseCaseType,
			"holderIdentifier": holder.BPN,
			"contractTemplate": req.ContractTemplate,
			"contractVersion":  req.ContractVersion,
		}},
		asJWT: req.AsJWT,
	})
}

// IssueBPNForWallet issues the BPN credential from the authority wallet to a
// freshly created wallet. Wired as the wallet service's created hook, so it
// runs without a caller access check.
func (s *Service) IssueBPNForWallet(ctx context.Context, w *walletmodels.Wallet) error {
	ctx, span := s.tracer.Start(ctx, "credential.IssueBPNForWallet")
	defer span.End()

	issuer, err := s.wallets.Authority(ctx)
	if err != nil {
		return err
	}
	_, err = s.issue(ctx, issueParams{
		issuer: issuer,
		holder: w,
		types:  []string{vc.TypeBPN},
		subjects: vc.SubjectList{{
			"id":               w.DID,
			"type":             vc.TypeBPN,
			"bpn":              w.BPN,
			"holderIdentifier": w.BPN,
		}},
	})
	return err
}

// Store records an externally produced credential in the holder's wallet.
// Stored credentials get no issuer record and never touch the summary.
func (s *Service) Store(ctx context.Context, req models.StoreRequest) (*models.Record, error) {
	ctx, span := s.tracer.Start(ctx, "credential.Store")
	defer span.End()

	holder, err := s.wallets.FindByIdentifier(ctx, req.HolderIdentifier)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeCaller(ctx, holder.BPN); err != nil {
		return nil, err
	}

	cred := req.Credential
	rec := models.NewRecord(&cred, holder.DID, true, requestcontext.Now(ctx))
	if err := s.runTx(ctx, func(ctx context.Context) error {
		return s.holders.Create(ctx, rec)
	}); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.CredentialsStored.Inc()
	}
	s.emit(ctx, audit.Event{
		Action:       audit.ActionCredentialStored,
		HolderDID:    holder.DID,
		IssuerDID:    cred.Issuer,
		CredentialID: cred.ID,
		Type:         rec.Type,
	})
	s.logger.InfoContext(ctx, "credential stored",
		"credential_id", cred.ID, "holder_did", holder.DID, "type", rec.Type)
	return rec, nil
}

// List returns the holder-side credentials of a wallet, newest first.
func (s *Service) List(ctx context.Context, identifier string, filter models.Filter) ([]*models.Record, error) {
	wallet, err := s.wallets.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeCaller(ctx, wallet.BPN); err != nil {
		return nil, err
	}
	return s.holders.ListByHolder(ctx, wallet.DID, filter)
}

// Delete removes a credential from the caller's wallet. For locally issued
// credentials the live summary is rewritten without the deleted type once no
// credential of that type remains.
func (s *Service) Delete(ctx context.Context, holderIdentifier, credentialID string) error {
	ctx, span := s.tracer.Start(ctx, "credential.Delete")
	defer span.End()

	holder, err := s.wallets.FindByIdentifier(ctx, holderIdentifier)
	if err != nil {
		return err
	}
	if err := s.authorizeCaller(ctx, holder.BPN); err != nil {
		return err
	}
	rec, err := s.holders.FindByHolderAndCredentialID(ctx, holder.DID, credentialID)
	if err != nil {
		return err
	}

	err = s.runTx(ctx, func(ctx context.Context) error {
		if err := s.holders.Delete(ctx, holder.DID, credentialID); err != nil {
			return err
		}
		if rec.Stored || rec.Type == "" || rec.Type == vc.TypeSummary {
			return nil
		}
		// Only rewrite the summary when the issuer is a local wallet and no
		// credential of the deleted type remains.
		issuer, err := s.wallets.FindByIdentifier(ctx, rec.IssuerDID)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) || errorsIsNotFound(err) {
				return nil
			}
			return err
		}
		remaining, err := s.holders.FindByHolderAndTypes(ctx, holder.DID, []string{rec.Type})
		if err != nil {
			return err
		}
		if len(remaining) > 0 {
			return nil
		}
		return s.rebuildSummary(ctx, issuer, holder, func(items []string) []string {
			return removeItem(items, rec.Type)
		})
	})
	if err != nil {
		return err
	}

	s.emit(ctx, audit.Event{
		Action:       audit.ActionCredentialDeleted,
		HolderDID:    holder.DID,
		IssuerDID:    rec.IssuerDID,
		CredentialID: credentialID,
		Type:         rec.Type,
	})
	return nil
}

type issueParams struct {
	issuer   *walletmodels.Wallet
	holder   *walletmodels.Wallet
	types    []string
	context  []string
	subjects vc.SubjectList
	expiry   *time.Time
	asJWT    bool
}

// issue is the shared issuance path: uniqueness check, sign, persist both
// record sides, then rewrite the summary. Everything runs in one transaction.
func (s *Service) issue(ctx context.Context, p issueParams) (*models.IssueResult, error) {
	start := time.Now()
	now := requestcontext.Now(ctx)

	signer, err := s.signers.For(p.issuer.Algorithm)
	if err != nil {
		return nil, err
	}

	expiry := p.expiry
	if expiry == nil {
		e := now.Add(s.cfg.CredentialValidity)
		expiry = &e
	}
	encoding := signing.EncodingEmbedded
	if p.asJWT {
		encoding = signing.EncodingJWT
	}

	var signed *signing.SignedCredential
	err = s.runTx(ctx, func(ctx context.Context) error {
		for _, t := range p.types {
			if !vc.UniquePerHolder[t] {
				continue
			}
			n, err := s.issuers.CountByHolderAndType(ctx, p.issuer.DID, p.holder.DID, t)
			if err != nil {
				return err
			}
			if n > 0 {
				return dErrors.Newf(dErrors.CodeConflict, "holder %s already has a %s", p.holder.BPN, t)
			}
		}

		signed, err = signer.CreateCredential(ctx, signing.CredentialConfig{
			Context:        p.context,
			Types:          p.types,
			IssuerDoc:      p.issuer.Document,
			IssuerWalletID: p.issuer.ID,
			HolderDID:      p.holder.DID,
			Subjects:       p.subjects,
			ExpirationDate: expiry,
			SelfIssued:     strings.EqualFold(p.issuer.BPN, p.holder.BPN),
			Encoding:       encoding,
		})
		if err != nil {
			return err
		}

		rec := models.NewRecord(signed.Credential, p.holder.DID, false, now)
		if err := s.holders.Create(ctx, rec); err != nil {
			return err
		}
		if err := s.issuers.Create(ctx, models.NewRecord(signed.Credential, p.holder.DID, false, now)); err != nil {
			return err
		}

		newType := ""
		if specific := signed.Credential.SpecificTypes(); len(specific) > 0 {
			newType = specific[0]
		}
		return s.rebuildSummary(ctx, p.issuer, p.holder, func(items []string) []string {
			return appendIfAbsent(items, newType)
		})
	})
	if err != nil {
		return nil, err
	}

	primary := ""
	if specific := signed.Credential.SpecificTypes(); len(specific) > 0 {
		primary = specific[0]
	}
	if s.metrics != nil {
		s.metrics.CredentialsIssued.WithLabelValues(primary).Inc()
		s.metrics.ObserveIssue(start)
	}
	s.emit(ctx, audit.Event{
		Action:       audit.ActionCredentialIssued,
		HolderDID:    p.holder.DID,
		IssuerDID:    p.issuer.DID,
		CredentialID: signed.Credential.ID,
		Type:         primary,
	})
	s.logger.InfoContext(ctx, "credential issued",
		"credential_id", signed.Credential.ID,
		"type", primary,
		"issuer_did", p.issuer.DID,
		"holder_did", p.holder.DID)

	return &models.IssueResult{Credential: signed.Credential, Token: signed.Token}, nil
}

// resolvePrivileged resolves the authority wallet as issuer and the holder,
// and enforces that only the authority may issue the privileged families.
func (s *Service) resolvePrivileged(ctx context.Context, holderIdentifier string) (issuer, holder *walletmodels.Wallet, err error) {
	issuer, err = s.wallets.Authority(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err = s.authorizeCaller(ctx, issuer.BPN); err != nil {
		return nil, nil, err
	}
	holder, err = s.wallets.FindByIdentifier(ctx, holderIdentifier)
	if err != nil {
		return nil, nil, err
	}
	return issuer, holder, nil
}

func (s *Service) authorizeCaller(ctx context.Context, requiredBPN string) error {
	caller := requestcontext.CallerBPN(ctx)
	if caller == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "caller identity is missing")
	}
	if !strings.EqualFold(caller, requiredBPN) {
		return dErrors.Newf(dErrors.CodeForbidden, "caller %s may not act for wallet %s", caller, requiredBPN)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	event.CallerBPN = requestcontext.CallerBPN(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}

// specificTypes strips the base type so callers may send it or not.
func specificTypes(types []string) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		if t != vc.TypeVerifiableCredential {
			out = append(out, t)
		}
	}
	return out
}

func appendIfAbsent(items []string, item string) []string {
	if item == "" {
		return items
	}
	for _, existing := range items {
		if existing == item {
			return items
		}
	}
	return append(items, item)
}

func removeItem(items []string, item string) []string {
	out := items[:0]
	for _, existing := range items {
		if existing != item {
			out = append(out, existing)
		}
	}
	return out
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}
