package models

import (
	"strings"
	"time"

	vc "miw/internal/vc/models"
	dErrors "miw/pkg/domain-errors"
	pstrings "miw/pkg/platform/strings"
)

// IssueRequest issues a credential of arbitrary types from the caller's own
// wallet to a holder.
type IssueRequest struct {
	IssuerIdentifier string     `json:"issuerIdentifier"`
	HolderIdentifier string     `json:"holderIdentifier"`
	Types            []string   `json:"type"`
	Context          []string   `json:"context,omitempty"`
	Subject          vc.Subject `json:"credentialSubject"`
	ExpirationDate   *time.Time `json:"expirationDate,omitempty"`
	AsJWT            bool       `json:"asJwt,omitempty"`
}

func (r *IssueRequest) Normalize() {
	r.IssuerIdentifier = strings.TrimSpace(r.IssuerIdentifier)
	r.HolderIdentifier = strings.TrimSpace(r.HolderIdentifier)
	r.Types = pstrings.DedupeAndTrim(r.Types)
	r.Context = pstrings.DedupeAndTrim(r.Context)
}

func (r *IssueRequest) Validate() error {
	if r.IssuerIdentifier == "" {
		return dErrors.New(dErrors.CodeValidation, "issuerIdentifier is required")
	}
	if r.HolderIdentifier == "" {
		return dErrors.New(dErrors.CodeValidation, "holderIdentifier is required")
	}
	if len(r.Types) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one credential type is required")
	}
	for _, t := range r.Types {
		if t == vc.TypeSummary {
			return dErrors.New(dErrors.CodeBadRequest, "summary credentials cannot be issued directly")
		}
	}
	if len(r.Subject) == 0 {
		return dErrors.New(dErrors.CodeValidation, "credentialSubject is required")
	}
	return nil
}

// IssueMembershipRequest issues the membership credential for a BPN.
type IssueMembershipRequest struct {
	BPN   string `json:"bpn"`
	AsJWT bool   `json:"asJwt,omitempty"`
}

func (r *IssueMembershipRequest) Normalize() { r.BPN = strings.TrimSpace(r.BPN) }

func (r *IssueMembershipRequest) Validate() error {
	if r.BPN == "" {
		return dErrors.New(dErrors.CodeValidation, "bpn is required")
	}
	return nil
}

// IssueDismantlerRequest issues the dismantler credential for a BPN.
type IssueDismantlerRequest struct {
	BPN                  string   `json:"bpn"`
	ActivityType         string   `json:"activityType"`
	AllowedVehicleBrands []string `json:"allowedVehicleBrands,omitempty"`
	AsJWT                bool     `json:"asJwt,omitempty"`
}

func (r *IssueDismantlerRequest) Normalize() {
	r.BPN = strings.TrimSpace(r.BPN)
	r.ActivityType = strings.TrimSpace(r.ActivityType)
}

func (r *IssueDismantlerRequest) Validate() error {
	if r.BPN == "" {
		return dErrors.New(dErrors.CodeValidation, "bpn is required")
	}
	if r.ActivityType == "" {
		return dErrors.New(dErrors.CodeValidation, "activityType is required")
	}
	return nil
}

// IssueFrameworkRequest issues a use-case framework credential.
type IssueFrameworkRequest struct {
	HolderIdentifier string `json:"holderIdentifier"`
	UseCaseType      string `json:"useCaseType"`
	ContractTemplate string `json:"contractTemplate"`
	ContractVersion  string `json:"contractVersion"`
	AsJWT            bool   `json:"asJwt,omitempty"`
}

func (r *IssueFrameworkRequest) Normalize() {
	r.HolderIdentifier = strings.TrimSpace(r.HolderIdentifier)
	r.UseCaseType = strings.TrimSpace(r.UseCaseType)
	r.ContractTemplate = strings.TrimSpace(r.ContractTemplate)
	r.ContractVersion = strings.TrimSpace(r.ContractVersion)
}

func (r *IssueFrameworkRequest) Validate() error {
	if r.HolderIdentifier == "" {
		return dErrors.New(dErrors.CodeValidation, "holderIdentifier is required")
	}
	if r.UseCaseType == "" {
		return dErrors.New(dErrors.CodeValidation, "useCaseType is required")
	}
	if r.ContractTemplate == "" {
		return dErrors.New(dErrors.CodeValidation, "contractTemplate is required")
	}
	if r.ContractVersion == "" {
		return dErrors.New(dErrors.CodeValidation, "contractVersion is required")
	}
	return nil
}

// StoreRequest stores an externally produced credential into a holder wallet.
type StoreRequest struct {
	HolderIdentifier string        `json:"holderIdentifier"`
	Credential       vc.Credential `json:"credential"`
}

func (r *StoreRequest) Normalize() { r.HolderIdentifier = strings.TrimSpace(r.HolderIdentifier) }

func (r *StoreRequest) Validate() error {
	if r.HolderIdentifier == "" {
		return dErrors.New(dErrors.CodeValidation, "holderIdentifier is required")
	}
	if r.Credential.ID == "" || r.Credential.Issuer == "" {
		return dErrors.New(dErrors.CodeValidation, "credential id and issuer are required")
	}
	if len(r.Credential.Type) == 0 || r.Credential.Type[0] != vc.TypeVerifiableCredential {
		return dErrors.New(dErrors.CodeBadRequest, "credential type must begin with VerifiableCredential")
	}
	return nil
}

// IssueResult carries the issued credential in the encoding the caller asked
// for. Token is set only when the request had asJwt.
type IssueResult struct {
	Credential *vc.Credential `json:"verifiableCredential"`
	Token      string         `json:"jwt,omitempty"`
}
