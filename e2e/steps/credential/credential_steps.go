package credential

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext defines the methods these steps need from the main context.
type TestContext interface {
	CallerBPN() string
	POST(path string, body any) error
	GET(path string) error
	LastStatus() int
	ResponseField(path string) (any, error)
	ResponseList() ([]any, error)
}

// RegisterSteps registers credential issuance and listing steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &credentialSteps{tc: tc}

	ctx.Step(`^I issue a membership credential for "([^"]*)"$`, steps.issueMembership)
	ctx.Step(`^I issue a dismantler credential for "([^"]*)" with activity "([^"]*)"$`, steps.issueDismantler)
	ctx.Step(`^I list the credentials of "([^"]*)"$`, steps.listCredentials)
	ctx.Step(`^I list my credentials of type "([^"]*)"$`, steps.listOwnCredentialsOfType)
	ctx.Step(`^the list should contain (\d+) credentials?$`, steps.listShouldContainN)
	ctx.Step(`^the summary items should include "([^"]*)"$`, steps.summaryItemsShouldInclude)
}

type credentialSteps struct {
	tc TestContext
}

func (s *credentialSteps) issueMembership(ctx context.Context, bpn string) error {
	return s.tc.POST("/api/credentials/issuer/membership", map[string]any{"bpn": bpn})
}

func (s *credentialSteps) issueDismantler(ctx context.Context, bpn, activity string) error {
	return s.tc.POST("/api/credentials/issuer/dismantler", map[string]any{
		"bpn":          bpn,
		"activityType": activity,
	})
}

func (s *credentialSteps) listCredentials(ctx context.Context, identifier string) error {
	return s.tc.GET("/api/credentials?holderIdentifier=" + identifier)
}

func (s *credentialSteps) listOwnCredentialsOfType(ctx context.Context, credType string) error {
	return s.tc.GET("/api/credentials?type=" + credType)
}

func (s *credentialSteps) listShouldContainN(ctx context.Context, expected int) error {
	records, err := s.tc.ResponseList()
	if err != nil {
		return err
	}
	if len(records) != expected {
		return fmt.Errorf("expected %d credentials, got %d", expected, len(records))
	}
	return nil
}

// summaryItemsShouldInclude lists the caller's summary credential and checks
// the aggregated items carry the given type.
func (s *credentialSteps) summaryItemsShouldInclude(ctx context.Context, item string) error {
	if err := s.tc.GET("/api/credentials?type=SummaryCredential"); err != nil {
		return err
	}
	records, err := s.tc.ResponseList()
	if err != nil {
		return err
	}
	if len(records) != 1 {
		return fmt.Errorf("expected exactly one live summary, got %d", len(records))
	}
	record, ok := records[0].(map[string]any)
	if !ok {
		return fmt.Errorf("summary record is not an object")
	}
	items, err := summaryItems(record)
	if err != nil {
		return err
	}
	for _, got := range items {
		if got == item {
			return nil
		}
	}
	return fmt.Errorf("summary items %v do not include %q", items, item)
}

func summaryItems(record map[string]any) ([]string, error) {
	credential, ok := record["credential"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("record has no credential")
	}
	// A single subject serializes as a bare object, several as an array.
	var subject map[string]any
	switch raw := credential["credentialSubject"].(type) {
	case map[string]any:
		subject = raw
	case []any:
		if len(raw) == 0 {
			return nil, fmt.Errorf("summary has no credentialSubject")
		}
		subject, _ = raw[0].(map[string]any)
	}
	if subject == nil {
		return nil, fmt.Errorf("summary has no credentialSubject")
	}
	rawItems, ok := subject["items"].([]any)
	if !ok {
		return nil, fmt.Errorf("summary subject has no items")
	}
	items := make([]string, 0, len(rawItems))
	for _, raw := range rawItems {
		if s, ok := raw.(string); ok {
			items = append(items, s)
		}
	}
	return items, nil
}
