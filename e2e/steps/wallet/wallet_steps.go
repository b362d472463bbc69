package wallet

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext defines the methods these steps need from the main context.
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	LastStatus() int
	ResponseField(path string) (any, error)
}

// RegisterSteps registers wallet lifecycle steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &walletSteps{tc: tc}

	ctx.Step(`^I create a wallet for "([^"]*)" named "([^"]*)"$`, steps.createWallet)
	ctx.Step(`^a wallet exists for "([^"]*)"$`, steps.walletExists)
	ctx.Step(`^the wallet "([^"]*)" should be resolvable$`, steps.walletShouldBeResolvable)
	ctx.Step(`^the DID document for "([^"]*)" should be published$`, steps.didDocumentShouldBePublished)
}

type walletSteps struct {
	tc TestContext
}

func (s *walletSteps) createWallet(ctx context.Context, bpn, name string) error {
	return s.tc.POST("/api/wallets", map[string]any{
		"bpn":  bpn,
		"name": name,
	})
}

// walletExists creates the wallet and tolerates it already being there, so
// scenarios can share tenants without ordering constraints.
func (s *walletSteps) walletExists(ctx context.Context, bpn string) error {
	if err := s.createWallet(ctx, bpn, "Tenant "+bpn); err != nil {
		return err
	}
	if s.tc.LastStatus() != 201 && s.tc.LastStatus() != 409 {
		return fmt.Errorf("expected wallet creation to return 201 or 409, got %d", s.tc.LastStatus())
	}
	return nil
}

func (s *walletSteps) walletShouldBeResolvable(ctx context.Context, identifier string) error {
	if err := s.tc.GET("/api/wallets/" + identifier); err != nil {
		return err
	}
	if s.tc.LastStatus() != 200 {
		return fmt.Errorf("expected 200, got %d", s.tc.LastStatus())
	}
	did, err := s.tc.ResponseField("did")
	if err != nil {
		return err
	}
	if did == "" {
		return fmt.Errorf("wallet has no did")
	}
	return nil
}

func (s *walletSteps) didDocumentShouldBePublished(ctx context.Context, bpn string) error {
	if err := s.tc.GET("/" + bpn + "/did.json"); err != nil {
		return err
	}
	if s.tc.LastStatus() != 200 {
		return fmt.Errorf("expected 200, got %d", s.tc.LastStatus())
	}
	if _, err := s.tc.ResponseField("verificationMethod"); err != nil {
		return err
	}
	return nil
}
