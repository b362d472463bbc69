package common

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext defines the methods these steps need from the main context.
type TestContext interface {
	AuthenticateAs(bpn string)
	GET(path string) error
	LastStatus() int
	ResponseField(path string) (any, error)
}

// RegisterSteps registers generic request and assertion steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^I am authenticated as "([^"]*)"$`, steps.authenticateAs)
	ctx.Step(`^I GET "([^"]*)"$`, steps.get)
	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, steps.responseFieldShouldEqual)
	ctx.Step(`^the response should contain "([^"]*)"$`, steps.responseShouldContain)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) authenticateAs(ctx context.Context, bpn string) error {
	s.tc.AuthenticateAs(bpn)
	return nil
}

func (s *commonSteps) get(ctx context.Context, path string) error {
	return s.tc.GET(path)
}

func (s *commonSteps) responseStatusShouldBe(ctx context.Context, expected int) error {
	if s.tc.LastStatus() != expected {
		return fmt.Errorf("expected status %d, got %d", expected, s.tc.LastStatus())
	}
	return nil
}

func (s *commonSteps) responseFieldShouldEqual(ctx context.Context, field, expected string) error {
	value, err := s.tc.ResponseField(field)
	if err != nil {
		return err
	}
	if fmt.Sprintf("%v", value) != expected {
		return fmt.Errorf("expected %q to equal %q, got %v", field, expected, value)
	}
	return nil
}

func (s *commonSteps) responseShouldContain(ctx context.Context, field string) error {
	if _, err := s.tc.ResponseField(field); err != nil {
		return err
	}
	return nil
}
