package e2e

import (
	"github.com/cucumber/godog"

	"miw/e2e/steps/common"
	"miw/e2e/steps/credential"
	"miw/e2e/steps/wallet"
)

// RegisterSteps registers all step definitions from modular packages.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	wallet.RegisterSteps(ctx, tc)
	credential.RegisterSteps(ctx, tc)
}
