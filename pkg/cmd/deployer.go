package cmd

import (
	"fmt"
	"log/slog"

	"github.com/dukex/callflow/pkg/condition"
	"github.com/dukex/callflow/pkg/deploy"
	"github.com/dukex/callflow/pkg/deploy/busdeploy"
	"github.com/dukex/callflow/pkg/deploy/httpdeploy"
	"github.com/dukex/callflow/pkg/eventbus"
)

// NewDeployer builds the deployer for target. An empty target disables deployment
// and yields a nil deployer.
//
//nolint:ireturn // the deployer is chosen at runtime
func NewDeployer(target, deployURL string, bus eventbus.EventBus, logger *slog.Logger) (deploy.Deployer, error) {
	switch target {
	case "":
		if deployURL != "" {
			return httpdeploy.NewDeployer(deployURL, logger), nil
		}

		return nil, nil
	case busdeploy.Target:
		return busdeploy.NewDeployer(bus, logger), nil
	case httpdeploy.Target:
		if deployURL == "" {
			return nil, fmt.Errorf("deploy target %s requires a deploy URL", target)
		}

		return httpdeploy.NewDeployer(deployURL, logger), nil
	default:
		return nil, fmt.Errorf("unsupported deploy target: %s", target)
	}
}

// NewClassifier returns the HTTP intent classifier at url, or nil when url is
// empty. Without classifier AI conditions never match.
//
//nolint:ireturn // nil disables AI routing
func NewClassifier(url string, logger *slog.Logger) condition.IntentClassifier {
	if url == "" {
		return nil
	}

	return condition.NewHTTPClassifier(url, logger)
}
