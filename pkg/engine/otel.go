package engine

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/nicoegiaian/heatfield/pkg/engine"

// meter returns the package meter from the global provider, a no-op
// unless the host installs an SDK.
func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
