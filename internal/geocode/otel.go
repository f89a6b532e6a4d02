package geocode

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/nicoegiaian/heatfield/internal/geocode"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
