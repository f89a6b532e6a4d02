// Package geocode resolves coordinates to short human place labels.
package geocode

import "context"

// Resolver turns a coordinate into a short place label. Implementations are
// expected to be unreliable; callers wrap every use with a fallback.
type Resolver interface {
	Resolve(ctx context.Context, lat, lon float64) (string, error)
}
