package cloudmask

import (
	"time"

	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/engine"
)

// Collection pairs the optical collection with its cloud probability
// collection over the given bounds and date range. Each primary image keeps
// the first probability image sharing its scene identifier, attached under
// the s2cloudless property; primaries without a match are dropped and the
// primary ordering is preserved.
func Collection(bounds engine.Geometry, start, end time.Time, cfg Config) engine.ImageCollection {
	refl := engine.NewImageCollection(cfg.PrimarySource).
		FilterDate(start, end).
		FilterBounds(bounds).
		Filter(engine.Lte("CLOUDY_PIXEL_PERCENTAGE", cfg.CloudFilter))

	clouds := engine.NewImageCollection(cfg.ProbabilitySource).
		FilterDate(start, end).
		FilterBounds(bounds)

	return engine.SaveFirst(cloudProbProperty).Apply(refl, clouds,
		engine.FieldEquals("system:index", "system:index"))
}
