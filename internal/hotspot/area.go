package hotspot

import (
	"math"

	"github.com/couchcryptid/accident-hotspot-service/internal/domain"
	"github.com/paulmach/orb"
)

// DefaultAreaRadius is the half-width in degrees of the default named areas.
const DefaultAreaRadius = 0.02

// DefaultAreas returns the Coimbatore neighbourhoods used when no area file
// is configured. Their boxes overlap; declaration order decides.
func DefaultAreas() []domain.NamedArea {
	return []domain.NamedArea{
		{Name: "Kovaipudur", Center: orb.Point{76.9627, 11.0014}, Radius: DefaultAreaRadius},
		{Name: "Gandhipuram", Center: orb.Point{76.9558, 11.0168}, Radius: DefaultAreaRadius},
		{Name: "Ukkadam", Center: orb.Point{76.9614, 10.9905}, Radius: DefaultAreaRadius},
		{Name: "Kuniyamuthur", Center: orb.Point{76.9565, 11.0189}, Radius: DefaultAreaRadius},
	}
}

// AreaResolver maps coordinates to configured area names.
type AreaResolver struct {
	areas []domain.NamedArea
}

// NewAreaResolver validates and copies the area list. The resolver keeps its
// own copy so later changes to the caller's slice have no effect.
func NewAreaResolver(areas []domain.NamedArea) (*AreaResolver, error) {
	copied := make([]domain.NamedArea, len(areas))
	for i, a := range areas {
		if a.Name == "" {
			return nil, &domain.InvalidParameterError{Param: "area.name", Value: i, Reason: "must not be empty"}
		}
		if !(a.Radius > 0) || math.IsInf(a.Radius, 0) {
			return nil, &domain.InvalidParameterError{Param: "area.radius", Value: a.Radius, Reason: "must be a positive finite number"}
		}
		copied[i] = a
	}
	return &AreaResolver{areas: copied}, nil
}

// Areas returns a copy of the configured areas in resolution order.
func (r *AreaResolver) Areas() []domain.NamedArea {
	out := make([]domain.NamedArea, len(r.areas))
	copy(out, r.areas)
	return out
}

// Resolve returns the first configured area whose box strictly contains the
// point, or domain.OtherArea. When boxes overlap the earlier area wins.
func (r *AreaResolver) Resolve(lat, lon float64) string {
	for _, a := range r.areas {
		if math.Abs(lat-a.Center.Lat()) < a.Radius && math.Abs(lon-a.Center.Lon()) < a.Radius {
			return a.Name
		}
	}
	return domain.OtherArea
}

// ResolveAll returns copies of records with Area filled in.
func (r *AreaResolver) ResolveAll(records []domain.AccidentRecord) []domain.AccidentRecord {
	out := make([]domain.AccidentRecord, len(records))
	for i, rec := range records {
		rec.Area = r.Resolve(rec.Latitude, rec.Longitude)
		out[i] = rec
	}
	return out
}
