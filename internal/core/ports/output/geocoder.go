package ports

import (
	"context"

	"apartment-valuation-service/internal/core/domain"
)

// Geocoder resolves a free-text address. It returns domain.ErrGeocodeMiss
// when the address has no match.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*domain.Coordinates, error)
}
