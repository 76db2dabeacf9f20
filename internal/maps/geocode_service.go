package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"evconnect/internal/types"
)

// GeocodeService resolves coordinates to a human-readable address.
type GeocodeService struct {
	client *maps.Client
}

func NewGeocodeService(apiKey string, opts ...maps.ClientOption) (*GeocodeService, error) {
	client, err := newClient(apiKey, opts...)
	if err != nil {
		return nil, err
	}
	return &GeocodeService{client: client}, nil
}

// ReverseGeocode returns the formatted address of the best match for p.
func (s *GeocodeService) ReverseGeocode(ctx context.Context, p types.Point) (string, error) {
	results, err := s.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: p.Lat, Lng: p.Lng},
	})
	if err != nil {
		return "", fmt.Errorf("geocode api error: %w", err)
	}
	if len(results) == 0 || results[0].FormattedAddress == "" {
		return "", fmt.Errorf("no address found")
	}
	return results[0].FormattedAddress, nil
}
