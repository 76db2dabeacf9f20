// README: Google Maps Distance Matrix adapter used by the ranker.
package maps

import (
	"context"
	"fmt"
	"strconv"

	"googlemaps.github.io/maps"

	"evconnect/internal/modules/ranking"
	"evconnect/internal/types"
)

// RouteService handles driving-distance lookups against Google Maps.
type RouteService struct {
	client *maps.Client
}

// NewRouteService creates a new RouteService with the given API Key.
// Extra options (for example maps.WithBaseURL in tests) are passed through.
func NewRouteService(apiKey string, opts ...maps.ClientOption) (*RouteService, error) {
	client, err := newClient(apiKey, opts...)
	if err != nil {
		return nil, err
	}
	return &RouteService{client: client}, nil
}

// DistanceMatrix returns one element per destination, in order, for a
// driving trip from origin.
func (s *RouteService) DistanceMatrix(ctx context.Context, origin types.Point, destinations []types.Point) ([]ranking.Element, error) {
	if len(destinations) == 0 {
		return nil, nil
	}
	dests := make([]string, len(destinations))
	for i, d := range destinations {
		dests[i] = latLng(d)
	}
	r := &maps.DistanceMatrixRequest{
		Origins:      []string{latLng(origin)},
		Destinations: dests,
		Mode:         maps.TravelModeDriving,
		Units:        maps.UnitsImperial,
	}

	resp, err := s.client.DistanceMatrix(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("maps api error: %w", err)
	}
	if len(resp.Rows) == 0 {
		return nil, fmt.Errorf("distance matrix returned no rows")
	}

	out := make([]ranking.Element, len(destinations))
	for i := range out {
		if i >= len(resp.Rows[0].Elements) || resp.Rows[0].Elements[i] == nil {
			out[i] = ranking.Element{Status: "MISSING"}
			continue
		}
		el := resp.Rows[0].Elements[i]
		out[i] = ranking.Element{
			Status:         el.Status,
			DistanceMeters: el.Distance.Meters,
			Duration:       el.Duration,
		}
	}
	return out, nil
}

func newClient(apiKey string, opts ...maps.ClientOption) (*maps.Client, error) {
	all := append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)
	client, err := maps.NewClient(all...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return client, nil
}

func latLng(p types.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}
