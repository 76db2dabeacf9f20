package dispatch

import (
	"math"
	"time"

	"evconnect/internal/config"
)

// Flexibility scores how reasonable it is to send an agent outside their
// declared work area. 1 is next door, 0 is at or beyond the distance or
// travel-time bound.
func Flexibility(miles float64, travel time.Duration, hasPolygon bool, cfg config.DispatchConfig) float64 {
	distanceFactor := math.Max(0, 1-miles/cfg.MaxDistanceMiles)
	timeFactor := math.Max(0, 1-travel.Seconds()/cfg.MaxTravelTime.Seconds())
	areaFactor := 1.0
	if hasPolygon {
		areaFactor = cfg.PolygonFactor
	}
	return distanceFactor * timeFactor * areaFactor
}

// WithinBounds is the contact-time distance and travel-time gate.
func WithinBounds(miles float64, travel time.Duration, cfg config.DispatchConfig) bool {
	return miles <= cfg.MaxDistanceMiles && travel <= cfg.MaxTravelTime
}
