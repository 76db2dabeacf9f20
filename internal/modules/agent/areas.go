package agent

import (
	"encoding/json"
	"fmt"

	"evconnect/internal/geo"
	"evconnect/internal/types"
)

const (
	AreaTypeCircle  = "circle"
	AreaTypePolygon = "polygon"
)

// AreaRecord is the stored JSON form of a work area.
type AreaRecord struct {
	ID          string        `json:"id,omitempty"`
	Name        string        `json:"name"`
	Type        string        `json:"type"`
	Coordinates []types.Point `json:"coordinates,omitempty"`
	Radius      *float64      `json:"radius,omitempty"`
	Center      *types.Point  `json:"center,omitempty"`
}

// ToWorkArea converts the record into its variant. Unknown type tags report
// ok=false. A circle without a center or radius converts to an invalid Circle.
func (r AreaRecord) ToWorkArea() (geo.WorkArea, bool) {
	switch r.Type {
	case AreaTypeCircle:
		c := geo.Circle{Name: r.Name}
		if r.Center != nil && r.Radius != nil {
			c.Center = *r.Center
			c.RadiusMeters = *r.Radius
		}
		return c, true
	case AreaTypePolygon:
		return geo.Polygon{Name: r.Name, Vertices: r.Coordinates}, true
	default:
		return nil, false
	}
}

func recordFor(a geo.WorkArea) AreaRecord {
	switch v := a.(type) {
	case geo.Circle:
		center, radius := v.Center, v.RadiusMeters
		return AreaRecord{Name: v.Name, Type: AreaTypeCircle, Center: &center, Radius: &radius}
	case geo.Polygon:
		return AreaRecord{Name: v.Name, Type: AreaTypePolygon, Coordinates: v.Vertices}
	}
	return AreaRecord{}
}

// DecodeWorkAreas parses stored work areas. Records with an unknown type are
// skipped and their tags returned so the caller can warn about them.
func DecodeWorkAreas(raw []byte) ([]geo.WorkArea, []string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil, nil
	}
	var records []AreaRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, nil, fmt.Errorf("decode work areas: %w", err)
	}
	areas := make([]geo.WorkArea, 0, len(records))
	var unknown []string
	for _, r := range records {
		wa, ok := r.ToWorkArea()
		if !ok {
			unknown = append(unknown, r.Type)
			continue
		}
		areas = append(areas, wa)
	}
	return areas, unknown, nil
}

func EncodeWorkAreas(areas []geo.WorkArea) ([]byte, error) {
	records := make([]AreaRecord, 0, len(areas))
	for _, a := range areas {
		records = append(records, recordFor(a))
	}
	return json.Marshal(records)
}
