package query

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
)

// srid of GeoJSON coordinates.
const srid = 4326

// polygonFeature reports whether v is a GeoJSON Feature whose geometry is a
// Polygon. Objects that are not features are not an error; they are simply
// not polygons.
func polygonFeature(v map[string]any) (orb.Polygon, bool, error) {
	if t, _ := v["type"].(string); t != "Feature" {
		return nil, false, nil
	}
	geom, _ := v["geometry"].(map[string]any)
	if t, _ := geom["type"].(string); t != "Polygon" {
		return nil, false, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false, fmt.Errorf("encode feature: %w", err)
	}
	f, err := geojson.UnmarshalFeature(raw)
	if err != nil {
		return nil, false, fmt.Errorf("decode polygon feature: %w", err)
	}
	poly, ok := f.Geometry.(orb.Polygon)
	if !ok {
		return nil, false, nil
	}
	if err := validatePolygon(poly); err != nil {
		return nil, false, err
	}
	return poly, true, nil
}

func validatePolygon(p orb.Polygon) error {
	if len(p) == 0 {
		return fmt.Errorf("polygon has no rings")
	}
	for i, ring := range p {
		if len(ring) < 4 {
			return fmt.Errorf("polygon ring %d must have at least 4 points, has %d", i, len(ring))
		}
		if !ring.Closed() {
			return fmt.Errorf("polygon ring %d is not closed", i)
		}
	}
	return nil
}

// encodePolygon returns the WKB bytes bound for ST_GeomFromWKB.
func encodePolygon(p orb.Polygon) ([]byte, error) {
	return wkb.Marshal(p)
}
