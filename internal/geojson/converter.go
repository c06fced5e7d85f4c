package geojson

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/den-kezlia/torrent/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// SegmentsToFeatureCollection converts stored segments to a GeoJSON
// FeatureCollection. When bbox is set, only segments whose bounding box
// intersects it are kept.
func SegmentsToFeatureCollection(segments []types.SegmentFeature, bbox *orb.Bound) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, s := range segments {
		if len(s.Segment.Geometry) < 2 {
			continue
		}
		if bbox != nil && !bbox.Intersects(s.Segment.Geometry.Bound()) {
			continue
		}

		f := geojson.NewFeature(s.Segment.Geometry)
		f.Properties["id"] = s.Segment.ID
		f.Properties["osm_id"] = s.Segment.OsmID
		f.Properties["street"] = s.StreetName
		fc.Append(f)
	}

	return fc
}

// SegmentsToGeoJSONBytes converts segments to indented GeoJSON bytes
func SegmentsToGeoJSONBytes(segments []types.SegmentFeature, bbox *orb.Bound) ([]byte, error) {
	data, err := json.MarshalIndent(SegmentsToFeatureCollection(segments, bbox), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}
	return data, nil
}

// ParseBBox parses "minLon,minLat,maxLon,maxLat".
func ParseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}

	var v [4]float64
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
			return orb.Bound{}, fmt.Errorf("invalid number at position %d: %q", i, part)
		}
		v[i] = val
	}

	if v[0] > v[2] {
		return orb.Bound{}, fmt.Errorf("minLon (%.4f) must be <= maxLon (%.4f)", v[0], v[2])
	}
	if v[1] > v[3] {
		return orb.Bound{}, fmt.Errorf("minLat (%.4f) must be <= maxLat (%.4f)", v[1], v[3])
	}

	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}
