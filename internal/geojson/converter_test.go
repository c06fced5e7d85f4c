package geojson

import (
	"encoding/json"
	"testing"

	"github.com/den-kezlia/torrent/internal/types"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSegments() []types.SegmentFeature {
	return []types.SegmentFeature{
		{
			Segment: types.StreetSegment{
				ID:       "a",
				OsmID:    "way:1",
				Geometry: orb.LineString{{-0.46, 39.43}, {-0.47, 39.44}},
			},
			StreetName: "Carrer Major",
		},
		{
			Segment: types.StreetSegment{
				ID:       "b",
				OsmID:    "way:2",
				Geometry: orb.LineString{{-0.40, 39.50}, {-0.39, 39.51}},
			},
			StreetName: "Avinguda al Vedat",
		},
	}
}

func TestSegmentsToFeatureCollection(t *testing.T) {
	fc := SegmentsToFeatureCollection(testSegments(), nil)

	require.Len(t, fc.Features, 2)
	f := fc.Features[0]
	assert.Equal(t, "LineString", f.Geometry.GeoJSONType())
	assert.Equal(t, "a", f.Properties["id"])
	assert.Equal(t, "way:1", f.Properties["osm_id"])
	assert.Equal(t, "Carrer Major", f.Properties["street"])
}

func TestSegmentsToFeatureCollection_BBox(t *testing.T) {
	tests := []struct {
		name string
		bbox orb.Bound
		want []string
	}{
		{"contains first", orb.Bound{Min: orb.Point{-0.5, 39.4}, Max: orb.Point{-0.45, 39.45}}, []string{"way:1"}},
		{"crosses second", orb.Bound{Min: orb.Point{-0.395, 39.0}, Max: orb.Point{0, 39.505}}, []string{"way:2"}},
		{"covers both", orb.Bound{Min: orb.Point{-1, 39}, Max: orb.Point{0, 40}}, []string{"way:1", "way:2"}},
		{"misses both", orb.Bound{Min: orb.Point{2, 41}, Max: orb.Point{3, 42}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := SegmentsToFeatureCollection(testSegments(), &tt.bbox)
			var got []string
			for _, f := range fc.Features {
				got = append(got, f.Properties["osm_id"].(string))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSegmentsToGeoJSONBytes(t *testing.T) {
	data, err := SegmentsToGeoJSONBytes(testSegments()[:1], nil)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "FeatureCollection", decoded["type"])

	empty, err := SegmentsToGeoJSONBytes(nil, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(empty))
}

func TestParseBBox(t *testing.T) {
	b, err := ParseBBox("-0.52, 39.38, -0.40, 39.48")
	require.NoError(t, err)
	assert.Equal(t, orb.Bound{Min: orb.Point{-0.52, 39.38}, Max: orb.Point{-0.40, 39.48}}, b)

	for _, bad := range []string{"", "1,2,3", "a,b,c,d", "1,2,0,3", "1,3,2,2", "NaN,0,1,1"} {
		t.Run(bad, func(t *testing.T) {
			_, err := ParseBBox(bad)
			assert.Error(t, err)
		})
	}
}
