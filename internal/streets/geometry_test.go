package streets

import (
	"testing"

	"github.com/den-kezlia/torrent/internal/types"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLineString_LongitudeFirst(t *testing.T) {
	nodes := types.NodeCoordinateMap{
		1: {Lat: 39.43, Lon: -0.46},
		2: {Lat: 39.44, Lon: -0.47},
	}

	ls, ok := BuildLineString([]int64{1, 2}, nodes)
	require.True(t, ok)
	assert.Equal(t, orb.LineString{{-0.46, 39.43}, {-0.47, 39.44}}, ls)

	data, err := GeometryJSON(ls)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"LineString","coordinates":[[-0.46,39.43],[-0.47,39.44]]}`, string(data))
}

func TestBuildLineString_SkipsMissingNodes(t *testing.T) {
	nodes := types.NodeCoordinateMap{
		1: {Lat: 39.43, Lon: -0.46},
		3: {Lat: 39.45, Lon: -0.48},
	}

	ls, ok := BuildLineString([]int64{1, 2, 3}, nodes)
	require.True(t, ok)
	assert.Equal(t, orb.LineString{{-0.46, 39.43}, {-0.48, 39.45}}, ls)
}

func TestBuildLineString_NotBuildable(t *testing.T) {
	nodes := types.NodeCoordinateMap{1: {Lat: 39.43, Lon: -0.46}}

	tests := []struct {
		name    string
		nodeIDs []int64
	}{
		{"one of two nodes resolves", []int64{1, 2}},
		{"no nodes resolve", []int64{7, 8, 9}},
		{"empty way", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ls, ok := BuildLineString(tt.nodeIDs, nodes)
			assert.False(t, ok)
			assert.Nil(t, ls)
		})
	}
}

func TestParseGeometryJSON(t *testing.T) {
	ls, err := ParseGeometryJSON([]byte(`{"type":"LineString","coordinates":[[-0.46,39.43],[-0.47,39.44]]}`))
	require.NoError(t, err)
	assert.Equal(t, orb.LineString{{-0.46, 39.43}, {-0.47, 39.44}}, ls)

	_, err = ParseGeometryJSON([]byte(`{"type":"Point","coordinates":[-0.46,39.43]}`))
	assert.Error(t, err)
}
