package streets

import (
	"testing"

	"github.com/den-kezlia/torrent/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	elements := []types.Element{
		types.Node{ID: 1, Lat: 39.43, Lon: -0.46},
		types.Way{ID: 1, NodeIDs: []int64{1, 2}},
		types.Relation{ID: 1},
		types.Node{ID: 2, Lat: 39.44, Lon: -0.47},
	}

	nodes, ways := Classify(elements)

	require.Len(t, nodes, 2)
	assert.Equal(t, types.Coordinate{Lat: 39.43, Lon: -0.46}, nodes[1])
	assert.Equal(t, types.Coordinate{Lat: 39.44, Lon: -0.47}, nodes[2])
	require.Len(t, ways, 1)
	assert.Equal(t, int64(1), ways[0].ID)
}

func TestGroupWays_CaseAndWhitespaceInsensitive(t *testing.T) {
	ways := []types.Way{
		{ID: 10, Tags: map[string]string{"name": "Carrer Major"}},
		{ID: 11, Tags: map[string]string{"name": "  carrer major"}},
		{ID: 12, Tags: map[string]string{"name": "Avinguda al Vedat"}},
	}

	groups, dropped := GroupWays(ways, UnnamedDrop)

	assert.Zero(t, dropped)
	require.Len(t, groups, 2)
	assert.Equal(t, "street-name:carrer major", groups[0].Key)
	assert.Equal(t, "Carrer Major", groups[0].Name, "first way in the bucket names the street")
	require.Len(t, groups[0].Ways, 2)
	assert.Equal(t, int64(10), groups[0].Ways[0].ID)
	assert.Equal(t, int64(11), groups[0].Ways[1].ID)
	assert.Equal(t, "street-name:avinguda al vedat", groups[1].Key)
}

func TestGroupWays_UnnamedPolicies(t *testing.T) {
	ways := []types.Way{
		{ID: 1, Tags: map[string]string{"highway": "residential"}},
		{ID: 2},
		{ID: 3, Tags: map[string]string{"name:ca": "Carrer Major"}},
	}

	t.Run("drop", func(t *testing.T) {
		groups, dropped := GroupWays(ways, UnnamedDrop)
		assert.Equal(t, 2, dropped)
		require.Len(t, groups, 1)
		assert.Equal(t, "street-name:carrer major", groups[0].Key)
	})

	t.Run("per-way", func(t *testing.T) {
		groups, dropped := GroupWays(ways, UnnamedPerWay)
		assert.Zero(t, dropped)
		require.Len(t, groups, 3)
		assert.Equal(t, "street-way:1", groups[0].Key)
		assert.Equal(t, "street-way:2", groups[1].Key)
		assert.Equal(t, "street-name:carrer major", groups[2].Key)
		for _, g := range groups[:2] {
			assert.Len(t, g.Ways, 1)
			assert.NotEmpty(t, g.Name)
		}
	})
}

func TestParseUnnamedPolicy(t *testing.T) {
	p, err := ParseUnnamedPolicy("per-way")
	require.NoError(t, err)
	assert.Equal(t, UnnamedPerWay, p)

	p, err = ParseUnnamedPolicy("")
	require.NoError(t, err)
	assert.Equal(t, UnnamedDrop, p)

	_, err = ParseUnnamedPolicy("keep")
	assert.Error(t, err)
}
