package streets

import (
	"fmt"

	"github.com/den-kezlia/torrent/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// MinLinePoints is the number of resolved coordinates a way needs to become a segment
const MinLinePoints = 2

// BuildLineString resolves node IDs against the coordinate map in order and
// returns the resulting [lon, lat] line. Unknown node IDs are skipped. ok is
// false when fewer than MinLinePoints coordinates resolve; that is a skip, not
// an error.
func BuildLineString(nodeIDs []int64, nodes types.NodeCoordinateMap) (ls orb.LineString, ok bool) {
	ls = make(orb.LineString, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		c, found := nodes[id]
		if !found {
			continue
		}
		ls = append(ls, orb.Point{c.Lon, c.Lat})
	}

	if len(ls) < MinLinePoints {
		return nil, false
	}
	return ls, true
}

// GeometryJSON encodes a line as a GeoJSON LineString geometry object.
func GeometryJSON(ls orb.LineString) ([]byte, error) {
	data, err := geojson.NewGeometry(ls).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal geometry: %w", err)
	}
	return data, nil
}

// ParseGeometryJSON decodes a GeoJSON LineString geometry object.
func ParseGeometryJSON(data []byte) (orb.LineString, error) {
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal geometry: %w", err)
	}

	ls, ok := g.Geometry().(orb.LineString)
	if !ok {
		return nil, fmt.Errorf("expected LineString geometry, got %s", g.Type)
	}
	return ls, nil
}
