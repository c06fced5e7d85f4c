package datasource

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/den-kezlia/torrent/internal/types"
)

// overpassResponse mirrors the Overpass JSON envelope. Elements are kept as a
// slice so response order survives decoding.
type overpassResponse struct {
	Remark   string            `json:"remark"`
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Tags  map[string]string `json:"tags"`
	Type  string            `json:"type"`
	Nodes []int64           `json:"nodes"`
	ID    int64             `json:"id"`
	Lat   float64           `json:"lat"`
	Lon   float64           `json:"lon"`
}

// DecodeOverpassJSON decodes an Overpass API JSON response into typed elements.
func DecodeOverpassJSON(r io.Reader) ([]types.Element, error) {
	var resp overpassResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode overpass json: %w", err)
	}
	return extractElements(&resp)
}

// extractElements converts raw elements in response order. Unknown element
// types are ignored. A runtime error remark means Overpass gave up midway and
// the element list is incomplete.
func extractElements(resp *overpassResponse) ([]types.Element, error) {
	if strings.Contains(resp.Remark, "runtime error") {
		return nil, &UpstreamServiceError{StatusCode: http.StatusOK, Body: resp.Remark}
	}

	elements := make([]types.Element, 0, len(resp.Elements))
	for _, el := range resp.Elements {
		switch types.ElementType(el.Type) {
		case types.ElementTypeNode:
			elements = append(elements, types.Node{ID: el.ID, Lat: el.Lat, Lon: el.Lon})
		case types.ElementTypeWay:
			elements = append(elements, types.Way{ID: el.ID, NodeIDs: el.Nodes, Tags: el.Tags})
		case types.ElementTypeRelation:
			elements = append(elements, types.Relation{ID: el.ID, Tags: el.Tags})
		}
	}
	return elements, nil
}
