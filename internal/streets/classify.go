package streets

import (
	"fmt"

	"github.com/den-kezlia/torrent/internal/types"
)

// UnnamedPolicy decides what happens to ways without a derivable name
type UnnamedPolicy int

const (
	// UnnamedDrop removes unnamed ways from the import
	UnnamedDrop UnnamedPolicy = iota
	// UnnamedPerWay turns every unnamed way into its own single-segment street
	UnnamedPerWay
)

func (p UnnamedPolicy) String() string {
	switch p {
	case UnnamedDrop:
		return "drop"
	case UnnamedPerWay:
		return "per-way"
	default:
		return fmt.Sprintf("UnnamedPolicy(%d)", int(p))
	}
}

// ParseUnnamedPolicy parses "drop" or "per-way".
func ParseUnnamedPolicy(s string) (UnnamedPolicy, error) {
	switch s {
	case "", "drop":
		return UnnamedDrop, nil
	case "per-way":
		return UnnamedPerWay, nil
	default:
		return UnnamedDrop, fmt.Errorf("invalid unnamed policy %q: must be 'drop' or 'per-way'", s)
	}
}

// WayGroup is a set of ways sharing one canonical street key.
// Ways keep their input order; the first one supplies the street name.
type WayGroup struct {
	Key  string
	Name string
	Ways []types.Way
}

// Classify splits a flat element list into node coordinates and ways.
// Relations and unknown elements are ignored.
func Classify(elements []types.Element) (types.NodeCoordinateMap, []types.Way) {
	nodes := make(types.NodeCoordinateMap)
	var ways []types.Way

	for _, el := range elements {
		switch e := el.(type) {
		case types.Node:
			nodes[e.ID] = types.Coordinate{Lat: e.Lat, Lon: e.Lon}
		case types.Way:
			ways = append(ways, e)
		}
	}

	return nodes, ways
}

// GroupWays buckets ways by canonical street key. Groups are returned in the
// order their key was first seen. dropped counts unnamed ways left out under
// UnnamedDrop.
func GroupWays(ways []types.Way, policy UnnamedPolicy) (groups []WayGroup, dropped int) {
	index := make(map[string]int)

	for _, w := range ways {
		name, ok := ResolveName(w.Tags)
		var key string
		switch {
		case ok:
			key = StreetKey(name)
		case policy == UnnamedPerWay:
			key = UnnamedStreetKey(w.ID)
			name = fmt.Sprintf("Way %d", w.ID)
		default:
			dropped++
			continue
		}

		if i, exists := index[key]; exists {
			groups[i].Ways = append(groups[i].Ways, w)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, WayGroup{Key: key, Name: name, Ways: []types.Way{w}})
	}

	return groups, dropped
}
