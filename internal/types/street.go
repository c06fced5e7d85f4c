package types

import (
	"time"

	"github.com/paulmach/orb"
)

// UpsertOutcome tells whether an upsert inserted a new row or refreshed an existing one
type UpsertOutcome int

const (
	UpsertCreated UpsertOutcome = iota + 1
	UpsertUpdated
)

func (o UpsertOutcome) String() string {
	switch o {
	case UpsertCreated:
		return "created"
	case UpsertUpdated:
		return "updated"
	default:
		return "unknown"
	}
}

// Street is a logical street, keyed by its canonical name key
type Street struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	ID        string // store-assigned
	OsmID     string // natural key, e.g. "street-name:carrer major"
	Name      string
}

// StreetSegment is one OSM way attached to a street
type StreetSegment struct {
	UpdatedAt time.Time
	ID        string
	OsmID     string // natural key "way:<id>"
	StreetID  string
	Geometry  orb.LineString // [lon, lat] pairs, at least two
}

// SegmentFeature is a stored segment joined with its street name
type SegmentFeature struct {
	Segment    StreetSegment
	StreetName string
}
