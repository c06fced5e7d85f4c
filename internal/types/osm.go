package types

// ElementType represents the type of an Overpass response element
type ElementType string

const (
	ElementTypeNode     ElementType = "node"
	ElementTypeWay      ElementType = "way"
	ElementTypeRelation ElementType = "relation"
)

// Element is one entry of an Overpass response. IDs are unique per element
// type only: a node and a way may share the same numeric ID.
type Element interface {
	ElementType() ElementType
	ElementID() int64
}

// Node is a single OSM point
type Node struct {
	ID  int64
	Lat float64
	Lon float64
}

// Way is an ordered path through nodes
type Way struct {
	Tags    map[string]string // nil when the way carries no tags
	NodeIDs []int64
	ID      int64
}

// Relation is an OSM relation; only its ID and tags are used
type Relation struct {
	Tags map[string]string
	ID   int64
}

func (n Node) ElementType() ElementType     { return ElementTypeNode }
func (n Node) ElementID() int64             { return n.ID }
func (w Way) ElementType() ElementType      { return ElementTypeWay }
func (w Way) ElementID() int64              { return w.ID }
func (r Relation) ElementType() ElementType { return ElementTypeRelation }
func (r Relation) ElementID() int64         { return r.ID }

// Coordinate is a WGS84 position
type Coordinate struct {
	Lat float64
	Lon float64
}

// NodeCoordinateMap maps node IDs to their coordinates for a single import run
type NodeCoordinateMap map[int64]Coordinate
