package datasource

import (
	"fmt"
	"strings"
)

// AreaIDOffset converts an OSM relation ID into an Overpass area ID
const AreaIDOffset int64 = 3_600_000_000

// DefaultQueryTimeout is the [timeout:N] directive sent to Overpass, in seconds
const DefaultQueryTimeout = 180

// DefaultHighwayTypes is the roadway allowlist used for street imports.
// Service roads, tracks and paths are left out.
var DefaultHighwayTypes = []string{
	"residential",
	"primary",
	"secondary",
	"tertiary",
	"unclassified",
	"living_street",
	"trunk",
	"trunk_link",
	"motorway",
	"motorway_link",
}

// AreaIDFromRelation returns the Overpass area ID of a relation
func AreaIDFromRelation(relationID int64) int64 {
	return AreaIDOffset + relationID
}

// AreaQuery builds the lookup of administrative relations whose name equals name exactly.
func AreaQuery(name string, timeoutSeconds int) string {
	if timeoutSeconds <= 0 {
		timeoutSeconds = DefaultQueryTimeout
	}
	return fmt.Sprintf(`[out:json][timeout:%d];
rel["boundary"="administrative"]["name"="%s"];
out tags;
`, timeoutSeconds, quoteQL(name))
}

// HighwayQuery selects highway ways inside an Overpass area together with their nodes
type HighwayQuery struct {
	Types          []string // highway values to keep; empty keeps every highway
	AreaID         int64
	TimeoutSeconds int
	RequireName    bool // only ways carrying a name tag
}

// Build renders the query in Overpass QL.
func (q HighwayQuery) Build() string {
	timeout := q.TimeoutSeconds
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}

	var filter strings.Builder
	if len(q.Types) > 0 {
		quoted := make([]string, len(q.Types))
		for i, t := range q.Types {
			quoted[i] = quoteRegexp(t)
		}
		fmt.Fprintf(&filter, `["highway"~"^(%s)$"]`, strings.Join(quoted, "|"))
	} else {
		filter.WriteString(`["highway"]`)
	}
	if q.RequireName {
		filter.WriteString(`["name"]`)
	}

	return fmt.Sprintf(`[out:json][timeout:%d];
area(%d)->.searchArea;
(
  way%s(area.searchArea);
);
(._;>;);
out body;
`, timeout, q.AreaID, filter.String())
}

// quoteQL escapes a value for use inside a double-quoted Overpass QL string.
func quoteQL(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return r.Replace(s)
}

// quoteRegexp escapes regexp metacharacters in a highway value, then applies QL quoting.
func quoteRegexp(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`.+*?()|[]{}^$\`, r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return quoteQL(b.String())
}
