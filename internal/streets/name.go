// Package streets turns raw Overpass ways into named street groups with line geometry.
package streets

import (
	"strconv"
	"strings"
)

const (
	// StreetKeyPrefix prefixes the natural key of named streets
	StreetKeyPrefix = "street-name:"
	// UnnamedKeyPrefix prefixes the natural key of streets built from a single unnamed way
	UnnamedKeyPrefix = "street-way:"
	// SegmentKeyPrefix prefixes the natural key of street segments
	SegmentKeyPrefix = "way:"
)

// NameTags lists the tags consulted for a street name, most preferred first.
// After the generic name come the Catalan, Valencian and Spanish variants.
var NameTags = []string{
	"name",
	"name:ca",
	"name:val",
	"name:es",
	"official_name",
}

// ResolveName returns the display name of a way: the first non-empty trimmed
// value among NameTags. ok is false when the way is unnamed.
func ResolveName(tags map[string]string) (name string, ok bool) {
	if tags == nil {
		return "", false
	}
	for _, key := range NameTags {
		if v := strings.TrimSpace(tags[key]); v != "" {
			return v, true
		}
	}
	return "", false
}

// StreetKey returns the canonical grouping key for a street name.
// Case and surrounding whitespace do not matter.
func StreetKey(name string) string {
	return StreetKeyPrefix + strings.ToLower(strings.TrimSpace(name))
}

// UnnamedStreetKey returns the synthetic key used for an unnamed way
// when unnamed ways are kept as their own streets.
func UnnamedStreetKey(wayID int64) string {
	return UnnamedKeyPrefix + strconv.FormatInt(wayID, 10)
}

// SegmentKey returns the natural key of the segment built from a way.
func SegmentKey(wayID int64) string {
	return SegmentKeyPrefix + strconv.FormatInt(wayID, 10)
}
