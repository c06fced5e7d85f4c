package streets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveName(t *testing.T) {
	tests := []struct {
		name   string
		tags   map[string]string
		want   string
		wantOK bool
	}{
		{
			name:   "generic name wins",
			tags:   map[string]string{"name": "Carrer Major", "name:es": "Calle Mayor"},
			want:   "Carrer Major",
			wantOK: true,
		},
		{
			name:   "catalan preferred over spanish",
			tags:   map[string]string{"name:ca": "Carrer Major", "name:es": "Calle Mayor"},
			want:   "Carrer Major",
			wantOK: true,
		},
		{
			name:   "valencian before spanish",
			tags:   map[string]string{"name:val": "Carrer de Valéncia", "name:es": "Calle de Valencia"},
			want:   "Carrer de Valéncia",
			wantOK: true,
		},
		{
			name:   "blank generic name falls through",
			tags:   map[string]string{"name": "   ", "name:es": " Calle Mayor "},
			want:   "Calle Mayor",
			wantOK: true,
		},
		{
			name:   "official name last",
			tags:   map[string]string{"highway": "residential", "official_name": "Avinguda del País Valencià"},
			want:   "Avinguda del País Valencià",
			wantOK: true,
		},
		{
			name:   "no name tags",
			tags:   map[string]string{"highway": "residential"},
			wantOK: false,
		},
		{
			name:   "nil tags",
			tags:   nil,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveName(tt.tags)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStreetKey(t *testing.T) {
	assert.Equal(t, "street-name:carrer major", StreetKey("Carrer Major"))
	assert.Equal(t, StreetKey("Carrer Major"), StreetKey("  carrer major"))
	assert.Equal(t, StreetKey("Carrer Major"), StreetKey("CARRER MAJOR \t"))
}

func TestNaturalKeys(t *testing.T) {
	assert.Equal(t, "way:42", SegmentKey(42))
	assert.Equal(t, "street-way:42", UnnamedStreetKey(42))
}
