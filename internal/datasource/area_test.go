package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/MeKo-Christian/go-overpass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newAreaServer answers area lookups from relations keyed by exact boundary name.
func newAreaServer(t *testing.T, relations map[string]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		query := r.FormValue("data")
		body := `{"elements": []}`
		for name, elements := range relations {
			if strings.Contains(query, fmt.Sprintf(`["name"="%s"]`, name)) {
				body = fmt.Sprintf(`{"elements": [%s]}`, elements)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestResolver(endpoint string) *AreaResolver {
	return NewAreaResolver(AreaResolverConfig{
		Endpoint:  endpoint,
		Transport: newTestTransport(),
		Logger:    quietLogger(),
	})
}

func TestShortBoundaryName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Torrent, Valencia", "Torrent"},
		{"  Torrent ,Valencia, Spain", "Torrent"},
		{"Torrent", "Torrent"},
		{", Valencia", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ShortBoundaryName(tt.in))
		})
	}
}

func TestLookupArea(t *testing.T) {
	srv, _ := newAreaServer(t, map[string]string{
		"Torrent": `{"type": "relation", "id": 344556, "tags": {"boundary": "administrative", "admin_level": "8", "name": "Torrent"}}`,
	})
	r := newTestResolver(srv.URL)

	areaID, err := r.LookupArea(context.Background(), "Torrent")
	require.NoError(t, err)
	assert.Equal(t, int64(3600344556), areaID)

	_, err = r.LookupArea(context.Background(), "Atlantis")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Atlantis", notFound.Boundary)
}

func TestLookupArea_PicksMostSpecificRelation(t *testing.T) {
	srv, _ := newAreaServer(t, map[string]string{
		"Valencia": strings.Join([]string{
			`{"type": "relation", "id": 300, "tags": {"admin_level": "6", "name": "Valencia"}}`,
			`{"type": "relation", "id": 500, "tags": {"admin_level": "8", "name": "Valencia"}}`,
			`{"type": "relation", "id": 400, "tags": {"admin_level": "8", "name": "Valencia"}}`,
			`{"type": "relation", "id": 100, "tags": {"name": "Valencia"}}`,
		}, ","),
	})
	r := newTestResolver(srv.URL)

	areaID, err := r.LookupArea(context.Background(), "Valencia")
	require.NoError(t, err)
	assert.Equal(t, AreaIDFromRelation(400), areaID)
}

func TestLookupArea_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad query", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestResolver(srv.URL).LookupArea(context.Background(), "Torrent")
	var upstream *UpstreamServiceError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusBadRequest, upstream.StatusCode)
}

func TestResolveArea_FallsBackToShortName(t *testing.T) {
	srv, calls := newAreaServer(t, map[string]string{
		"Torrent": `{"type": "relation", "id": 344556, "tags": {"admin_level": "8", "name": "Torrent"}}`,
	})
	r := newTestResolver(srv.URL)

	areaID, err := r.ResolveArea(context.Background(), "Torrent, Valencia")
	require.NoError(t, err)
	assert.Equal(t, int64(3600344556), areaID)
	assert.Equal(t, int32(2), calls.Load(), "exact name first, then the short name")

	// Misses are not cached; the short name is served from cache
	_, err = r.ResolveArea(context.Background(), "Torrent, Valencia")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestResolveArea_NoFallbackCases(t *testing.T) {
	lookupErr := errors.New("lookup failed")

	tests := []struct {
		name      string
		boundary  string
		err       error
		wantCalls []string
		wantErr   func(t *testing.T, err error)
	}{
		{
			name:      "short name equals input",
			boundary:  "Atlantis",
			err:       &NotFoundError{Boundary: "Atlantis"},
			wantCalls: []string{"Atlantis"},
			wantErr: func(t *testing.T, err error) {
				var nf *NotFoundError
				require.ErrorAs(t, err, &nf)
				assert.Equal(t, "Atlantis", nf.Boundary)
			},
		},
		{
			name:      "short name not found either",
			boundary:  "Atlantis, Ocean",
			err:       &NotFoundError{},
			wantCalls: []string{"Atlantis, Ocean", "Atlantis"},
			wantErr: func(t *testing.T, err error) {
				var nf *NotFoundError
				require.ErrorAs(t, err, &nf)
			},
		},
		{
			name:      "non-not-found error propagates without retry",
			boundary:  "Torrent, Valencia",
			err:       lookupErr,
			wantCalls: []string{"Torrent, Valencia"},
			wantErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, lookupErr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver("http://unused.invalid")
			var calls []string
			r.lookup = func(_ context.Context, name string) (int64, error) {
				calls = append(calls, name)
				return 0, tt.err
			}

			_, err := r.ResolveArea(context.Background(), tt.boundary)
			tt.wantErr(t, err)
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestResolveArea_CachesHits(t *testing.T) {
	r := newTestResolver("http://unused.invalid")
	var calls int
	r.lookup = func(_ context.Context, name string) (int64, error) {
		calls++
		return AreaIDFromRelation(1), nil
	}

	for i := 0; i < 3; i++ {
		areaID, err := r.ResolveArea(context.Background(), "Torrent")
		require.NoError(t, err)
		assert.Equal(t, AreaIDFromRelation(1), areaID)
	}
	assert.Equal(t, 1, calls)
}

func TestPickRelation(t *testing.T) {
	rel := func(id int64, level string) *overpass.Relation {
		r := &overpass.Relation{}
		r.ID = id
		r.Tags = map[string]string{"admin_level": level}
		return r
	}

	got, n := pickRelation(nil)
	assert.Nil(t, got)
	assert.Zero(t, n)

	got, n = pickRelation(map[int64]*overpass.Relation{
		9: rel(9, "4"),
		3: rel(3, "bogus"),
		5: rel(5, "4"),
	})
	require.NotNil(t, got)
	assert.Equal(t, int64(5), got.ID)
	assert.Equal(t, 3, n)
}
