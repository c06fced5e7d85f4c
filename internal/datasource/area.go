package datasource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Christian/go-overpass"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultAreaCacheSize is the number of boundary names whose area IDs are remembered
	DefaultAreaCacheSize = 256

	// DefaultAreaCacheTTL bounds how long a resolved area ID is reused
	DefaultAreaCacheTTL = 24 * time.Hour
)

// AreaResolverConfig configures an AreaResolver
type AreaResolverConfig struct {
	Transport    *Transport
	Logger       *slog.Logger
	Endpoint     string
	CacheSize    int
	CacheTTL     time.Duration
	QueryTimeout int // [timeout:N] directive, seconds
}

// AreaResolver maps administrative boundary names to Overpass area IDs
type AreaResolver struct {
	transport *Transport
	cache     *expirable.LRU[string, int64]
	logger    *slog.Logger
	lookup    func(ctx context.Context, name string) (int64, error)
	endpoint  string
	timeout   int
}

// NewAreaResolver creates a resolver querying cfg.Endpoint through cfg.Transport.
func NewAreaResolver(cfg AreaResolverConfig) *AreaResolver {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Transport == nil {
		cfg.Transport = NewTransport(DefaultTransportConfig())
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultAreaCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultAreaCacheTTL
	}

	r := &AreaResolver{
		transport: cfg.Transport,
		cache:     expirable.NewLRU[string, int64](cfg.CacheSize, nil, cfg.CacheTTL),
		logger:    cfg.Logger,
		endpoint:  cfg.Endpoint,
		timeout:   cfg.QueryTimeout,
	}
	r.lookup = r.LookupArea
	return r
}

// ShortBoundaryName returns the part of boundary before the first comma, trimmed.
// "Torrent, Valencia" becomes "Torrent".
func ShortBoundaryName(boundary string) string {
	short, _, _ := strings.Cut(boundary, ",")
	return strings.TrimSpace(short)
}

// ResolveArea resolves boundary by exact name. If nothing matches, it retries
// once with the shortened name when that differs from boundary. Errors other
// than NotFoundError are returned without a retry.
func (r *AreaResolver) ResolveArea(ctx context.Context, boundary string) (int64, error) {
	areaID, err := r.resolveCached(ctx, boundary)
	var notFound *NotFoundError
	if err == nil || !errors.As(err, &notFound) {
		return areaID, err
	}

	short := ShortBoundaryName(boundary)
	if short == "" || short == boundary {
		return 0, err
	}

	r.logger.Info("boundary not found, retrying with short name", "boundary", boundary, "short_name", short)
	return r.resolveCached(ctx, short)
}

func (r *AreaResolver) resolveCached(ctx context.Context, name string) (int64, error) {
	if areaID, ok := r.cache.Get(name); ok {
		r.logger.Debug("area cache hit", "boundary", name, "area_id", areaID)
		return areaID, nil
	}

	areaID, err := r.lookup(ctx, name)
	if err != nil {
		return 0, err
	}
	r.cache.Add(name, areaID)
	return areaID, nil
}

// LookupArea finds the administrative relation named exactly name and returns its area ID.
func (r *AreaResolver) LookupArea(ctx context.Context, name string) (int64, error) {
	doer := &boundDoer{ctx: ctx, next: r.transport}
	client := overpass.NewWithSettings(r.endpoint, 1, doer)

	result, err := client.Query(AreaQuery(name, r.timeout))
	if err != nil {
		// Prefer the transport's typed error over the client's wrapped one
		if doer.err != nil {
			return 0, doer.err
		}
		return 0, fmt.Errorf("overpass area lookup failed: %w", err)
	}

	rel, matches := pickRelation(result.Relations)
	if rel == nil {
		return 0, &NotFoundError{Boundary: name}
	}
	if matches > 1 {
		r.logger.Warn("multiple administrative relations match boundary",
			"boundary", name,
			"matches", matches,
			"relation_id", rel.ID,
			"admin_level", rel.Tags["admin_level"],
		)
	}

	areaID := AreaIDFromRelation(rel.ID)
	r.logger.Debug("resolved boundary", "boundary", name, "relation_id", rel.ID, "area_id", areaID)
	return areaID, nil
}

// pickRelation chooses the most specific match: highest numeric admin_level,
// then lowest relation ID. Relations without an admin_level sort last.
func pickRelation(relations map[int64]*overpass.Relation) (*overpass.Relation, int) {
	candidates := make([]*overpass.Relation, 0, len(relations))
	for _, rel := range relations {
		if rel != nil {
			candidates = append(candidates, rel)
		}
	}
	if len(candidates) == 0 {
		return nil, 0
	}

	sort.Slice(candidates, func(i, j int) bool {
		li, lj := adminLevel(candidates[i].Tags), adminLevel(candidates[j].Tags)
		if li != lj {
			return li > lj
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0], len(candidates)
}

func adminLevel(tags map[string]string) int {
	level, err := strconv.Atoi(strings.TrimSpace(tags["admin_level"]))
	if err != nil {
		return -1
	}
	return level
}

// boundDoer binds a context to requests issued by the go-overpass client and
// records the transport's typed error.
type boundDoer struct {
	ctx  context.Context
	next *Transport
	err  error
}

func (d *boundDoer) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.next.Do(req.WithContext(d.ctx))
	if err != nil {
		d.err = err
	}
	return resp, err
}

func (d *boundDoer) PostForm(endpoint string, data url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(d.ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return d.Do(req)
}
