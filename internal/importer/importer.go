// Package importer reconciles OpenStreetMap highways inside an administrative
// boundary with the street store.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/den-kezlia/torrent/internal/datasource"
	"github.com/den-kezlia/torrent/internal/store"
	"github.com/den-kezlia/torrent/internal/streets"
	"github.com/den-kezlia/torrent/internal/tracing"
	"github.com/den-kezlia/torrent/internal/types"
	"github.com/den-kezlia/torrent/internal/worker"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultBoundary is imported when no boundary name is given
const DefaultBoundary = "Torrent, Valencia"

// ErrInvalidOptions is returned by Options.Validate
var ErrInvalidOptions = errors.New("invalid import options")

// AreaResolver maps a boundary name to an Overpass area ID
type AreaResolver interface {
	ResolveArea(ctx context.Context, boundary string) (int64, error)
}

// HighwaySource fetches highway ways and their nodes for an area
type HighwaySource interface {
	FetchHighways(ctx context.Context, q datasource.HighwayQuery) ([]types.Element, error)
}

// Options controls a single import run
type Options struct {
	// Unnamed decides what happens to ways without a usable name
	Unnamed streets.UnnamedPolicy
	// Workers is the number of street groups reconciled concurrently
	Workers int
	// PruneUnnamed deletes streets created per-way by earlier runs
	PruneUnnamed bool
}

// DefaultOptions drops unnamed ways, prunes legacy per-way streets and
// reconciles sequentially.
func DefaultOptions() Options {
	return Options{
		Unnamed:      streets.UnnamedDrop,
		Workers:      1,
		PruneUnnamed: true,
	}
}

// Validate rejects option combinations that would undo their own work.
func (o Options) Validate() error {
	if o.Unnamed == streets.UnnamedPerWay && o.PruneUnnamed {
		return fmt.Errorf("%w: per-way unnamed streets would be pruned by the same run", ErrInvalidOptions)
	}
	if o.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidOptions)
	}
	return nil
}

// Result aggregates the counts of one import run. Skipped and dropped ways
// are logged and exported as metrics, not reported here.
type Result struct {
	CreatedStreets   int   `json:"createdStreets"`
	UpdatedStreets   int   `json:"updatedStreets"`
	UpsertedSegments int   `json:"upsertedSegments"`
	PrunedUnnamed    int64 `json:"prunedUnnamed"`
}

// Config wires an Importer to its collaborators
type Config struct {
	Resolver     AreaResolver
	Source       HighwaySource
	Store        store.Store
	Metrics      *Metrics
	Logger       *slog.Logger
	OnProgress   worker.ProgressFunc
	HighwayTypes []string // nil uses datasource.DefaultHighwayTypes
	QueryTimeout int      // [timeout:N] directive, seconds
}

// Importer runs street imports
type Importer struct {
	resolver     AreaResolver
	source       HighwaySource
	store        store.Store
	metrics      *Metrics
	logger       *slog.Logger
	onProgress   worker.ProgressFunc
	highwayTypes []string
	queryTimeout int
}

// New creates an importer.
func New(cfg Config) (*Importer, error) {
	if cfg.Resolver == nil || cfg.Source == nil || cfg.Store == nil {
		return nil, fmt.Errorf("importer requires a resolver, a highway source and a store")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HighwayTypes == nil {
		cfg.HighwayTypes = datasource.DefaultHighwayTypes
	}

	return &Importer{
		resolver:     cfg.Resolver,
		source:       cfg.Source,
		store:        cfg.Store,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		onProgress:   cfg.OnProgress,
		highwayTypes: cfg.HighwayTypes,
		queryTimeout: cfg.QueryTimeout,
	}, nil
}

// ImportStreets converges the store towards the highways currently inside
// boundary: resolve the area, fetch its highways, group ways into streets,
// upsert each street and its segments, then optionally prune streets left
// over from per-way imports.
//
// Upserts commit independently. If one fails, the remaining groups are not
// started and the counts so far are returned together with the error.
// Cancelling ctx stops the run between groups.
func (im *Importer) ImportStreets(ctx context.Context, boundary string, opts Options) (res Result, err error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	if boundary == "" {
		boundary = DefaultBoundary
	}

	start := time.Now()
	log := im.logger.With("boundary", boundary)
	var skipped int

	ctx, span := tracing.StartSpan(ctx, "importer.import_streets")
	span.SetAttributes(
		attribute.String("boundary", boundary),
		attribute.String("unnamed_policy", opts.Unnamed.String()),
		attribute.Bool("prune_unnamed", opts.PruneUnnamed),
	)
	defer func() {
		span.SetAttributes(
			attribute.Int("created_streets", res.CreatedStreets),
			attribute.Int("updated_streets", res.UpdatedStreets),
			attribute.Int("upserted_segments", res.UpsertedSegments),
		)
		tracing.EndSpan(span, err)
		im.metrics.observeRun(res, skipped, err, time.Since(start))
	}()

	areaID, err := im.resolveArea(ctx, boundary)
	if err != nil {
		return Result{}, err
	}
	log = log.With("area_id", areaID)

	elements, err := im.fetchHighways(ctx, areaID, opts)
	if err != nil {
		return Result{}, err
	}

	nodes, ways := streets.Classify(elements)
	groups, dropped := streets.GroupWays(ways, opts.Unnamed)
	im.metrics.observeDropped(dropped)
	log.Info("grouped highways",
		"nodes", len(nodes),
		"ways", len(ways),
		"streets", len(groups),
		"dropped_unnamed", dropped,
	)

	skipped, err = im.reconcile(ctx, groups, nodes, opts, &res)
	if err != nil {
		log.Error("import aborted",
			"error", err,
			"skipped_ways", skipped,
			"created_streets", res.CreatedStreets,
			"updated_streets", res.UpdatedStreets,
			"upserted_segments", res.UpsertedSegments,
		)
		return res, err
	}

	if opts.PruneUnnamed {
		pruned, err := im.prune(ctx)
		if err != nil {
			return res, err
		}
		res.PrunedUnnamed = pruned
	}

	log.Info("import completed",
		"created_streets", res.CreatedStreets,
		"updated_streets", res.UpdatedStreets,
		"upserted_segments", res.UpsertedSegments,
		"skipped_ways", skipped,
		"dropped_unnamed", dropped,
		"pruned_unnamed", res.PrunedUnnamed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (im *Importer) resolveArea(ctx context.Context, boundary string) (areaID int64, err error) {
	ctx, span := tracing.StartSpan(ctx, "importer.resolve_area")
	defer func() { tracing.EndSpan(span, err) }()

	areaID, err = im.resolver.ResolveArea(ctx, boundary)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("area_id", areaID))
	return areaID, nil
}

func (im *Importer) fetchHighways(ctx context.Context, areaID int64, opts Options) (elements []types.Element, err error) {
	ctx, span := tracing.StartSpan(ctx, "importer.fetch_highways")
	defer func() { tracing.EndSpan(span, err) }()

	// Ways without a name tag can only matter when they become streets
	elements, err = im.source.FetchHighways(ctx, datasource.HighwayQuery{
		AreaID:         areaID,
		Types:          im.highwayTypes,
		RequireName:    opts.Unnamed == streets.UnnamedDrop,
		TimeoutSeconds: im.queryTimeout,
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("elements", len(elements)))
	return elements, nil
}

// reconcile upserts every group, adds the outcome counts to res and returns
// the number of ways skipped for lack of geometry.
func (im *Importer) reconcile(ctx context.Context, groups []streets.WayGroup, nodes types.NodeCoordinateMap, opts Options, res *Result) (skipped int, err error) {
	ctx, span := tracing.StartSpan(ctx, "importer.reconcile")
	span.SetAttributes(attribute.Int("streets", len(groups)), attribute.Int("workers", opts.Workers))
	defer func() { tracing.EndSpan(span, err) }()

	pool := worker.New(worker.Config{
		Workers:    opts.Workers,
		Handler:    &groupReconciler{store: im.store, nodes: nodes, logger: im.logger},
		OnProgress: im.onProgress,
	})

	results, err := pool.Run(ctx, groups)
	for _, r := range results {
		switch r.Stats.Street {
		case types.UpsertCreated:
			res.CreatedStreets++
		case types.UpsertUpdated:
			res.UpdatedStreets++
		}
		res.UpsertedSegments += r.Stats.UpsertedSegments
		skipped += r.Stats.SkippedWays
	}
	return skipped, err
}

func (im *Importer) prune(ctx context.Context) (pruned int64, err error) {
	ctx, span := tracing.StartSpan(ctx, "importer.prune_unnamed")
	defer func() { tracing.EndSpan(span, err) }()

	pruned, err = im.store.DeleteStreetsByPrefix(ctx, streets.UnnamedKeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to prune unnamed streets: %w", err)
	}
	span.SetAttributes(attribute.Int64("pruned", pruned))
	return pruned, nil
}

// groupReconciler upserts one street and a segment per buildable way.
type groupReconciler struct {
	store  store.Store
	nodes  types.NodeCoordinateMap
	logger *slog.Logger
}

func (g *groupReconciler) Handle(ctx context.Context, group streets.WayGroup) (worker.GroupStats, error) {
	street, outcome, err := g.store.UpsertStreet(ctx, group.Key, group.Name)
	if err != nil {
		return worker.GroupStats{}, err
	}
	stats := worker.GroupStats{Street: outcome}

	for _, way := range group.Ways {
		line, ok := streets.BuildLineString(way.NodeIDs, g.nodes)
		if !ok {
			g.logger.Debug("skipping way without enough resolved nodes", "way_id", way.ID, "street", group.Name)
			stats.SkippedWays++
			continue
		}
		if _, _, err := g.store.UpsertStreetSegment(ctx, streets.SegmentKey(way.ID), street.ID, line); err != nil {
			return stats, err
		}
		stats.UpsertedSegments++
	}

	return stats, nil
}
