package cmd

import (
	"context"
	"fmt"

	"github.com/den-kezlia/torrent/internal/datasource"
	"github.com/den-kezlia/torrent/internal/importer"
	"github.com/den-kezlia/torrent/internal/store"
	"github.com/den-kezlia/torrent/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
)

// app holds the collaborators shared by the import and serve commands.
type app struct {
	importer *importer.Importer
	store    store.Backend
	registry *prometheus.Registry
}

func newApp(ctx context.Context, v *viper.Viper, onProgress worker.ProgressFunc) (*app, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := importer.NewMetrics(registry)

	transport := datasource.NewTransport(transportConfig(v, metrics))
	endpoint := v.GetString("overpass.endpoint")
	queryTimeout := v.GetInt("overpass.query_timeout")

	resolver := datasource.NewAreaResolver(datasource.AreaResolverConfig{
		Transport:    transport,
		Logger:       logger,
		Endpoint:     endpoint,
		CacheSize:    v.GetInt("overpass.area_cache_size"),
		CacheTTL:     v.GetDuration("overpass.area_cache_ttl"),
		QueryTimeout: queryTimeout,
	})
	source := datasource.NewOverpassDataSource(endpoint, transport)

	st, err := openStore(ctx, v)
	if err != nil {
		return nil, err
	}

	imp, err := importer.New(importer.Config{
		Resolver:     resolver,
		Source:       source,
		Store:        st,
		Metrics:      metrics,
		Logger:       logger,
		OnProgress:   onProgress,
		HighwayTypes: v.GetStringSlice("overpass.highway_types"),
		QueryTimeout: queryTimeout,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &app{importer: imp, store: st, registry: registry}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func openStore(ctx context.Context, v *viper.Viper) (store.Backend, error) {
	st, err := store.Open(ctx, store.Config{
		Logger:   logger,
		Driver:   v.GetString("database.driver"),
		DSN:      v.GetString("database.dsn"),
		MaxConns: v.GetInt32("database.max_conns"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

func transportConfig(v *viper.Viper, observer datasource.RequestObserver) datasource.TransportConfig {
	return datasource.TransportConfig{
		Logger:         logger,
		Observer:       observer,
		UserAgent:      v.GetString("overpass.user_agent"),
		RequestTimeout: v.GetDuration("overpass.request_timeout"),
		InitialBackoff: v.GetDuration("overpass.initial_backoff"),
		MaxBackoff:     v.GetDuration("overpass.max_backoff"),
		RateLimit:      v.GetFloat64("overpass.rate_limit"),
		RateBurst:      v.GetInt("overpass.rate_burst"),
		MaxAttempts:    v.GetInt("overpass.max_attempts"),
	}
}
