package server

import (
	"log/slog"
	"net/http"

	"github.com/den-kezlia/torrent/internal/geojson"
	"github.com/den-kezlia/torrent/internal/store"
	"github.com/paulmach/orb"
)

// SegmentsHandler serves stored segments as a GeoJSON FeatureCollection,
// optionally limited to ?bbox=minLon,minLat,maxLon,maxLat.
type SegmentsHandler struct {
	lister store.SegmentLister
	logger *slog.Logger
}

// NewSegmentsHandler creates a segments handler.
func NewSegmentsHandler(lister store.SegmentLister, logger *slog.Logger) *SegmentsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SegmentsHandler{lister: lister, logger: logger}
}

func (h *SegmentsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var bbox *orb.Bound
	if raw := r.URL.Query().Get("bbox"); raw != "" {
		b, err := geojson.ParseBBox(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("Invalid bbox"))
			return
		}
		bbox = &b
	}

	segments, err := h.lister.ListSegments(r.Context())
	if err != nil {
		h.logger.Error("failed to list segments", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to list segments"))
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	writeJSON(w, http.StatusOK, geojson.SegmentsToFeatureCollection(segments, bbox))
}
