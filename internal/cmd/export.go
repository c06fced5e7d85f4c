package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/den-kezlia/torrent/internal/geojson"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored street segments as GeoJSON",
	Long: `Write every stored street segment as a GeoJSON FeatureCollection of
LineStrings, optionally limited to the segments intersecting a bounding box.`,
	Example: `  streets export --output segments.geojson
  streets export --bbox -0.50,39.40,-0.40,39.46 --output torrent.geojson`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("output", "o", "segments.geojson", "Output file path (\"-\" for stdout)")
	exportCmd.Flags().String("bbox", "", "Bounding box: minLon,minLat,maxLon,maxLat")

	if err := viper.BindPFlag("export.output", exportCmd.Flags().Lookup("output")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
	if err := viper.BindPFlag("export.bbox", exportCmd.Flags().Lookup("bbox")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	v := viper.GetViper()
	output := v.GetString("export.output")

	var bbox *orb.Bound
	if raw := v.GetString("export.bbox"); raw != "" {
		b, err := geojson.ParseBBox(raw)
		if err != nil {
			return fmt.Errorf("invalid bbox: %w", err)
		}
		bbox = &b
	}

	st, err := openStore(cmd.Context(), v)
	if err != nil {
		return err
	}
	defer st.Close()

	segments, err := st.ListSegments(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list segments: %w", err)
	}

	data, err := geojson.SegmentsToGeoJSONBytes(segments, bbox)
	if err != nil {
		return err
	}

	if output == "-" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}

	logger.Info("Exported segments", "path", output, "stored", len(segments), "bbox", v.GetString("export.bbox"))
	return nil
}
