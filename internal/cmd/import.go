package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/den-kezlia/torrent/internal/importer"
	"github.com/den-kezlia/torrent/internal/streets"
	"github.com/den-kezlia/torrent/internal/tracing"
	"github.com/den-kezlia/torrent/internal/worker"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the streets of a boundary",
	Long: `Resolve an administrative boundary by name, fetch its highways from Overpass
and reconcile them into the street store.`,
	Example: `  streets import
  streets import --boundary "Picassent, Valencia" --workers 4
  streets import --unnamed per-way`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringP("boundary", "b", importer.DefaultBoundary, "Administrative boundary name")
	importCmd.Flags().String("unnamed", streets.UnnamedDrop.String(), "Unnamed way policy: drop, or per-way to store each as its own street (implies --no-prune)")
	importCmd.Flags().Bool("no-prune", false, "Keep per-way unnamed streets left by earlier imports")
	importCmd.Flags().IntP("workers", "w", 1, "Number of streets reconciled concurrently")
	importCmd.Flags().Bool("progress", true, "Show progress bar while reconciling")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"import.boundary", "boundary"},
		{"import.unnamed", "unnamed"},
		{"import.no_prune", "no-prune"},
		{"import.workers", "workers"},
		{"import.progress", "progress"},
	}
	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, importCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

// importOptions builds importer options from the import.* keys. The per-way
// policy turns pruning off, since pruning would delete what it creates.
func importOptions(v *viper.Viper) (importer.Options, error) {
	policy, err := streets.ParseUnnamedPolicy(v.GetString("import.unnamed"))
	if err != nil {
		return importer.Options{}, err
	}

	opts := importer.DefaultOptions()
	opts.Workers = v.GetInt("import.workers")
	opts.Unnamed = policy
	opts.PruneUnnamed = policy == streets.UnnamedDrop && !v.GetBool("import.no_prune")
	return opts, opts.Validate()
}

func runImport(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	v := viper.GetViper()
	boundary := v.GetString("import.boundary")
	opts, err := importOptions(v)
	if err != nil {
		return err
	}

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received interrupt signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	shutdownTracing, err := tracing.Init(ctx, v.GetString("tracing.endpoint"), version)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	reporter := worker.NewReporter(os.Stderr, v.GetBool("import.progress"))

	a, err := newApp(ctx, v, reporter.Observe)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("Starting street import",
		"boundary", boundary,
		"unnamed", opts.Unnamed.String(),
		"prune_unnamed", opts.PruneUnnamed,
		"workers", opts.Workers,
		"database_driver", v.GetString("database.driver"),
	)

	start := time.Now()
	res, err := a.importer.ImportStreets(ctx, boundary, opts)
	reporter.Finish()
	logger.Info(reporter.Summary())

	printResult(cmd.OutOrStdout(), boundary, res, time.Since(start))
	if err != nil {
		return fmt.Errorf("import of %q failed: %w", boundary, err)
	}
	return nil
}

func printResult(w io.Writer, boundary string, res importer.Result, elapsed time.Duration) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(boundary)
	t.AppendHeader(table.Row{"Created", "Updated", "Segments", "Pruned", "Duration"})
	t.AppendRow(table.Row{
		res.CreatedStreets,
		res.UpdatedStreets,
		res.UpsertedSegments,
		res.PrunedUnnamed,
		elapsed.Round(time.Millisecond),
	})
	t.SetStyle(table.StyleLight)
	t.Render()
}
