package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"rulelens/pkg/analysis"
	"rulelens/pkg/catalog"
	"rulelens/pkg/dataset"
	"rulelens/pkg/facts"
	"rulelens/pkg/yaml"
)

const cmdExamples = `  # Analyze a CSV dataset:
  rulelens ./employees.csv

  # Read the dataset from stdin:
  cat employees.csv | rulelens -

  # Use a custom rule catalog:
  rulelens ./employees.csv --catalog ./catalog.yaml

  # Merge externally mined ML facts into the report:
  rulelens ./employees.csv --facts ./facts.yaml

  # Watch the dataset and re-run on change:
  rulelens ./employees.csv --watch

  # Emit JSON instead of YAML:
  rulelens ./employees.csv --format json`

type RunArgs struct {
	*RootArgs

	Path        string
	CatalogPath string
	FactsPath   string
	Format      string
	Workers     int
	Watch       bool
	ShowCatalog bool
}

func NewRunArgs(rootArgs *RootArgs) *RunArgs {
	return &RunArgs{
		RootArgs: rootArgs,
	}
}

func (ra *RunArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ra.CatalogPath, "catalog", "", "Path to a rule catalog file (defaults to the embedded catalog)")
	cmd.Flags().StringVar(&ra.FactsPath, "facts", "", "Path to an ML facts file to merge into the report")
	cmd.Flags().StringVar(&ra.Format, "format", "yaml", "Report output format, one of: [yaml, json]")
	cmd.Flags().IntVar(&ra.Workers, "workers", 0, "Number of record evaluation workers (0 = number of CPUs)")
	cmd.Flags().BoolVarP(&ra.Watch, "watch", "w", false, "Watch the dataset file and re-run on change")
	cmd.Flags().BoolVar(&ra.ShowCatalog, "show-catalog", false, "Print the active rule catalog and exit")

	err := cmd.MarkFlagFilename("catalog", "yaml", "yml")
	if err != nil {
		panic(fmt.Errorf("mark catalog flag: %w", err))
	}
}

func NewRunCmd(ra *RunArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run [path]",
		Short:   "Default command, analyzes the dataset at the given path",
		Example: cmdExamples,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				ra.Path = args[0]
			}

			return run(cmd, ra)
		},
	}
	ra.AddFlags(cmd)

	bindEnvVars(cmd)

	return cmd
}

func run(cmd *cobra.Command, ra *RunArgs) error {
	cat, err := loadCatalog(ra)
	if err != nil {
		return err
	}

	if ra.ShowCatalog {
		return writeCatalog(cmd.OutOrStdout(), cat)
	}

	if ra.Path == "" {
		return fmt.Errorf("missing dataset path")
	}

	runner, err := analysis.NewRunner(cat, analysis.WithWorkers(ra.Workers))
	if err != nil {
		return fmt.Errorf("invalid rule catalog: %w", err)
	}

	mlFacts := loadFacts(ra)

	analyze := func(ctx context.Context) error {
		ds, err := loadDataset(cmd.InOrStdin(), ra.Path)
		if err != nil {
			return err
		}

		rep := runner.Analyze(ctx, ds, mlFacts)

		return writeReport(cmd.OutOrStdout(), rep, ra.Format)
	}

	if !ra.Watch || ra.Path == "-" {
		return analyze(cmd.Context())
	}

	return watch(cmd.Context(), ra.Path, analyze)
}

func loadCatalog(ra *RunArgs) (*catalog.Catalog, error) {
	if ra.CatalogPath == "" {
		return catalog.Default(), nil
	}

	loader, err := catalog.NewLoaderFromFile(ra.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	cat, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid catalog %q: %w", ra.CatalogPath, err)
	}

	return cat, nil
}

// loadFacts reads the ML facts file, if one was given. The statistical
// collaborator is best-effort: failure to read it must not block the
// cascade-based report.
func loadFacts(ra *RunArgs) *facts.Facts {
	if ra.FactsPath == "" {
		return nil
	}

	mlFacts, err := facts.FromFile(ra.FactsPath)
	if err != nil {
		slog.Warn("could not read ML facts, continuing without them",
			slog.Any("err", err),
		)

		return nil
	}

	return mlFacts
}

func loadDataset(stdin io.Reader, path string) (*dataset.Dataset, error) {
	if path == "-" {
		ds, err := dataset.FromCSV(stdin)
		if err != nil {
			return nil, fmt.Errorf("read dataset from stdin: %w", err)
		}

		return ds, nil
	}

	ds, err := dataset.FromCSVFile(path)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	return ds, nil
}

func writeCatalog(w io.Writer, cat *catalog.Catalog) error {
	enc := yaml.NewEncoder(w)

	err := enc.Encode(cat)
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}

	return enc.Close()
}

func writeReport(w io.Writer, rep any, format string) error {
	switch strings.ToLower(format) {
	case "json":
		b, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}

		_, err = fmt.Fprintln(w, string(b))

		return err

	case "yaml", "yml":
		enc := yaml.NewEncoder(w)

		err := enc.Encode(rep)
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}

		return enc.Close()
	}

	return fmt.Errorf("unknown output format %q", format)
}

// watch re-runs the analysis whenever the dataset file is rewritten.
func watch(ctx context.Context, path string, analyze func(context.Context) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck // Best-effort cleanup.

	// Watch the directory: editors often replace the file on save.
	err = watcher.Add(filepath.Dir(path))
	if err != nil {
		return fmt.Errorf("watch %q: %w", path, err)
	}

	err = analyze(ctx)
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			eventPath, err := filepath.Abs(event.Name)
			if err != nil || eventPath != absPath {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			slog.Info("dataset changed, re-running analysis",
				slog.String("path", path),
			)

			err = analyze(ctx)
			if err != nil {
				slog.Error("analysis failed", slog.Any("err", err))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			slog.Error("watch error", slog.Any("err", err))
		}
	}
}
