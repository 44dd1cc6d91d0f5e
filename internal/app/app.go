// Package app wires configuration, inputs, and the pipeline into the
// govizu command.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"govizu-core/align"
	"govizu-core/fasta"
	"govizu-core/filter"
	"govizu-core/lineage"
	"govizu-core/pipeline"
	"govizu-core/record"
	"govizu/internal/config"
	"govizu/internal/logutil"
	"govizu/internal/minimap2"
	"govizu/internal/version"
	"govizu/internal/writers"
)

// Exit codes follow the house convention: 2 usage, 3 runtime failure,
// 130 interrupted.
func Run(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	var started bool
	cmd := newRootCmd(stdout, stderr, &started)
	cmd.SetArgs(argv)

	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	case !started:
		fmt.Fprintf(stderr, "error: %v\nRun 'govizu --help' for usage.\n", err)
		return 2
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 3
	}
}

func newRootCmd(stdout, stderr io.Writer, started *bool) *cobra.Command {
	cfg := config.Default()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "govizu <archive.fa[.gz]> <lineages.csv>",
		Short: "Ingest a viral genome archive into a lineage-partitioned feature set",
		Long: `govizu streams a genome archive through validation, batch alignment,
molecular-clock outlier filtering, and lineage partitioning, writing a
by-lineage JSON feature set for downstream tree building.`,
		Version:       version.Version,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			*started = true
			if cfgFile != "" {
				fileCfg := config.Default()
				if err := fileCfg.LoadFile(cfgFile); err != nil {
					return err
				}
				overlay(cmd.Flags(), &cfg, fileCfg)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, args[0], args[1])
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	fl := cmd.Flags()
	fl.StringVar(&cfgFile, "config", "", "YAML config file (flags take precedence)")
	fl.IntVar(&cfg.MinLen, "minlen", cfg.MinLen, "minimum genome length (nt)")
	fl.StringVar(&cfg.MinDate, "mindate", cfg.MinDate, "earliest possible sample collection date (ISO)")
	fl.IntVar(&cfg.BatchSize, "batchsize", cfg.BatchSize, "number of records per minimap2 batch")
	fl.StringVar(&cfg.Ref, "ref", cfg.Ref, "path to FASTA file with reference genome")
	fl.StringVar(&cfg.MMBin, "mmbin", cfg.MMBin, "path to minimap2 binary executable")
	fl.IntVar(&cfg.MMThreads, "mmthreads", cfg.MMThreads, "number of threads for minimap2")
	fl.IntVar(&cfg.MissTol, "misstol", cfg.MissTol, "maximum tolerated number of missing bases per genome")
	fl.StringVar(&cfg.VCF, "vcf", cfg.VCF, "path to VCF file of problematic genome sites")
	fl.Float64Var(&cfg.Clock, "clock", cfg.Clock, "molecular clock rate (substitutions/site/year)")
	fl.Float64Var(&cfg.PoissonCutoff, "poisson-cutoff", cfg.PoissonCutoff, "upper-tail significance for outlier filtering")
	fl.StringVar(&cfg.ByLineage, "bylineage", cfg.ByLineage, "path to write JSON of features by lineage")
	fl.StringVar(&cfg.OutDir, "outdir", cfg.OutDir, "directory to write run summaries")
	fl.BoolVar(&cfg.JSONLog, "json-log", cfg.JSONLog, "emit JSON log lines")
	fl.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	return cmd
}

// overlay copies file-config values into cfg for every flag the user did
// not set explicitly, giving flags > file > defaults precedence.
func overlay(fl *pflag.FlagSet, cfg *config.Config, file config.Config) {
	unless := func(name string, apply func()) {
		if !fl.Changed(name) {
			apply()
		}
	}
	unless("minlen", func() { cfg.MinLen = file.MinLen })
	unless("mindate", func() { cfg.MinDate = file.MinDate })
	unless("batchsize", func() { cfg.BatchSize = file.BatchSize })
	unless("ref", func() { cfg.Ref = file.Ref })
	unless("mmbin", func() { cfg.MMBin = file.MMBin })
	unless("mmthreads", func() { cfg.MMThreads = file.MMThreads })
	unless("misstol", func() { cfg.MissTol = file.MissTol })
	unless("vcf", func() { cfg.VCF = file.VCF })
	unless("clock", func() { cfg.Clock = file.Clock })
	unless("poisson-cutoff", func() { cfg.PoissonCutoff = file.PoissonCutoff })
	unless("bylineage", func() { cfg.ByLineage = file.ByLineage })
	unless("outdir", func() { cfg.OutDir = file.OutDir })
	unless("json-log", func() { cfg.JSONLog = file.JSONLog })
	unless("log-level", func() { cfg.LogLevel = file.LogLevel })
}

func run(ctx context.Context, cfg config.Config, archive, lineageFile string) error {
	log, err := logutil.New(cfg.JSONLog, cfg.LogLevel)
	if err != nil {
		return errors.Wrap(err, "logger")
	}
	defer func() { _ = log.Sync() }()
	start := time.Now()

	runner := minimap2.New(cfg.MMBin, cfg.Ref, cfg.MMThreads, log)
	if err := runner.Check(); err != nil {
		return err
	}

	ref, err := fasta.ReadReference(cfg.Ref)
	if err != nil {
		return errors.Wrap(err, "reference genome")
	}

	fh, err := os.Open(lineageFile)
	if err != nil {
		return errors.Wrap(err, "lineage file")
	}
	table, err := lineage.Load(fh, lineageFile)
	_ = fh.Close()
	if err != nil {
		return err
	}
	log.Info("loaded lineage table",
		zap.String("file", lineageFile),
		zap.Int("entries", table.Len()))

	vcf, err := fasta.Open(cfg.VCF)
	if err != nil {
		return errors.Wrap(err, "problematic sites")
	}
	sites, err := filter.ReadSites(vcf, cfg.VCF)
	_ = vcf.Close()
	if err != nil {
		return err
	}

	minDate, err := cfg.MinDateTime()
	if err != nil {
		return err
	}

	p := &pipeline.Pipeline{
		Normalizer: &record.Normalizer{
			MinLen:  cfg.MinLen,
			MinDate: minDate,
			Table:   table,
		},
		Aligner:   runner,
		Extractor: align.Extractor{RefLen: len(ref.Seq), MissTol: cfg.MissTol},
		Filter: filter.New(filter.Config{
			ClockRate: cfg.Clock,
			RefLen:    len(ref.Seq),
			Origin:    minDate,
			Cutoff:    cfg.PoissonCutoff,
			Sites:     sites,
		}),
		BatchSize: cfg.BatchSize,
	}

	log.Info("starting run",
		zap.String("archive", archive),
		zap.String("reference", ref.Header),
		zap.Int("reflen", len(ref.Seq)),
		zap.Int("problematic_sites", len(sites)),
		zap.Int("batchsize", cfg.BatchSize))

	part, stats, err := p.Run(ctx, archive)
	if err != nil {
		return err
	}

	if err := writers.WriteByLineageFile(cfg.ByLineage, part); err != nil {
		return errors.Wrap(err, "write by-lineage")
	}
	statsPath := filepath.Join(cfg.OutDir,
		fmt.Sprintf("dbstats.%s.json", start.Format("2006-01-02T15:04:05")))
	if err := writers.WriteDBStatsFile(statsPath, start, stats.Kept); err != nil {
		return errors.Wrap(err, "write dbstats")
	}

	log.Info("run complete",
		zap.Int("read", stats.Read),
		zap.Int("kept", stats.Kept),
		zap.Int("skipped", stats.Skipped()),
		zap.Int("too_short", stats.TooShort),
		zap.Int("incomplete_date", stats.IncompleteDate),
		zap.Int("date_out_of_range", stats.DateOutOfRange),
		zap.Int("low_coverage", stats.LowCoverage),
		zap.Int("outliers", stats.Outliers),
		zap.Strings("lineages", part.Lineages()),
		zap.String("bylineage", cfg.ByLineage),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
