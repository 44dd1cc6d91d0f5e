// Package config holds the run configuration: built-in defaults, an
// optional YAML file, and CLI flags layered in that order.
package config

import (
	"bytes"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Config is the full tunable surface of a pipeline run.
type Config struct {
	// Record validation
	MinLen  int    `yaml:"minlen"`  // minimum genome length (nt)
	MinDate string `yaml:"mindate"` // earliest plausible collection date (ISO)

	// Alignment
	BatchSize int    `yaml:"batchsize"` // records per aligner invocation
	Ref       string `yaml:"ref"`       // reference genome FASTA
	MMBin     string `yaml:"mmbin"`     // minimap2 binary
	MMThreads int    `yaml:"mmthreads"` // threads handed to minimap2
	MissTol   int    `yaml:"misstol"`   // max tolerated missing bases per genome

	// Outlier filtering
	VCF           string  `yaml:"vcf"`            // problematic-sites VCF
	Clock         float64 `yaml:"clock"`          // molecular clock rate (subs/site/year)
	PoissonCutoff float64 `yaml:"poisson-cutoff"` // upper-tail significance

	// Output
	ByLineage string `yaml:"bylineage"` // by-lineage JSON destination
	OutDir    string `yaml:"outdir"`    // directory for run summaries

	// Logging
	JSONLog  bool   `yaml:"json-log"`
	LogLevel string `yaml:"log-level"`
}

// Default mirrors the upstream pipeline's long-standing defaults for
// SARS-CoV-2 feeds.
func Default() Config {
	return Config{
		MinLen:        29000,
		MinDate:       "2019-12-01",
		BatchSize:     500,
		Ref:           "data/NC_045512.fa",
		MMBin:         "minimap2",
		MMThreads:     8,
		MissTol:       300,
		VCF:           "data/problematic_sites_sarsCov2.vcf",
		Clock:         8e-4,
		PoissonCutoff: 0.001,
		ByLineage:     "data/by_lineage.json",
		OutDir:        "data",
		LogLevel:      "info",
	}
}

// LoadFile overlays the YAML file at path onto c. Unknown keys are
// rejected so a typoed option fails loudly instead of silently using the
// default.
func (c *Config) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config")
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return errors.Wrapf(err, "parse config %s", path)
	}
	return nil
}

// MinDateTime parses the configured earliest collection date.
func (c Config) MinDateTime() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.MinDate)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "mindate %q", c.MinDate)
	}
	return t, nil
}

// Validate checks ranges that would otherwise surface as confusing
// downstream behavior.
func (c Config) Validate() error {
	if c.MinLen < 1 {
		return errors.Newf("minlen must be positive, got %d", c.MinLen)
	}
	if c.BatchSize < 1 {
		return errors.Newf("batchsize must be positive, got %d", c.BatchSize)
	}
	if c.PoissonCutoff <= 0 || c.PoissonCutoff >= 1 {
		return errors.Newf("poisson-cutoff must be in (0, 1), got %g", c.PoissonCutoff)
	}
	if c.Clock < 0 {
		return errors.Newf("clock rate must be non-negative, got %g", c.Clock)
	}
	if _, err := c.MinDateTime(); err != nil {
		return err
	}
	return nil
}
