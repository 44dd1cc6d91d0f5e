package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govizu/internal/config"
)

func runCLI(t *testing.T, argv ...string) (int, string, string) {
	t.Helper()
	var out, errb bytes.Buffer
	code := Run(context.Background(), argv, &out, &errb)
	return code, out.String(), errb.String()
}

func TestRunMissingArgsIsUsageError(t *testing.T) {
	code, _, stderr := runCLI(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "--help")
}

func TestRunUnknownFlagIsUsageError(t *testing.T) {
	code, _, _ := runCLI(t, "--no-such-flag", "a.fa", "l.csv")
	assert.Equal(t, 2, code)
}

func TestRunHelp(t *testing.T) {
	code, stdout, _ := runCLI(t, "--help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "govizu")
	assert.Contains(t, stdout, "--poisson-cutoff")
}

func TestRunMissingInputsFails(t *testing.T) {
	// Validation and binary lookup run before any file is touched; a bogus
	// aligner path must fail the run, not hang on inputs.
	code, _, stderr := runCLI(t,
		"--mmbin", "definitely-not-a-real-aligner-binary",
		"archive.fa", "lineages.csv")
	assert.Equal(t, 3, code)
	assert.Contains(t, stderr, "definitely-not-a-real-aligner-binary")
}

// Full run against a scripted aligner: two records in two lineages go
// through validation, alignment, filtering and partitioning, and both the
// by-lineage export and the run summary come out.
func TestRunEndToEnd(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell-script fake aligner")
	}
	dir := t.TempDir()
	write := func(name, content string) string {
		t.Helper()
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}

	const refSeq = "ACGTACGTACGTACGTACGT"
	ref := write("ref.fa", ">NC_045512.2\n"+refSeq+"\n")
	archive := write("archive.fa",
		">hCoV-19/A|EPI_ISL_1|2020-03-27\n"+refSeq+"\n"+
			">hCoV-19/B|EPI_ISL_2|2020-04-02\nACGTATGTACGTACGTACGT\n")
	lineages := write("lineages.csv",
		"taxon,lineage,probability,pangoLEARN_version,status,note\n"+
			"hCoV-19/A|EPI_ISL_1|2020-03-27,B.1,1.0,2021-01-01,passed_qc,\n"+
			"hCoV-19/B|EPI_ISL_2|2020-04-02,A.2,1.0,2021-01-01,passed_qc,\n")
	vcf := write("sites.vcf",
		"##fileformat=VCFv4.2\n"+
			"NC_045512.2\t18\t.\tC\tT\t.\t.\t.\n")

	sam := write("out.sam",
		"@SQ\tSN:NC_045512.2\tLN:20\n"+
			"hCoV-19/A|EPI_ISL_1|2020-03-27\t0\tNC_045512.2\t1\t60\t20=\t*\t0\t0\t"+refSeq+"\t*\n"+
			"hCoV-19/B|EPI_ISL_2|2020-04-02\t0\tNC_045512.2\t1\t60\t5=1X14=\t*\t0\t0\tACGTATGTACGTACGTACGT\t*\n")
	mmbin := write("fake-minimap2", "#!/bin/sh\ncat >/dev/null\ncat "+sam+"\n")
	require.NoError(t, os.Chmod(mmbin, 0o755))

	byLineage := filepath.Join(dir, "out", "by_lineage.json")
	code, _, stderr := runCLI(t,
		"--ref", ref,
		"--mmbin", mmbin,
		"--vcf", vcf,
		"--minlen", "10",
		"--bylineage", byLineage,
		"--outdir", filepath.Join(dir, "out"),
		archive, lineages)
	require.Equal(t, 0, code, stderr)

	raw, err := os.ReadFile(byLineage)
	require.NoError(t, err)
	out := string(raw)
	assert.Contains(t, out, `"A.2"`)
	assert.Contains(t, out, `"B.1"`)
	assert.Contains(t, out, `["~",5,"T"]`, "substitution against the reference must survive")

	summaries, err := filepath.Glob(filepath.Join(dir, "out", "dbstats.*.json"))
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	stats, err := os.ReadFile(summaries[0])
	require.NoError(t, err)
	assert.Contains(t, string(stats), `"noseqs": 2`)
}

func TestOverlayFlagBeatsFile(t *testing.T) {
	fl := pflag.NewFlagSet("t", pflag.ContinueOnError)
	cfg := config.Default()
	fl.IntVar(&cfg.MinLen, "minlen", cfg.MinLen, "")
	fl.IntVar(&cfg.BatchSize, "batchsize", cfg.BatchSize, "")
	require.NoError(t, fl.Parse([]string{"--minlen", "123"}))

	file := config.Default()
	file.MinLen = 999
	file.BatchSize = 42
	overlay(fl, &cfg, file)

	assert.Equal(t, 123, cfg.MinLen, "explicit flag wins over file")
	assert.Equal(t, 42, cfg.BatchSize, "file wins over default")
}
