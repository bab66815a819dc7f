// Command lineuniq deletes duplicate lines from a file, keeping the first
// occurrence of every line.
//
// Usage:
//
//	lineuniq [flags] [file]
//
// Without a file, lineuniq reads standard input. The result goes to standard
// output unless -o or -w is given.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/jcalabro/linebloom/dedup"
	"github.com/jcalabro/linebloom/linebuf"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

type config struct {
	adjacent bool
	fpRate   float64
	start    int
	end      int
	verify   string
	output   string
	inPlace  bool
	verbose  bool
	metrics  bool
	input    string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "lineuniq: %v\n", err)
		return exitUsage
	}

	lg := newLogger(stderr, cfg.verbose)
	defer func() { _ = lg.Sync() }()

	registry := prometheus.NewRegistry()
	opts.Logger = lg
	opts.Metrics = dedup.NewMetrics(registry)

	if err := uniq(cfg, opts, stdin, stdout, lg); err != nil {
		lg.Error("lineuniq failed", zap.Error(err))
		return exitError
	}

	if cfg.metrics {
		if err := dumpMetrics(registry, stderr); err != nil {
			lg.Error("could not write metrics", zap.Error(err))
			return exitError
		}
	}
	return exitOK
}

func parseFlags(args []string, stderr io.Writer) (config, dedup.Options, error) {
	var cfg config
	fs := flag.NewFlagSet("lineuniq", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: lineuniq [flags] [file]\n\n")
		fs.PrintDefaults()
	}

	fs.BoolVar(&cfg.adjacent, "adjacent", false, "only delete lines equal to the line before them")
	fs.Float64Var(&cfg.fpRate, "p", dedup.DefaultFalsePositiveRate, "bloom filter false positive rate")
	fs.IntVar(&cfg.start, "start", 0, "first line to consider, 1-based (0 = first line)")
	fs.IntVar(&cfg.end, "end", 0, "last line to consider, 1-based and inclusive (0 = last line)")
	fs.StringVar(&cfg.verify, "verify", "scan", "how filter hits are confirmed: scan, index or none")
	fs.StringVar(&cfg.output, "o", "", "write the result to `file` instead of standard output")
	fs.BoolVar(&cfg.inPlace, "w", false, "write the result back to the input file")
	fs.BoolVar(&cfg.verbose, "v", false, "enable debug logging")
	fs.BoolVar(&cfg.metrics, "metrics", false, "print metrics to standard error when done")

	if err := fs.Parse(args); err != nil {
		return cfg, dedup.Options{}, err
	}

	switch fs.NArg() {
	case 0:
	case 1:
		cfg.input = fs.Arg(0)
	default:
		return cfg, dedup.Options{}, errors.New("at most one input file may be given")
	}
	if cfg.inPlace && cfg.input == "" {
		return cfg, dedup.Options{}, errors.New("-w needs an input file")
	}
	if cfg.inPlace && cfg.output != "" {
		return cfg, dedup.Options{}, errors.New("-w and -o cannot be combined")
	}
	if cfg.start < 0 || cfg.end < 0 {
		return cfg, dedup.Options{}, errors.New("-start and -end must not be negative")
	}
	if cfg.end > 0 && cfg.end < cfg.start {
		return cfg, dedup.Options{}, errors.Errorf("-end %d is before -start %d", cfg.end, cfg.start)
	}

	opts := dedup.Options{
		FalsePositiveRate: cfg.fpRate,
		Range:             dedup.Range{Start: max(cfg.start-1, 0), End: cfg.end},
	}
	if cfg.adjacent {
		opts.Mode = dedup.Adjacent
	}
	v, err := dedup.ParseVerifyStrategy(cfg.verify)
	if err != nil {
		return cfg, dedup.Options{}, err
	}
	opts.Verify = v

	return cfg, opts, nil
}

func uniq(cfg config, opts dedup.Options, stdin io.Reader, stdout io.Writer, lg *zap.Logger) error {
	buf, err := readInput(cfg.input, stdin)
	if err != nil {
		return err
	}

	res, err := dedup.Scan(buf, opts)
	if err != nil {
		return errors.Wrap(err, "deduplicate")
	}
	if res.Deleted > 0 {
		lg.Info("deleted duplicate lines", zap.Int("count", res.Deleted), zap.Int("scanned", res.Scanned))
	}

	return writeOutput(cfg, buf, stdout)
}

func readInput(path string, stdin io.Reader) (*linebuf.Buffer, error) {
	if path == "" {
		return linebuf.Read(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read input")
	}
	return linebuf.Parse(data), nil
}

func writeOutput(cfg config, buf *linebuf.Buffer, stdout io.Writer) error {
	switch {
	case cfg.inPlace:
		info, err := os.Stat(cfg.input)
		if err != nil {
			return errors.Wrap(err, "stat input")
		}
		if err := os.WriteFile(cfg.input, buf.Bytes(), info.Mode().Perm()); err != nil {
			return errors.Wrap(err, "write input file")
		}
		return nil

	case cfg.output != "":
		f, err := os.Create(cfg.output)
		if err != nil {
			return errors.Wrap(err, "create output")
		}
		if _, err := buf.WriteTo(f); err != nil {
			f.Close()
			return err
		}
		return errors.Wrap(f.Close(), "close output")

	default:
		_, err := buf.WriteTo(stdout)
		return err
	}
}

func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zap.InfoLevel
	encCfg := zap.NewProductionEncoderConfig()
	enc := zapcore.NewJSONEncoder(encCfg)
	if verbose {
		level = zap.DebugLevel
		encCfg = zap.NewDevelopmentEncoderConfig()
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
	return zap.New(core).Named("lineuniq")
}

func dumpMetrics(g prometheus.Gatherer, w io.Writer) error {
	families, err := g.Gather()
	if err != nil {
		return errors.Wrap(err, "gather metrics")
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return errors.Wrap(err, "encode metrics")
		}
	}
	return nil
}
