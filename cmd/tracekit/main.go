// Command tracekit tokenizes and interns trace files and prints statistics
// per file.
//
//	tracekit [-config file.yaml] [-workers N] [-window N] [-mmap] [-v] paths...
//
// Paths are local files, s3://bucket/key objects or minio://key objects of
// the bucket named in the configuration.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/tracekit"
	"github.com/hupe1980/tracekit/resource"
	"github.com/hupe1980/tracekit/source"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type result struct {
	path  string
	stats tracekit.Stats
	err   error
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fset := flag.NewFlagSet("tracekit", flag.ContinueOnError)
	fset.SetOutput(stderr)
	var (
		configPath = fset.String("config", "", "YAML configuration file")
		workers    = fset.Int64("workers", 0, "Traces parsed in parallel (overrides config)")
		window     = fset.Int("window", -1, "Lines per tokenizer window, 0 = unbounded (overrides config)")
		mmap       = fset.Bool("mmap", false, "Map local files into memory")
		verbose    = fset.Bool("v", false, "Log debug events")
	)
	if err := fset.Parse(args); err != nil {
		return 2
	}
	if fset.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: tracekit [flags] paths...")
		fset.PrintDefaults()
		return 2
	}

	cfg := defaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = LoadConfig(*configPath); err != nil {
			fmt.Fprintf(stderr, "tracekit: %v\n", err)
			return 2
		}
	}
	if *workers > 0 {
		cfg.Limits.Workers = *workers
	}
	if *window >= 0 {
		cfg.Window = *window
	}
	if *mmap {
		cfg.Local.Mmap = true
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "tracekit: %v\n", err)
		return 2
	}

	results, err := parseAll(ctx, cfg, fset.Args())
	if err != nil {
		fmt.Fprintf(stderr, "tracekit: %v\n", err)
		return 1
	}

	code := 0
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TRACE\tFORMAT\tLINES\tWORDS\tDISTINCT\tHIT RATE\tTRUNCATED")
	for _, r := range results {
		if r.err != nil {
			fmt.Fprintf(stderr, "tracekit: %v\n", r.err)
			code = 1
			continue
		}
		s := r.stats
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%.3f\t%d\n",
			r.path, s.Reader.Format, s.Reader.Lines, s.Reader.Words,
			s.Pool.Records, s.Pool.HitRate(), s.Reader.TruncatedLines)
	}
	if err := tw.Flush(); err != nil {
		return 1
	}
	return code
}

// parseAll parses every path with one parser per worker slot. Failures to
// open or read a trace are reported per path; memory exhaustion aborts all.
func parseAll(ctx context.Context, cfg *Config, paths []string) ([]result, error) {
	level, err := cfg.level()
	if err != nil {
		return nil, err
	}
	logger := tracekit.NewTextLogger(level)
	rc := resource.NewController(cfg.resourceConfig())

	sources, names, err := resolve(ctx, cfg, paths)
	if err != nil {
		return nil, err
	}

	opts := []tracekit.Option{
		tracekit.WithLogger(logger),
		tracekit.WithResourceController(rc),
		tracekit.WithReaderConfig(cfg.Reader),
		tracekit.WithStringPoolConfig(cfg.poolConfig()),
		tracekit.WithWindow(cfg.Window),
	}
	if cfg.Decompress != nil {
		opts = append(opts, tracekit.WithDecompression(*cfg.Decompress))
	}

	results := make([]result, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			if err := rc.AcquireWorker(ctx); err != nil {
				return err
			}
			defer rc.ReleaseWorker()

			stats, err := parse(ctx, names[i], append(opts[:len(opts):len(opts)], tracekit.WithSource(sources[i])))
			if errors.Is(err, tracekit.ErrExhausted) {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = result{path: path, stats: stats, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func parse(ctx context.Context, name string, opts []tracekit.Option) (tracekit.Stats, error) {
	p, err := tracekit.Open(ctx, name, opts...)
	if err != nil {
		return tracekit.Stats{}, err
	}
	defer p.Close()

	if err := p.Scan(ctx, nil); err != nil {
		return tracekit.Stats{}, err
	}
	return p.Stats(), nil
}

// resolve maps every path to the source that serves it and the name within
// that source. Sources are shared by paths with the same bucket.
func resolve(ctx context.Context, cfg *Config, paths []string) ([]source.Source, []string, error) {
	var (
		local   source.Source
		mio     source.Source
		buckets = map[string]source.Source{}
		srcs    = make([]source.Source, len(paths))
		names   = make([]string, len(paths))
	)
	for i, path := range paths {
		scheme, bucket, key, err := source.ParseURI(path)
		if err != nil {
			return nil, nil, err
		}
		names[i] = key

		switch scheme {
		case source.SchemeFile:
			if local == nil {
				local = source.NewLocal(source.WithRoot(cfg.Local.Root), source.WithMmap(cfg.Local.Mmap))
			}
			srcs[i] = local
		case source.SchemeS3:
			src, ok := buckets[bucket]
			if !ok {
				if src, err = source.NewS3FromConfig(ctx, bucket, ""); err != nil {
					return nil, nil, err
				}
				buckets[bucket] = src
			}
			srcs[i] = src
		case source.SchemeMinio:
			if cfg.Minio == nil {
				return nil, nil, fmt.Errorf("%s: no minio section in the configuration", path)
			}
			if mio == nil {
				if mio, err = source.NewMinio(*cfg.Minio); err != nil {
					return nil, nil, err
				}
			}
			srcs[i] = mio
		}
	}
	return srcs, names, nil
}
