// Package tracekit tokenizes and deduplicates large line-oriented trace
// logs such as ftrace and perf text output.
//
// A Parser couples a tokenizing reader with a string interning pool. Every
// word of every line is copied once into arena memory, and every distinct
// word is stored exactly once in the pool.
//
// # Quick Start
//
//	ctx := context.Background()
//	p, _ := tracekit.Open(ctx, "trace.txt.zst")
//	defer p.Close()
//
//	err := p.Scan(ctx, func(line *tracefile.Line, words []*strpool.Record) error {
//	    fmt.Println(line.Number, words[0].String())
//	    return nil
//	})
//
// # Sources
//
// Traces can be read from the local file system, Amazon S3 or MinIO:
//
//	src, _ := source.NewS3FromConfig(ctx, "traces", "prod/")
//	p, _ := tracekit.Open(ctx, "host1/trace.txt.gz", tracekit.WithSource(src))
//
// # Memory
//
// Arenas grow page by page and never shrink until Reset or Close. A
// resource.Controller shared through WithResourceController caps the total
// memory of all parsers; when the cap is hit the parse fails with an error
// matching ErrExhausted. WithWindow rewinds the tokenizer every n lines so
// only the interned vocabulary grows with the trace.
//
// # Concurrency
//
// A Parser is not safe for concurrent use. Parse traces in parallel with
// one Parser per goroutine; controllers and metrics collectors may be
// shared.
package tracekit
