// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: A trace file opened for sequential reading
//   - [FileSystem]: Abstracts the read-side filesystem operations (open, stat)
//
// # Implementations
//
//   - [LocalFS]: Production implementation using standard os package
//   - [FaultyFS]: Test utility for fault injection (failed opens, read errors,
//     short reads)
//
// # Usage
//
// Production code should use fs.Default (which is [LocalFS]):
//
//	file, err := fs.Default.Open(path)
//
// Tests can inject [FaultyFS] to simulate failures:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("trace", fs.Fault{FailAfterBytes: 1024}) // reads fail after 1KB
//	// inject ffs into component under test
package fs
