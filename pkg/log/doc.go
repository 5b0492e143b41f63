// Package log provides a very small opinionated wrapper around Go's standard
// library logging facilities. Its goal is to offer a consistent way to emit
// logs per tomes service while keeping the surface minimal.
//
// Key Features
//
//   - Per-service loggers via ForService(name)
//   - Automatic prefix in every line: `[name>]` (example: `[openlibrary>] found 3 docs`)
//   - Convenience level helpers: Infof, Warnf, Errorf, Debugf
//   - Debug logging can be enabled globally (SetGlobalDebug), per service
//     (EnableDebugFor / DisableDebugFor), or through the TOMES_DEBUG
//     environment variable ("1"/"all" for everything, or a comma-separated
//     list of service names)
//   - Uses the standard library *log.Logger* under the hood (no external deps)
//   - Central output writer (SetOutput) that updates existing loggers
//
// Non-Goals (for now)
//
//   - Full-featured leveled logging framework
//   - Structured / JSON logging
//   - Log sampling, rotation, or asynchronous buffering
//
// Basic Usage
//
//	l := log.ForService("openlibrary")
//	l.Infof("found %d docs", n)
//	l.Debugf("raw query: %s", q) // only prints when debug is enabled
//
// Selective Debug
//
//	// Only enable debug for the 'shelf' service.
//	log.EnableDebugFor("shelf")
//	log.ForService("shelf").Debugf("visible")
//	log.ForService("api").Debugf("NOT visible")
//
// Thread Safety
//
// All exported functions are safe for concurrent use. Internally the package
// relies on sync.Map and atomic primitives for minimal locking.
//
// The package name collides with stdlib "log" on purpose; alias the stdlib
// one where both are needed. Tests can redirect output by calling SetOutput
// with a bytes.Buffer, enabling assertions on log contents.
package log
